package gameclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultCallTimeout      = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// State — состояние жизненного цикла клиента.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EndpointSource — источник адресов сервиса; дискавери реализует его поверх HTTP.
type EndpointSource interface {
	Endpoints(ctx context.Context) ([]string, error)
}

type Config struct {
	// Endpoints — явные адреса ws(s)://, перебираются по порядку.
	// Если пусто, адреса берутся из Source.
	Endpoints []string
	Source    EndpointSource

	// Token — bearer-токен авторизации; клиент его не интерпретирует.
	Token string
	// ProjectVersion — идентификатор версии интерактивного проекта.
	ProjectVersion string
	// Compression — предпочитаемые схемы сжатия в порядке убывания
	// (неизвестные сервису схемы не предлагаются).
	Compression []string

	CallTimeout       time.Duration
	HandshakeTimeout  time.Duration
	ClockSyncInterval time.Duration
	ClockSamples      int
	Backoff           BackoffConfig

	// Logger — необязательный; по умолчанию логирование выключено.
	Logger *zerolog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ClockSamples <= 0 {
		cfg.ClockSamples = defaultClockSamples
	}
	if cfg.ClockSyncInterval <= 0 {
		cfg.ClockSyncInterval = defaultClockInterval
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	return cfg
}

// GameClient — клиент интерактивной сессии: устанавливает соединение,
// сводит вызовы с ответами, раздаёт серверные события подписчикам и держит
// поправку часов. Состояния: disconnected → connecting → connected →
// disconnecting → disconnected; при обрыве connected → reconnecting.
type GameClient struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex // сериализует Connect/Disconnect
	state atomic.Int32
	sess  atomic.Pointer[session]

	reg  *registry
	disp *dispatcher

	sampler *clockSampler
	closeCh chan struct{}
	runDone chan struct{}

	adjustment atomic.Int64 // миллисекунды
	throttle   atomic.Pointer[ThrottleState]

	// Колбэки жизненного цикла.
	OnConnecting   func()
	OnConnected    func()
	OnDisconnected func()
	OnError        func(error)
}

func New(cfg Config) *GameClient {
	cfg = cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("comp", "gameclient").Logger()
	}
	return &GameClient{
		cfg:  cfg,
		log:  log,
		reg:  newRegistry(log),
		disp: newDispatcher(log),
	}
}

// Connect устанавливает сессию и запускает фоновые циклы (чтение,
// диспетчеризацию, синхронизацию часов). Повторный Connect при живой
// сессии возвращает ErrAlreadyConnected.
func (c *GameClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateDisconnected {
		return ErrAlreadyConnected
	}
	c.state.Store(int32(StateConnecting))
	if c.OnConnecting != nil {
		c.OnConnecting()
	}

	sess, err := c.dialAny(ctx)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}

	c.sess.Store(sess)
	c.closeCh = make(chan struct{})
	c.runDone = make(chan struct{})
	c.state.Store(int32(StateConnected))

	// сэмплер часов живёт, пока клиент подключён
	c.sampler = newClockSampler(c.cfg.ClockSamples, c.cfg.ClockSyncInterval,
		c.sampleTime, c.adjustment.Store, c.log)
	go c.sampler.run()
	go c.run(sess, c.closeCh, c.runDone)

	if c.OnConnected != nil {
		c.OnConnected()
	}
	// согласуем сжатие; неуспех не фатален — остаёмся на none
	if err := c.applyPreferredCompression(ctx); err != nil {
		c.log.Warn().Err(err).Msg("compression negotiation failed")
	}
	return nil
}

// Disconnect закрывает сессию и дожидается полной остановки фоновых циклов.
// Идемпотентен. Все ожидающие вызовы получают NoReplyError(ErrSessionClosed);
// OnDisconnected вызывается ровно один раз. Не зовите его из обработчика
// события — он ждёт остановки горутины диспетчеризации.
func (c *GameClient) Disconnect() {
	c.mu.Lock()
	st := State(c.state.Load())
	if st == StateDisconnected || st == StateDisconnecting {
		c.mu.Unlock()
		return
	}
	c.state.Store(int32(StateDisconnecting))
	sess := c.sess.Load()
	sampler := c.sampler
	closeCh := c.closeCh
	done := c.runDone
	c.sampler = nil
	c.closeCh = nil
	c.mu.Unlock()

	if closeCh != nil {
		close(closeCh) // будит ожидание реконнекта
	}
	if sampler != nil {
		sampler.stop() // висящий getTime обрывается отменой контекста
	}
	c.reg.cancelAll(ErrSessionClosed)
	if sess != nil {
		sess.close()
	}
	if done != nil {
		<-done
	}
}

func (c *GameClient) State() State {
	return State(c.state.Load())
}

func (c *GameClient) IsConnected() bool {
	return c.State() == StateConnected
}

// Call отправляет метод и ждёт коррелированный reply. Результат и ошибка
// взаимоисключающи; ошибка сервера приходит как *ReplyError, отсутствие
// ответа (таймаут/обрыв/отмена контекста) — как *NoReplyError.
func (c *GameClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	sess := c.sess.Load()
	if sess == nil || State(c.state.Load()) != StateConnected {
		return nil, ErrNotConnected
	}

	id := c.reg.next()
	data, err := methodEnvelope(id, method, params, false)
	if err != nil {
		return nil, err
	}
	p := c.reg.register(id, method)
	if err := sess.send(data); err != nil {
		// сеть упала между подготовкой и записью — подчищаем ожидание
		c.reg.drop(id)
		return nil, fmt.Errorf("gameclient: send %s: %w", method, err)
	}
	return c.await(ctx, p)
}

func (c *GameClient) await(ctx context.Context, p *pendingCall) (json.RawMessage, error) {
	t := time.NewTimer(c.cfg.CallTimeout)
	defer t.Stop()

	select {
	case res := <-p.ch:
		return res.raw, res.err
	case <-ctx.Done():
		if !c.reg.drop(p.id) {
			res := <-p.ch // гонку выиграл settle — ответ уже в канале
			return res.raw, res.err
		}
		return nil, &NoReplyError{Method: p.method, ID: p.id, Err: ctx.Err()}
	case <-t.C:
		if !c.reg.drop(p.id) {
			res := <-p.ch
			return res.raw, res.err
		}
		return nil, &NoReplyError{Method: p.method, ID: p.id, Err: ErrCallTimeout}
	}
}

// FireAndForget отправляет метод с discard:true — сервер не пришлёт ответ,
// клиент его не ждёт и не регистрирует.
func (c *GameClient) FireAndForget(method string, params any) error {
	sess := c.sess.Load()
	if sess == nil || State(c.state.Load()) != StateConnected {
		return ErrNotConnected
	}
	data, err := methodEnvelope(c.reg.next(), method, params, true)
	if err != nil {
		return err
	}
	return sess.send(data)
}

// Subscribe регистрирует обработчик событий вида kind (KindAny — все).
// Обработчики вызываются синхронно на горутине диспетчеризации, в порядке
// регистрации. Возвращённый id нужен для Unsubscribe.
func (c *GameClient) Subscribe(kind EventKind, fn func(*Event)) uint64 {
	return c.disp.subscribe(kind, fn)
}

func (c *GameClient) Unsubscribe(id uint64) {
	c.disp.unsubscribe(id)
}

// TimeAdjustment — текущая поправка часов (серверные минус локальные).
func (c *GameClient) TimeAdjustment() time.Duration {
	return time.Duration(c.adjustment.Load()) * time.Millisecond
}

// ServerNow — оценка серверного времени без обращения к серверу.
func (c *GameClient) ServerNow() time.Time {
	return time.Now().Add(c.TimeAdjustment())
}

// ========================= внутренности =========================

// handle обрабатывает один входящий конверт: reply сводится с ожидающим
// вызовом, method уходит подписчикам. Ничего не теряется.
func (c *GameClient) handle(env *envelope) {
	switch env.Type {
	case packetReply:
		if env.Error != nil {
			c.reg.settle(env.ID, nil, env.Error)
		} else {
			c.reg.settle(env.ID, env.Result, nil)
		}
	case packetMethod:
		c.disp.publish(newEvent(env.Method, env.Params))
	default:
		c.log.Warn().Str("type", env.Type).Msg("unknown packet type dropped")
	}
}

// dialAny перебирает адреса (явные либо из источника) до первого успеха.
func (c *GameClient) dialAny(ctx context.Context) (*session, error) {
	eps := c.cfg.Endpoints
	if len(eps) == 0 && c.cfg.Source != nil {
		var err error
		eps, err = c.cfg.Source.Endpoints(ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}

	var lastErr error
	for _, ep := range eps {
		sess, err := dialSession(ctx, ep, c.cfg, c.log)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Msg("dial failed")
			continue
		}
		return sess, nil
	}
	return nil, lastErr
}

// sampleTime — один замер для сэмплера часов.
func (c *GameClient) sampleTime(ctx context.Context) (int64, error) {
	raw, err := c.Call(ctx, "getTime", nil)
	if err != nil {
		return 0, err
	}
	var body struct {
		Time int64 `json:"time"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, err
	}
	return body.Time, nil
}

// applyPreferredCompression предлагает серверу схемы из конфигурации и
// переключает кодек на выбранную.
func (c *GameClient) applyPreferredCompression(ctx context.Context) error {
	var offer []string
	for _, s := range c.cfg.Compression {
		if supportedSchemes[s] && s != SchemeNone {
			offer = append(offer, s)
		}
	}
	if len(offer) == 0 {
		return nil
	}
	_, err := c.SetCompression(ctx, offer...)
	return err
}
