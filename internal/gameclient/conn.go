package gameclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	readLimit    = 4 << 20
	pongWait     = 30 * time.Second
	pingPeriod   = 10 * time.Second
	writeTimeout = 5 * time.Second
	closeGrace   = 500 * time.Millisecond

	inboundBuffer = 64
)

// session — одна установленная wire-сессия: сокет, согласованная схема
// сжатия и канал входящих конвертов. Живёт от hello до обрыва/закрытия.
type session struct {
	conn     *websocket.Conn
	endpoint string
	id       string // для сквозной корреляции в логах
	log      zerolog.Logger

	wmu    sync.Mutex // сериализует запись в websocket
	scheme atomic.Value

	in       chan *envelope // входящие, в порядке прихода; закрывается пампом
	closing  atomic.Bool
	once     sync.Once
	pingStop chan struct{}
}

// dialSession устанавливает соединение, дожидается серверного hello и
// запускает чтение. До возврата сессия не считается установленной.
func dialSession(ctx context.Context, endpoint string, cfg Config, log zerolog.Logger) (*session, error) {
	hdr := http.Header{}
	if cfg.Token != "" {
		hdr.Set("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.ProjectVersion != "" {
		hdr.Set("X-Interactive-Version", cfg.ProjectVersion)
	}
	hdr.Set("X-Protocol-Version", protocolVersion)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, hdr)
	if err != nil {
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}
	conn.SetReadLimit(readLimit)

	sid := uuid.NewString()
	s := &session{
		conn:     conn,
		endpoint: endpoint,
		id:       sid,
		log:      log.With().Str("sid", sid[:8]).Logger(),
		in:       make(chan *envelope, inboundBuffer),
		pingStop: make(chan struct{}),
	}
	s.scheme.Store(SchemeNone)

	if err := s.awaitHello(cfg.HandshakeTimeout); err != nil {
		_ = conn.Close()
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}

	// hello получен: обычный режим — pong продлевает дедлайн чтения
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	s.startPing()
	go s.readPump()

	s.log.Debug().Str("endpoint", endpoint).Msg("session established")
	return s, nil
}

// awaitHello читает сокет, пока не придёт серверный метод hello.
// Всё, что сервер успел прислать до hello, складывается в канал и будет
// доставлено подписчикам в исходном порядке (включая сам hello).
func (s *session) awaitHello(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	_ = s.conn.SetReadDeadline(deadline)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		env, derr := s.decode(mt, data)
		if derr != nil {
			s.log.Warn().Err(derr).Msg("malformed message dropped")
			continue
		}
		select {
		case s.in <- env:
		default:
			return ErrHelloOverflow
		}
		if env.Type == packetMethod && env.Method == string(KindHello) {
			return nil
		}
	}
}

// readPump переводит сокет в канал конвертов. Одно битое сообщение просто
// выбрасывается; ошибка сокета завершает памп и закрывает канал.
func (s *session) readPump() {
	defer close(s.in)
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closing.Load() {
				s.log.Debug().Err(err).Msg("socket read ended")
			}
			return
		}
		env, derr := s.decode(mt, data)
		if derr != nil {
			s.log.Warn().Err(derr).Msg("malformed message dropped")
			continue
		}
		s.in <- env
	}
}

// decode разбирает кадр согласно текущей схеме: бинарные кадры несут
// сжатый JSON с префиксом длины, текстовые — голый JSON.
func (s *session) decode(msgType int, data []byte) (*envelope, error) {
	if msgType == websocket.BinaryMessage {
		if s.currentScheme() != SchemeGzip {
			return nil, ErrMalformedFrame
		}
		plain, err := unpackGzipFrame(data)
		if err != nil {
			return nil, err
		}
		data = plain
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// send пишет готовый конверт в сокет, применяя согласованную схему.
func (s *session) send(raw []byte) error {
	if s.closing.Load() {
		return ErrSessionClosed
	}
	msgType := websocket.TextMessage
	if s.currentScheme() == SchemeGzip {
		frame, err := packGzipFrame(raw)
		if err != nil {
			return err
		}
		raw, msgType = frame, websocket.BinaryMessage
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(msgType, raw)
}

func (s *session) currentScheme() string {
	sc, _ := s.scheme.Load().(string)
	return sc
}

// setScheme переключает кодек после подтверждённого setCompression.
// Действует на оба направления сразу.
func (s *session) setScheme(scheme string) {
	s.scheme.Store(scheme)
	s.log.Debug().Str("scheme", scheme).Msg("compression switched")
}

// close безопасно закрывает сессию; повторные вызовы — no-op.
func (s *session) close() {
	s.once.Do(func() {
		s.closing.Store(true)
		close(s.pingStop)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(closeGrace))
		_ = s.conn.Close()
	})
}

func (s *session) startPing() {
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.wmu.Lock()
				_ = s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
				s.wmu.Unlock()
			case <-s.pingStop:
				return
			}
		}
	}()
}
