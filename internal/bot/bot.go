package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EgorLis/Interactivebot/internal/discovery"
	"github.com/EgorLis/Interactivebot/internal/gameclient"
	"github.com/EgorLis/Interactivebot/internal/state"
)

type InteractiveBot struct {
	cli   *gameclient.GameClient
	disc  *discovery.Client
	cache *state.Cache

	buttons map[string]*smartButton

	cfg *configStore

	baseLog zerolog.Logger
	log     zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// чтобы не дёргать re-sync слишком часто при серии быстрых реконнектов
	reinitMu   sync.Mutex
	lastReinit time.Time

	// throttle-watch
	twMu      sync.Mutex
	twRunning bool
	twCancel  context.CancelFunc
	twEvery   time.Duration
}

func New(log zerolog.Logger) *InteractiveBot {
	return &InteractiveBot{
		buttons: make(map[string]*smartButton),
		baseLog: log,
		log:     log.With().Str("comp", "bot").Logger(),
	}
}

// SetGameClient создаёт игровой клиент, вешает колбэки жизненного цикла и
// подписывает обработчики: кэш ресурсов, кнопки, приветствие, memory warning.
func (bot *InteractiveBot) SetGameClient(cfg gameclient.Config) {
	if cfg.Logger == nil {
		cfg.Logger = &bot.baseLog
	}
	bot.cli = gameclient.New(cfg)
	bot.cache = state.NewCache(bot.baseLog)
	bot.cache.Bind(bot.cli)

	bot.cli.OnConnecting = func() { bot.log.Info().Msg("connecting") }

	// КЛЮЧЕВОЕ: любое успешное подключение (первое или реконнект) — re-sync
	bot.cli.OnConnected = func() {
		bot.log.Info().Msg("connected")
		go bot.resyncState()
	}

	bot.cli.OnDisconnected = func() { bot.log.Info().Msg("disconnected") }
	bot.cli.OnError = func(err error) { bot.log.Warn().Err(err).Msg("client error") }

	// --- ввод зрителей ---
	bot.cli.Subscribe(gameclient.KindGiveInput, func(ev *gameclient.Event) {
		in, err := ev.Input()
		if err != nil {
			bot.log.Warn().Err(err).Msg("bad giveInput body")
			return
		}
		ci, err := in.ControlInput()
		if err != nil {
			bot.log.Warn().Err(err).Msg("bad input payload")
			return
		}
		if ci.Event != "mousedown" {
			return
		}
		bot.mu.Lock()
		btn := bot.buttons[ci.ControlID]
		bot.mu.Unlock()
		if btn == nil {
			return
		}
		// Call из обработчика события — дедлок, поэтому отдельной горутиной
		go bot.fireButton(btn, in)
	})

	// --- участники ---
	bot.cli.Subscribe(gameclient.KindParticipantJoin, func(ev *gameclient.Event) {
		parts, err := ev.Participants()
		if err != nil {
			bot.log.Warn().Err(err).Msg("bad participant body")
			return
		}
		go bot.greetParticipants(parts)
	})

	// --- сервису тесно ---
	bot.cli.Subscribe(gameclient.KindMemoryWarning, func(ev *gameclient.Event) {
		mw, err := ev.MemoryWarning()
		if err != nil {
			bot.log.Warn().Err(err).Msg("bad memory warning body")
			return
		}
		go bot.handleMemoryWarning(mw)
	})
}

// SetDiscovery подключает HTTP-дискавери хостов; клиент будет брать адреса
// из него, если явные endpoints не заданы.
func (bot *InteractiveBot) SetDiscovery(cfg discovery.Config) *discovery.Client {
	bot.disc = discovery.NewClient(cfg, bot.baseLog)
	return bot.disc
}

// State — локальное зеркало ресурсов (после SetGameClient).
func (bot *InteractiveBot) State() *state.Cache {
	return bot.cache
}

// Client — игровой клиент (после SetGameClient).
func (bot *InteractiveBot) Client() *gameclient.GameClient {
	return bot.cli
}

func (bot *InteractiveBot) Start() error {
	if bot == nil {
		return errors.New("бот не инициализирован")
	}
	if bot.cli == nil {
		return errors.New("игровой клиент не инициализирован")
	}
	bot.mu.Lock()
	if bot.stopCh != nil {
		bot.mu.Unlock()
		return errors.New("уже запущен")
	}
	bot.stopCh = make(chan struct{})
	ch := bot.stopCh
	bot.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	if err := bot.cli.Connect(ctx); err != nil {
		cancel()
		bot.mu.Lock()
		bot.stopCh = nil
		bot.mu.Unlock()
		return err
	}

	if bot.disc != nil {
		_ = bot.disc.StartRefresh(time.Minute, func(hosts []string) {
			bot.log.Info().Strs("hosts", hosts).Msg("interactive hosts changed")
		})
	}

	// сторож для остановки
	bot.wg.Add(1)
	go func() {
		defer bot.wg.Done()
		<-ch
		if bot.disc != nil {
			bot.disc.Stop()
		}
		bot.StopThrottleWatch()
		cancel()
		bot.cli.Disconnect()
	}()

	return nil
}

func (bot *InteractiveBot) Stop() {
	bot.mu.Lock()
	ch := bot.stopCh
	bot.stopCh = nil
	bot.mu.Unlock()

	if ch != nil {
		close(ch)     // безопасно: повторный Stop() ничего не делает
		bot.wg.Wait() // дождёмся остановки фоновой горутины
	}
}

// resyncState — актуализация после (ре)подключения: заявить готовность и
// перечитать сцены в кэш.
func (bot *InteractiveBot) resyncState() {
	// антидребезг: серию быстрых OnConnected коллапсируем в один вызов
	bot.reinitMu.Lock()
	if time.Since(bot.lastReinit) < 2*time.Second {
		bot.reinitMu.Unlock()
		return
	}
	bot.lastReinit = time.Now()
	bot.reinitMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if bot.autoReady() {
		if err := bot.cli.Ready(ctx, true); err != nil {
			bot.log.Warn().Err(err).Msg("ready failed")
		}
	}

	scenes, err := bot.cli.Scenes(ctx)
	if err != nil {
		bot.log.Warn().Err(err).Msg("scene sync failed")
		return
	}
	bot.cache.SeedScenes(scenes)
	bot.log.Info().Int("scenes", len(scenes)).Msg("state synced")
}

// handleMemoryWarning — сервис просит освободить ресурсы: сбрасываем кэш и,
// если настроено, придушиваем трафик.
func (bot *InteractiveBot) handleMemoryWarning(mw *gameclient.MemoryWarningEvent) {
	scenes, groups, parts, controls := bot.cache.Stats()
	bot.log.Warn().
		Int64("used", mw.UsedBytes).
		Int64("total", mw.TotalBytes).
		Int("scenes", scenes).Int("groups", groups).
		Int("participants", parts).Int("controls", controls).
		Msg("memory warning, dropping caches")
	bot.cache.Reset()

	rules := bot.throttleRules()
	if len(rules) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := bot.cli.SetBandwidthThrottle(ctx, rules); err != nil {
		bot.log.Warn().Err(err).Msg("throttle tighten failed")
	}
}
