package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/EgorLis/Interactivebot/internal/bot"
	"github.com/EgorLis/Interactivebot/internal/discovery"
	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

type appConfig struct {
	Endpoints      []string
	Token          string
	ProjectVersion string
	Compression    []string

	DiscoveryBase string
	ClientID      string

	BotConfigPath string
	ThrottleEvery time.Duration
	LogLevel      string
}

func loadConfig() (appConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("conf")

	v.SetEnvPrefix("IB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("interactive.endpoints", []string{})
	v.SetDefault("interactive.token", "")
	v.SetDefault("interactive.project_version", "")
	v.SetDefault("interactive.compression", []string{"gzip"})
	v.SetDefault("discovery.base_url", "")
	v.SetDefault("discovery.client_id", "")
	v.SetDefault("bot.config_path", "conf/botconfig.json")
	v.SetDefault("bot.throttle_watch", "30s")
	v.SetDefault("log.level", "info")

	// файл необязателен; можно обойтись переменными окружения
	_ = v.ReadInConfig()

	cfg := appConfig{
		Endpoints:      v.GetStringSlice("interactive.endpoints"),
		Token:          strings.TrimSpace(v.GetString("interactive.token")),
		ProjectVersion: strings.TrimSpace(v.GetString("interactive.project_version")),
		Compression:    v.GetStringSlice("interactive.compression"),
		DiscoveryBase:  v.GetString("discovery.base_url"),
		ClientID:       v.GetString("discovery.client_id"),
		BotConfigPath:  v.GetString("bot.config_path"),
		ThrottleEvery:  v.GetDuration("bot.throttle_watch"),
		LogLevel:       v.GetString("log.level"),
	}

	if cfg.Token == "" {
		return appConfig{}, fmt.Errorf("interactive.token must not be empty (or set IB_INTERACTIVE_TOKEN)")
	}
	if cfg.BotConfigPath == "" {
		return appConfig{}, fmt.Errorf("bot.config_path must not be empty")
	}
	return cfg, nil
}

func initLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "interactivebot").Logger()
	zlog.Logger = logger
	return logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := initLogger(cfg.LogLevel)

	b := bot.New(log)

	gcfg := gameclient.Config{
		Endpoints:      cfg.Endpoints,
		Token:          cfg.Token,
		ProjectVersion: cfg.ProjectVersion,
		Compression:    cfg.Compression,
	}
	// явные адреса в приоритете; без них ходим в дискавери
	if len(cfg.Endpoints) == 0 {
		gcfg.Source = b.SetDiscovery(discovery.Config{
			BaseURL:  cfg.DiscoveryBase,
			ClientID: cfg.ClientID,
		})
	}
	b.SetGameClient(gcfg)

	// конфиг бота: кнопки, auto-ready, группа по умолчанию
	if err := b.UseConfig(cfg.BotConfigPath); err != nil {
		log.Fatal().Err(err).Msg("bot config failed")
	}

	if err := b.Start(); err != nil {
		log.Fatal().Err(err).Msg("bot start failed")
	}
	defer b.Stop()

	if cfg.ThrottleEvery > 0 {
		_ = b.StartThrottleWatch(cfg.ThrottleEvery)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}
