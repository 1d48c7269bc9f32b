package bot

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

type ButtonConf struct {
	ID         string `json:"id" mapstructure:"id"`
	SceneID    string `json:"scene" mapstructure:"scene"`
	CooldownMs int64  `json:"cooldown_ms" mapstructure:"cooldown_ms"`
	Capture    bool   `json:"capture" mapstructure:"capture"`
}

type ThrottleConf struct {
	Capacity  uint64 `json:"capacity" mapstructure:"capacity"`
	DrainRate uint64 `json:"drain_rate" mapstructure:"drain_rate"`
}

type BotConfig struct {
	// AutoReady — заявлять готовность сразу после (ре)подключения.
	AutoReady bool `json:"auto_ready" mapstructure:"auto_ready"`
	// DefaultGroup — куда переводить новых участников ("" — не трогать).
	DefaultGroup string       `json:"default_group" mapstructure:"default_group"`
	Buttons      []ButtonConf `json:"buttons" mapstructure:"buttons"`
	// Throttle применяется по issueMemoryWarning.
	Throttle map[string]ThrottleConf `json:"throttle" mapstructure:"throttle"`
}

type configStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
	data BotConfig
}

// UseConfig загружает конфиг бота и применяет его: регистрирует кнопки.
// Отсутствующий файл создаётся пустым.
func (bot *InteractiveBot) UseConfig(path string) error {
	bot.cfg = newConfigStore(path)
	if err := bot.cfg.Load(); err != nil {
		return err
	}
	for _, b := range bot.cfg.data.Buttons {
		if err := bot.SetButton(b.ID, b.SceneID,
			time.Duration(b.CooldownMs)*time.Millisecond, b.Capture, nil); err != nil {
			return err
		}
	}
	return nil
}

// SaveConfig сохраняет текущий конфиг на диск.
func (bot *InteractiveBot) SaveConfig() error {
	if bot.cfg == nil {
		return errors.New("конфиг не подключён")
	}
	return bot.cfg.Save()
}

func (bot *InteractiveBot) autoReady() bool {
	if bot.cfg == nil {
		return false
	}
	bot.cfg.mu.Lock()
	defer bot.cfg.mu.Unlock()
	return bot.cfg.data.AutoReady
}

func (bot *InteractiveBot) defaultGroup() string {
	if bot.cfg == nil {
		return ""
	}
	bot.cfg.mu.Lock()
	defer bot.cfg.mu.Unlock()
	return bot.cfg.data.DefaultGroup
}

func (bot *InteractiveBot) throttleRules() map[string]gameclient.ThrottleRule {
	if bot.cfg == nil {
		return nil
	}
	bot.cfg.mu.Lock()
	defer bot.cfg.mu.Unlock()
	if len(bot.cfg.data.Throttle) == 0 {
		return nil
	}
	rules := make(map[string]gameclient.ThrottleRule, len(bot.cfg.data.Throttle))
	for method, tc := range bot.cfg.data.Throttle {
		rules[method] = gameclient.ThrottleRule{Capacity: tc.Capacity, DrainRate: tc.DrainRate}
	}
	return rules
}

func newConfigStore(path string) *configStore {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return &configStore{v: v, path: path}
}

func (cs *configStore) Load() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_ = os.MkdirAll(filepath.Dir(cs.path), 0755)
	if err := cs.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if os.IsNotExist(err) || errors.As(err, &notFound) {
			return cs.saveLocked() // создаём пустой
		}
		return err
	}
	return cs.v.Unmarshal(&cs.data)
}

func (cs *configStore) Save() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.saveLocked()
}

func (cs *configStore) saveLocked() error {
	cs.v.Set("auto_ready", cs.data.AutoReady)
	cs.v.Set("default_group", cs.data.DefaultGroup)
	cs.v.Set("buttons", cs.data.Buttons)
	cs.v.Set("throttle", cs.data.Throttle)
	return cs.v.WriteConfigAs(cs.path)
}
