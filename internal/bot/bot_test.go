package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

func TestCooldownStamp(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	assert.Equal(t, int64(1_005_000), cooldownStamp(base, 5*time.Second))
	assert.Equal(t, int64(1_000_000), cooldownStamp(base, 0))

	// поправка часов уже внутри переданного времени
	adjusted := base.Add(250 * time.Millisecond)
	assert.Equal(t, int64(1_000_250+3_000), cooldownStamp(adjusted, 3*time.Second))
}

func TestRejectedDelta(t *testing.T) {
	prev := gameclient.ThrottleState{
		"giveInput": {Inserted: 100, Rejected: 5},
		"getTime":   {Inserted: 50, Rejected: 0},
		"vanished":  {Inserted: 1, Rejected: 1},
	}
	cur := gameclient.ThrottleState{
		"giveInput": {Inserted: 140, Rejected: 9}, // выросло на 4
		"getTime":   {Inserted: 60, Rejected: 0},  // без изменений
		"capture":   {Inserted: 3, Rejected: 2},   // новый метод
	}

	delta := rejectedDelta(prev, cur)
	assert.Equal(t, map[string]uint64{
		"giveInput": 4,
		"capture":   2,
	}, delta)

	assert.Empty(t, rejectedDelta(cur, cur))
}

func TestSetButton(t *testing.T) {
	b := New(zerolog.Nop())

	require.NoError(t, b.SetButton("btn-fire", "lobby", 5*time.Second, true, nil))
	require.Error(t, b.SetButton("", "lobby", 0, false, nil))

	b.mu.Lock()
	btn := b.buttons["btn-fire"]
	b.mu.Unlock()
	require.NotNil(t, btn)
	assert.Equal(t, "lobby", btn.sceneID)
	assert.Equal(t, 5*time.Second, btn.cooldown)
	assert.True(t, btn.capture)

	// пустая сцена — протокольная сцена по умолчанию
	require.NoError(t, b.SetButton("btn-2", "", 0, false, nil))
	b.mu.Lock()
	assert.Equal(t, "default", b.buttons["btn-2"].sceneID)
	b.mu.Unlock()

	b.RemoveButton("btn-fire")
	b.mu.Lock()
	assert.Nil(t, b.buttons["btn-fire"])
	b.mu.Unlock()
}

func TestConfigStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botconfig.json")

	cs := newConfigStore(path)
	cs.data = BotConfig{
		AutoReady:    true,
		DefaultGroup: "viewers",
		Buttons: []ButtonConf{
			{ID: "btn-fire", SceneID: "lobby", CooldownMs: 5000, Capture: true},
			{ID: "btn-heal", SceneID: "lobby", CooldownMs: 10000},
		},
		Throttle: map[string]ThrottleConf{
			"giveInput": {Capacity: 10_000_000, DrainRate: 3_000_000},
		},
	}
	require.NoError(t, cs.Save())

	restored := newConfigStore(path)
	require.NoError(t, restored.Load())
	assert.Equal(t, cs.data, restored.data)
}

func TestConfigStoreCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "botconfig.json")

	cs := newConfigStore(path)
	require.NoError(t, cs.Load())
	assert.Equal(t, BotConfig{}, cs.data)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestUseConfigRegistersButtons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botconfig.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"auto_ready": true,
		"default_group": "viewers",
		"buttons": [
			{"id": "btn-fire", "scene": "lobby", "cooldown_ms": 5000, "capture": true}
		],
		"throttle": {"giveInput": {"capacity": 1000, "drain_rate": 100}}
	}`), 0644))

	b := New(zerolog.Nop())
	require.NoError(t, b.UseConfig(path))

	b.mu.Lock()
	btn := b.buttons["btn-fire"]
	b.mu.Unlock()
	require.NotNil(t, btn)
	assert.Equal(t, 5*time.Second, btn.cooldown)
	assert.True(t, btn.capture)

	assert.True(t, b.autoReady())
	assert.Equal(t, "viewers", b.defaultGroup())

	rules := b.throttleRules()
	require.Contains(t, rules, "giveInput")
	assert.Equal(t, uint64(1000), rules["giveInput"].Capacity)
	assert.Equal(t, uint64(100), rules["giveInput"].DrainRate)
}
