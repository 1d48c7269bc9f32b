package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

func ev(t *testing.T, kind gameclient.EventKind, params any) *gameclient.Event {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return &gameclient.Event{Kind: kind, Method: string(kind), Params: raw}
}

func newTestCache() *Cache {
	return NewCache(zerolog.Nop())
}

func TestCacheScenes(t *testing.T) {
	c := newTestCache()

	c.Apply(ev(t, gameclient.KindSceneCreate, map[string]any{
		"scenes": []map[string]any{
			{
				"sceneID": "lobby",
				"controls": []map[string]any{
					{"controlID": "btn-b", "kind": "button"},
					{"controlID": "btn-a", "kind": "button"},
				},
			},
			{"sceneID": "arena"},
		},
	}))

	scenes := c.Scenes()
	require.Len(t, scenes, 2)
	assert.Equal(t, "arena", scenes[0].ID)
	assert.Equal(t, "lobby", scenes[1].ID)

	// контролы сцены отсортированы и привязаны к ней
	lobby, ok := c.Scene("lobby")
	require.True(t, ok)
	require.Len(t, lobby.Controls, 2)
	assert.Equal(t, "btn-a", lobby.Controls[0].ID)
	assert.Equal(t, "btn-b", lobby.Controls[1].ID)
	assert.Equal(t, "lobby", lobby.Controls[0].SceneID)

	// update меняет мету, контролы остаются
	c.Apply(ev(t, gameclient.KindSceneUpdate, map[string]any{
		"scenes": []map[string]any{
			{"sceneID": "lobby", "meta": map[string]any{"title": "Main"}},
		},
	}))
	lobby, ok = c.Scene("lobby")
	require.True(t, ok)
	assert.Len(t, lobby.Controls, 2)
	assert.NotNil(t, lobby.Meta)

	// снимок — копия: правки снаружи кэш не трогают
	snap := c.Scenes()
	snap[0].ID = "hacked"
	_, ok = c.Scene("arena")
	assert.True(t, ok)
}

func TestCacheSceneDeleteReassignsGroups(t *testing.T) {
	c := newTestCache()
	c.Apply(ev(t, gameclient.KindSceneCreate, map[string]any{
		"scenes": []map[string]any{
			{"sceneID": "lobby", "controls": []map[string]any{{"controlID": "btn-a"}}},
			{"sceneID": "default"},
		},
	}))
	c.Apply(ev(t, gameclient.KindGroupCreate, map[string]any{
		"groups": []map[string]any{{"groupID": "red", "sceneID": "lobby"}},
	}))

	c.Apply(ev(t, gameclient.KindSceneDelete, map[string]any{
		"sceneID":         "lobby",
		"reassignSceneID": "default",
	}))

	_, ok := c.Scene("lobby")
	assert.False(t, ok)
	assert.Empty(t, c.Controls("lobby"))

	g, ok := c.Group("red")
	require.True(t, ok)
	assert.Equal(t, "default", g.SceneID)
}

func TestCacheGroupDeleteReassignsParticipants(t *testing.T) {
	c := newTestCache()
	c.Apply(ev(t, gameclient.KindGroupCreate, map[string]any{
		"groups": []map[string]any{
			{"groupID": "red", "sceneID": "lobby"},
			{"groupID": "default", "sceneID": "lobby"},
		},
	}))
	c.Apply(ev(t, gameclient.KindParticipantJoin, map[string]any{
		"participants": []map[string]any{
			{"sessionID": "s1", "username": "viewer1", "groupID": "red"},
		},
	}))

	c.Apply(ev(t, gameclient.KindGroupDelete, map[string]any{
		"groupID":         "red",
		"reassignGroupID": "default",
	}))

	_, ok := c.Group("red")
	assert.False(t, ok)
	p, ok := c.Participant("s1")
	require.True(t, ok)
	assert.Equal(t, "default", p.GroupID)
}

func TestCacheParticipants(t *testing.T) {
	c := newTestCache()
	c.Apply(ev(t, gameclient.KindParticipantJoin, map[string]any{
		"participants": []map[string]any{
			{"sessionID": "s2", "username": "bob", "userID": 7},
			{"sessionID": "s1", "username": "alice", "userID": 3},
		},
	}))

	parts := c.Participants()
	require.Len(t, parts, 2)
	assert.Equal(t, "alice", parts[0].Username)
	assert.Equal(t, "bob", parts[1].Username)

	c.Apply(ev(t, gameclient.KindParticipantUpdate, map[string]any{
		"participants": []map[string]any{
			{"sessionID": "s1", "username": "alice", "userID": 3, "groupID": "red"},
		},
	}))
	p, ok := c.Participant("s1")
	require.True(t, ok)
	assert.Equal(t, "red", p.GroupID)

	c.Apply(ev(t, gameclient.KindParticipantLeave, map[string]any{
		"participants": []map[string]any{{"sessionID": "s2"}},
	}))
	_, ok = c.Participant("s2")
	assert.False(t, ok)
	assert.Len(t, c.Participants(), 1)
}

func TestCacheInputStampsLastInput(t *testing.T) {
	c := newTestCache()
	c.now = func() time.Time { return time.UnixMilli(1_234_567) }

	c.Apply(ev(t, gameclient.KindParticipantJoin, map[string]any{
		"participants": []map[string]any{{"sessionID": "s1", "username": "alice"}},
	}))
	c.Apply(ev(t, gameclient.KindGiveInput, map[string]any{
		"participantID": "s1",
		"input":         map[string]string{"controlID": "btn-a", "event": "mousedown"},
	}))

	p, ok := c.Participant("s1")
	require.True(t, ok)
	assert.Equal(t, int64(1_234_567), p.LastInputAt)

	// ввод незнакомого участника не создаёт записи
	c.Apply(ev(t, gameclient.KindGiveInput, map[string]any{
		"participantID": "ghost",
		"input":         map[string]string{"controlID": "btn-a", "event": "mousedown"},
	}))
	_, ok = c.Participant("ghost")
	assert.False(t, ok)
}

func TestCacheControls(t *testing.T) {
	c := newTestCache()
	c.Apply(ev(t, gameclient.KindControlCreate, map[string]any{
		"sceneID": "lobby",
		"controls": []map[string]any{
			{"controlID": "btn-a", "kind": "button"},
			{"controlID": "joy-1", "kind": "joystick"},
		},
	}))

	ctl, ok := c.Control("lobby", "btn-a")
	require.True(t, ok)
	assert.Equal(t, "button", ctl.Kind)

	c.Apply(ev(t, gameclient.KindControlUpdate, map[string]any{
		"sceneID": "lobby",
		"controls": []map[string]any{
			{"controlID": "btn-a", "kind": "button", "disabled": true},
		},
	}))
	ctl, _ = c.Control("lobby", "btn-a")
	assert.True(t, ctl.Disabled)

	c.Apply(ev(t, gameclient.KindControlDelete, map[string]any{
		"sceneID":  "lobby",
		"controls": []map[string]any{{"controlID": "btn-a"}, {"controlID": "joy-1"}},
	}))
	assert.Empty(t, c.Controls("lobby"))
}

func TestCacheReadyAndReset(t *testing.T) {
	c := newTestCache()
	assert.False(t, c.Ready())

	c.Apply(ev(t, gameclient.KindReady, map[string]bool{"isReady": true}))
	assert.True(t, c.Ready())

	c.Apply(ev(t, gameclient.KindSceneCreate, map[string]any{
		"scenes": []map[string]any{{"sceneID": "lobby"}},
	}))
	c.Apply(ev(t, gameclient.KindParticipantJoin, map[string]any{
		"participants": []map[string]any{{"sessionID": "s1"}},
	}))

	scenes, groups, parts, controls := c.Stats()
	assert.Equal(t, 1, scenes)
	assert.Equal(t, 0, groups)
	assert.Equal(t, 1, parts)
	assert.Equal(t, 0, controls)

	c.Reset()
	assert.False(t, c.Ready())
	scenes, _, parts, _ = c.Stats()
	assert.Zero(t, scenes)
	assert.Zero(t, parts)
}

func TestCacheSeedScenes(t *testing.T) {
	c := newTestCache()
	c.Apply(ev(t, gameclient.KindSceneCreate, map[string]any{
		"scenes": []map[string]any{{"sceneID": "stale"}},
	}))
	c.Apply(ev(t, gameclient.KindGroupCreate, map[string]any{
		"groups": []map[string]any{{"groupID": "red"}},
	}))

	c.SeedScenes([]gameclient.Scene{
		{ID: "lobby", Controls: []gameclient.Control{{ID: "btn-a", Kind: "button"}}},
	})

	// сцены заменились целиком, группы уцелели
	_, ok := c.Scene("stale")
	assert.False(t, ok)
	lobby, ok := c.Scene("lobby")
	require.True(t, ok)
	require.Len(t, lobby.Controls, 1)
	assert.Equal(t, "lobby", lobby.Controls[0].SceneID)
	_, ok = c.Group("red")
	assert.True(t, ok)
}

func TestCacheMalformedEventIgnored(t *testing.T) {
	c := newTestCache()
	c.Apply(&gameclient.Event{
		Kind:   gameclient.KindSceneCreate,
		Method: "onSceneCreate",
		Params: json.RawMessage(`{broken`),
	})
	assert.Empty(t, c.Scenes())
}
