package state

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

// Cache — локальное зеркало ресурсов интерактивной сессии: сцены, группы,
// участники и контролы, собранные из серверных событий. Снимки отдаются
// копиями в детерминированном порядке.
type Cache struct {
	mu           sync.RWMutex
	scenes       map[string]gameclient.Scene
	groups       map[string]gameclient.Group
	participants map[string]gameclient.Participant        // ключ — sessionID
	controls     map[string]map[string]gameclient.Control // sceneID -> controlID
	ready        bool

	log zerolog.Logger

	// для штампа LastInputAt; подменяется в тестах
	now func() time.Time
}

func NewCache(log zerolog.Logger) *Cache {
	c := &Cache{
		log: log.With().Str("comp", "state").Logger(),
		now: time.Now,
	}
	c.resetLocked()
	return c
}

func (c *Cache) resetLocked() {
	c.scenes = map[string]gameclient.Scene{}
	c.groups = map[string]gameclient.Group{}
	c.participants = map[string]gameclient.Participant{}
	c.controls = map[string]map[string]gameclient.Control{}
	c.ready = false
}

// Reset сбрасывает кэш в пустое состояние (например, по issueMemoryWarning).
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.log.Debug().Msg("cache reset")
}

// Bind подписывает кэш на все события клиента. Возвращает id подписки.
func (c *Cache) Bind(cli *gameclient.GameClient) uint64 {
	return cli.Subscribe(gameclient.KindAny, c.Apply)
}

// SeedScenes заливает полный снимок сцен (ответ getScenes после
// (ре)подключения): сцены и контролы заменяются целиком, группы и
// участники не трогаются.
func (c *Cache) SeedScenes(scenes []gameclient.Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes = map[string]gameclient.Scene{}
	c.controls = map[string]map[string]gameclient.Control{}
	for _, sc := range scenes {
		m := c.controlsLocked(sc.ID)
		for _, ctl := range sc.Controls {
			ctl.SceneID = sc.ID
			m[ctl.ID] = ctl
		}
		sc.Controls = nil
		c.scenes[sc.ID] = sc
	}
	c.log.Debug().Int("scenes", len(scenes)).Msg("scenes seeded")
}

// ========================= применение событий =========================

// Apply накатывает одно серверное событие на кэш. Незнакомые события
// игнорируются; битое тело — предупреждение в лог, кэш не трогаем.
func (c *Cache) Apply(ev *gameclient.Event) {
	var err error
	switch ev.Kind {
	case gameclient.KindReady:
		err = c.applyReady(ev)
	case gameclient.KindSceneCreate, gameclient.KindSceneUpdate:
		err = c.applyScenes(ev, ev.Kind == gameclient.KindSceneCreate)
	case gameclient.KindSceneDelete:
		err = c.applySceneDelete(ev)
	case gameclient.KindGroupCreate, gameclient.KindGroupUpdate:
		err = c.applyGroups(ev)
	case gameclient.KindGroupDelete:
		err = c.applyGroupDelete(ev)
	case gameclient.KindParticipantJoin, gameclient.KindParticipantUpdate:
		err = c.applyParticipants(ev)
	case gameclient.KindParticipantLeave:
		err = c.applyParticipantLeave(ev)
	case gameclient.KindControlCreate, gameclient.KindControlUpdate:
		err = c.applyControls(ev)
	case gameclient.KindControlDelete:
		err = c.applyControlDelete(ev)
	case gameclient.KindGiveInput:
		err = c.applyInput(ev)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("method", ev.Method).Msg("event not applied")
	}
}

func (c *Cache) applyReady(ev *gameclient.Event) error {
	r, err := ev.Ready()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.ready = r.IsReady
	c.mu.Unlock()
	return nil
}

func (c *Cache) applyScenes(ev *gameclient.Event, seedControls bool) error {
	scenes, err := ev.Scenes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sc := range scenes {
		// контролы живут в своей карте; в записи сцены их не дублируем
		if seedControls {
			m := c.controlsLocked(sc.ID)
			for _, ctl := range sc.Controls {
				ctl.SceneID = sc.ID
				m[ctl.ID] = ctl
			}
		}
		sc.Controls = nil
		c.scenes[sc.ID] = sc
	}
	return nil
}

func (c *Cache) applySceneDelete(ev *gameclient.Event) error {
	id, reassign, err := ev.Deleted()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scenes, id)
	delete(c.controls, id)
	// осиротевшие группы переезжают на reassign-сцену
	for gid, g := range c.groups {
		if g.SceneID == id {
			g.SceneID = reassign
			c.groups[gid] = g
		}
	}
	return nil
}

func (c *Cache) applyGroups(ev *gameclient.Event) error {
	groups, err := ev.Groups()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range groups {
		c.groups[g.ID] = g
	}
	return nil
}

func (c *Cache) applyGroupDelete(ev *gameclient.Event) error {
	id, reassign, err := ev.Deleted()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, id)
	// участники удалённой группы переезжают в reassign-группу
	for sid, p := range c.participants {
		if p.GroupID == id {
			p.GroupID = reassign
			c.participants[sid] = p
		}
	}
	return nil
}

func (c *Cache) applyParticipants(ev *gameclient.Event) error {
	parts, err := ev.Participants()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range parts {
		c.participants[p.SessionID] = p
	}
	return nil
}

func (c *Cache) applyParticipantLeave(ev *gameclient.Event) error {
	parts, err := ev.Participants()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range parts {
		delete(c.participants, p.SessionID)
	}
	return nil
}

func (c *Cache) applyControls(ev *gameclient.Event) error {
	sceneID, controls, err := ev.Controls()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.controlsLocked(sceneID)
	for _, ctl := range controls {
		ctl.SceneID = sceneID
		m[ctl.ID] = ctl
	}
	return nil
}

func (c *Cache) applyControlDelete(ev *gameclient.Event) error {
	sceneID, controls, err := ev.Controls()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.controls[sceneID]
	for _, ctl := range controls {
		delete(m, ctl.ID)
	}
	if len(m) == 0 {
		delete(c.controls, sceneID)
	}
	return nil
}

// applyInput штампует время последнего ввода участника.
func (c *Cache) applyInput(ev *gameclient.Event) error {
	in, err := ev.Input()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.participants[in.ParticipantID]; ok {
		p.LastInputAt = c.now().UnixMilli()
		c.participants[in.ParticipantID] = p
	}
	return nil
}

func (c *Cache) controlsLocked(sceneID string) map[string]gameclient.Control {
	m := c.controls[sceneID]
	if m == nil {
		m = map[string]gameclient.Control{}
		c.controls[sceneID] = m
	}
	return m
}

// ========================= снимки =========================

// Ready — последнее объявленное сервером состояние готовности.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Cache) Scene(id string) (gameclient.Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.scenes[id]
	if !ok {
		return gameclient.Scene{}, false
	}
	sc.Controls = c.sceneControlsLocked(id)
	return sc, true
}

func (c *Cache) Scenes() []gameclient.Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gameclient.Scene, 0, len(c.scenes))
	for id, sc := range c.scenes {
		sc.Controls = c.sceneControlsLocked(id)
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Cache) Group(id string) (gameclient.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[id]
	return g, ok
}

func (c *Cache) Groups() []gameclient.Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gameclient.Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Cache) Participant(sessionID string) (gameclient.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[sessionID]
	return p, ok
}

func (c *Cache) Participants() []gameclient.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gameclient.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (c *Cache) Control(sceneID, controlID string) (gameclient.Control, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctl, ok := c.controls[sceneID][controlID]
	return ctl, ok
}

func (c *Cache) Controls(sceneID string) []gameclient.Control {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sceneControlsLocked(sceneID)
}

func (c *Cache) sceneControlsLocked(sceneID string) []gameclient.Control {
	m := c.controls[sceneID]
	if len(m) == 0 {
		return nil
	}
	out := make([]gameclient.Control, 0, len(m))
	for _, ctl := range m {
		out = append(out, ctl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats — размеры кэша, пригодится при реакции на issueMemoryWarning.
func (c *Cache) Stats() (scenes, groups, participants, controls int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.controls {
		controls += len(m)
	}
	return len(c.scenes), len(c.groups), len(c.participants), controls
}
