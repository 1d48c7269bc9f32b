package gameclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ========================= high-level API =========================

// Ready сообщает сервису, готова ли игра принимать ввод зрителей.
func (c *GameClient) Ready(ctx context.Context, isReady bool) error {
	_, err := c.Call(ctx, "ready", map[string]bool{"isReady": isReady})
	return err
}

// ServerTime запрашивает серверные часы (один вызов getTime, без усреднения).
func (c *GameClient) ServerTime(ctx context.Context) (time.Time, error) {
	ms, err := c.sampleTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// Capture подтверждает spark-транзакцию из giveInput — списывает стоимость.
func (c *GameClient) Capture(ctx context.Context, transactionID string) error {
	_, err := c.Call(ctx, "capture", map[string]string{"transactionID": transactionID})
	return err
}

// ========================= сцены =========================

func (c *GameClient) Scenes(ctx context.Context) ([]Scene, error) {
	raw, err := c.Call(ctx, "getScenes", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Scenes []Scene `json:"scenes"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body.Scenes, nil
}

func (c *GameClient) CreateScenes(ctx context.Context, scenes ...Scene) error {
	_, err := c.Call(ctx, "createScenes", map[string]any{"scenes": scenes})
	return err
}

// DeleteScene удаляет сцену; её группы переводятся на reassignSceneID.
func (c *GameClient) DeleteScene(ctx context.Context, sceneID, reassignSceneID string) error {
	_, err := c.Call(ctx, "deleteScene", map[string]string{
		"sceneID":         sceneID,
		"reassignSceneID": reassignSceneID,
	})
	return err
}

// ========================= группы =========================

func (c *GameClient) CreateGroups(ctx context.Context, groups ...Group) error {
	_, err := c.Call(ctx, "createGroups", map[string]any{"groups": groups})
	return err
}

func (c *GameClient) UpdateGroups(ctx context.Context, groups ...Group) error {
	_, err := c.Call(ctx, "updateGroups", map[string]any{"groups": groups})
	return err
}

// DeleteGroup удаляет группу; участники переводятся в reassignGroupID.
func (c *GameClient) DeleteGroup(ctx context.Context, groupID, reassignGroupID string) error {
	_, err := c.Call(ctx, "deleteGroup", map[string]string{
		"groupID":         groupID,
		"reassignGroupID": reassignGroupID,
	})
	return err
}

// ========================= контролы =========================

func (c *GameClient) CreateControls(ctx context.Context, sceneID string, controls ...Control) error {
	_, err := c.Call(ctx, "createControls", map[string]any{
		"sceneID":  sceneID,
		"controls": controls,
	})
	return err
}

func (c *GameClient) UpdateControls(ctx context.Context, sceneID string, controls ...Control) error {
	_, err := c.Call(ctx, "updateControls", map[string]any{
		"sceneID":  sceneID,
		"controls": controls,
	})
	return err
}

func (c *GameClient) DeleteControls(ctx context.Context, sceneID string, controlIDs ...string) error {
	_, err := c.Call(ctx, "deleteControls", map[string]any{
		"sceneID":    sceneID,
		"controlIDs": controlIDs,
	})
	return err
}

// ========================= участники =========================

// UpdateParticipants меняет атрибуты участников (обычно groupID/disabled).
func (c *GameClient) UpdateParticipants(ctx context.Context, participants ...Participant) error {
	_, err := c.Call(ctx, "updateParticipants", map[string]any{"participants": participants})
	return err
}

// ========================= сжатие и троттлинг =========================

// SetCompression предлагает серверу схемы сжатия и переключает кодек на
// выбранную. Возвращает действующую схему.
func (c *GameClient) SetCompression(ctx context.Context, schemes ...string) (string, error) {
	raw, err := c.Call(ctx, "setCompression", map[string]any{"scheme": schemes})
	if err != nil {
		return "", err
	}
	var body struct {
		Scheme string `json:"scheme"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if body.Scheme == "" {
		body.Scheme = SchemeNone
	}
	if !supportedSchemes[body.Scheme] {
		return "", fmt.Errorf("gameclient: server picked unsupported scheme %q", body.Scheme)
	}
	if s := c.sess.Load(); s != nil {
		s.setScheme(body.Scheme)
	}
	return body.Scheme, nil
}

// ThrottleRule — ведро для setBandwidthThrottle: ёмкость и скорость слива,
// байт и байт/сек соответственно.
type ThrottleRule struct {
	Capacity  uint64 `json:"capacity"`
	DrainRate uint64 `json:"drainRate"`
}

// MethodThrottle — счётчики одного метода: сколько сообщений вошло в ведро
// и сколько отбросил троттлинг.
type MethodThrottle struct {
	Inserted uint64 `json:"inserted"`
	Rejected uint64 `json:"rejected"`
}

// ThrottleState — счётчики троттлинга по именам методов.
type ThrottleState map[string]MethodThrottle

// SetBandwidthThrottle задаёт ограничения трафика по методам. Подтверждение
// несёт текущие счётчики — снимок кэшируется, как и у ThrottleStats.
func (c *GameClient) SetBandwidthThrottle(ctx context.Context, rules map[string]ThrottleRule) error {
	raw, err := c.Call(ctx, "setBandwidthThrottle", rules)
	if err != nil {
		return err
	}
	var st ThrottleState
	if err := json.Unmarshal(raw, &st); err == nil && len(st) > 0 {
		c.throttle.Store(&st)
	}
	return nil
}

// ThrottleStats запрашивает счётчики троттлинга и кэширует снимок.
func (c *GameClient) ThrottleStats(ctx context.Context) (ThrottleState, error) {
	raw, err := c.Call(ctx, "getThrottleState", nil)
	if err != nil {
		return nil, err
	}
	var st ThrottleState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	c.throttle.Store(&st)
	return st, nil
}

// LastThrottleStats — последний успешно полученный снимок счётчиков.
func (c *GameClient) LastThrottleStats() ThrottleState {
	if p := c.throttle.Load(); p != nil {
		return *p
	}
	return nil
}
