package gameclient

import "encoding/json"

// EventKind — вид входящего серверного метода.
type EventKind string

const (
	// KindAny — подписка на все события без разбора.
	KindAny EventKind = "*"
	// KindUndefined — метод, которого клиент не знает (см. Event.Method).
	KindUndefined EventKind = "undefined"

	KindHello         EventKind = "hello"
	KindReady         EventKind = "onReady"
	KindMemoryWarning EventKind = "issueMemoryWarning"
	KindGiveInput     EventKind = "giveInput"

	KindParticipantJoin   EventKind = "onParticipantJoin"
	KindParticipantLeave  EventKind = "onParticipantLeave"
	KindParticipantUpdate EventKind = "onParticipantUpdate"

	KindSceneCreate EventKind = "onSceneCreate"
	KindSceneUpdate EventKind = "onSceneUpdate"
	KindSceneDelete EventKind = "onSceneDelete"

	KindGroupCreate EventKind = "onGroupCreate"
	KindGroupUpdate EventKind = "onGroupUpdate"
	KindGroupDelete EventKind = "onGroupDelete"

	KindControlCreate EventKind = "onControlCreate"
	KindControlUpdate EventKind = "onControlUpdate"
	KindControlDelete EventKind = "onControlDelete"
)

var knownMethods = map[string]EventKind{
	"hello":               KindHello,
	"onReady":             KindReady,
	"issueMemoryWarning":  KindMemoryWarning,
	"giveInput":           KindGiveInput,
	"onParticipantJoin":   KindParticipantJoin,
	"onParticipantLeave":  KindParticipantLeave,
	"onParticipantUpdate": KindParticipantUpdate,
	"onSceneCreate":       KindSceneCreate,
	"onSceneUpdate":       KindSceneUpdate,
	"onSceneDelete":       KindSceneDelete,
	"onGroupCreate":       KindGroupCreate,
	"onGroupUpdate":       KindGroupUpdate,
	"onGroupDelete":       KindGroupDelete,
	"onControlCreate":     KindControlCreate,
	"onControlUpdate":     KindControlUpdate,
	"onControlDelete":     KindControlDelete,
}

// Event — входящий серверный метод, доставленный подписчикам.
// Params — сырое тело; типизированные разборы ниже (Input, Participants...).
type Event struct {
	Kind   EventKind
	Method string // исходное имя метода, полезно при KindUndefined
	Params json.RawMessage
}

func newEvent(method string, params json.RawMessage) *Event {
	kind, ok := knownMethods[method]
	if !ok {
		kind = KindUndefined
	}
	return &Event{Kind: kind, Method: method, Params: params}
}

// ========================= типизированные тела =========================

// InputEvent — тело giveInput: кто нажал, что нажал и spark-транзакция,
// которую можно подтвердить через Capture.
type InputEvent struct {
	ParticipantID string          `json:"participantID"`
	TransactionID string          `json:"transactionID,omitempty"`
	Input         json.RawMessage `json:"input"`
}

// ControlInput — общая часть input: идентификатор контрола и вид жеста.
// Остальные поля зависят от типа контрола и разбираются по месту.
type ControlInput struct {
	ControlID string `json:"controlID"`
	Event     string `json:"event"`
}

// ReadyEvent — тело onReady.
type ReadyEvent struct {
	IsReady bool `json:"isReady"`
}

// MemoryWarningEvent — тело issueMemoryWarning: сервису тесно, пора
// освобождать ресурсы и придушить трафик.
type MemoryWarningEvent struct {
	UsedBytes  int64           `json:"usedBytes"`
	TotalBytes int64           `json:"totalBytes"`
	Resources  json.RawMessage `json:"resources,omitempty"`
}

// Input разбирает тело giveInput.
func (e *Event) Input() (*InputEvent, error) {
	var in InputEvent
	if err := json.Unmarshal(e.Params, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// ControlInput достаёт общую часть input из тела giveInput.
func (in *InputEvent) ControlInput() (*ControlInput, error) {
	var ci ControlInput
	if err := json.Unmarshal(in.Input, &ci); err != nil {
		return nil, err
	}
	return &ci, nil
}

// Ready разбирает тело onReady.
func (e *Event) Ready() (*ReadyEvent, error) {
	var r ReadyEvent
	if err := json.Unmarshal(e.Params, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MemoryWarning разбирает тело issueMemoryWarning.
func (e *Event) MemoryWarning() (*MemoryWarningEvent, error) {
	var mw MemoryWarningEvent
	if err := json.Unmarshal(e.Params, &mw); err != nil {
		return nil, err
	}
	return &mw, nil
}

// Participants разбирает тела onParticipantJoin/Leave/Update.
func (e *Event) Participants() ([]Participant, error) {
	var body struct {
		Participants []Participant `json:"participants"`
	}
	if err := json.Unmarshal(e.Params, &body); err != nil {
		return nil, err
	}
	return body.Participants, nil
}

// Scenes разбирает тела onSceneCreate/Update.
func (e *Event) Scenes() ([]Scene, error) {
	var body struct {
		Scenes []Scene `json:"scenes"`
	}
	if err := json.Unmarshal(e.Params, &body); err != nil {
		return nil, err
	}
	return body.Scenes, nil
}

// Groups разбирает тела onGroupCreate/Update.
func (e *Event) Groups() ([]Group, error) {
	var body struct {
		Groups []Group `json:"groups"`
	}
	if err := json.Unmarshal(e.Params, &body); err != nil {
		return nil, err
	}
	return body.Groups, nil
}

// Controls разбирает тела onControlCreate/Update/Delete; сцена приходит
// рядом со списком, поэтому возвращается отдельно.
func (e *Event) Controls() (sceneID string, controls []Control, err error) {
	var body struct {
		SceneID  string    `json:"sceneID"`
		Controls []Control `json:"controls"`
	}
	if err := json.Unmarshal(e.Params, &body); err != nil {
		return "", nil, err
	}
	return body.SceneID, body.Controls, nil
}

// Deleted разбирает тела onSceneDelete/onGroupDelete: что удалили и куда
// переназначить осиротевших.
func (e *Event) Deleted() (id, reassignID string, err error) {
	var body struct {
		SceneID         string `json:"sceneID,omitempty"`
		ReassignSceneID string `json:"reassignSceneID,omitempty"`
		GroupID         string `json:"groupID,omitempty"`
		ReassignGroupID string `json:"reassignGroupID,omitempty"`
	}
	if err := json.Unmarshal(e.Params, &body); err != nil {
		return "", "", err
	}
	if body.GroupID != "" {
		return body.GroupID, body.ReassignGroupID, nil
	}
	return body.SceneID, body.ReassignSceneID, nil
}
