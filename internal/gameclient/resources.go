package gameclient

import "encoding/json"

// Ресурсная модель сервиса в том виде, в каком она ходит по проводу.
// Неизвестные поля контролов/сцен (text, cost, progress и т.п.) остаются
// в Meta как сырой JSON — клиент их не интерпретирует.

// Scene — сцена с контролами; группы ссылаются на неё по SceneID.
type Scene struct {
	ID       string          `json:"sceneID"`
	Controls []Control       `json:"controls,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// Group — группа участников, привязанная к сцене.
type Group struct {
	ID      string          `json:"groupID"`
	SceneID string          `json:"sceneID,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// Participant — зритель, подключённый к интерактивной сессии.
type Participant struct {
	SessionID   string          `json:"sessionID"`
	UserID      uint64          `json:"userID,omitempty"`
	Username    string          `json:"username,omitempty"`
	Level       uint32          `json:"level,omitempty"`
	GroupID     string          `json:"groupID,omitempty"`
	Disabled    bool            `json:"disabled,omitempty"`
	ConnectedAt int64           `json:"connectedAt,omitempty"` // unix ms
	LastInputAt int64           `json:"lastInputAt,omitempty"` // unix ms
	Meta        json.RawMessage `json:"meta,omitempty"`
}

// Control — элемент управления внутри сцены. Cooldown — серверная метка
// времени (unix ms), до которой контрол заблокирован.
type Control struct {
	ID       string          `json:"controlID"`
	SceneID  string          `json:"sceneID,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Disabled bool            `json:"disabled,omitempty"`
	Cooldown int64           `json:"cooldown,omitempty"` // unix ms
	Meta     json.RawMessage `json:"meta,omitempty"`
}
