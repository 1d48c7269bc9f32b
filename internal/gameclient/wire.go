package gameclient

import "encoding/json"

// Версия протокола, заявляемая при рукопожатии.
const protocolVersion = "2.0"

// Типы пакетов протокола.
const (
	packetMethod = "method"
	packetReply  = "reply"
)

// envelope — JSON-конверт протокола, общий для обоих направлений.
// У method заполнены Method/Params/Discard, у reply — Result либо Error
// (взаимоисключающе); ID связывает reply с вызовом.
type envelope struct {
	Type    string          `json:"type"`
	ID      uint32          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Discard bool            `json:"discard,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ReplyError     `json:"error,omitempty"`
}

// emptyParams — протокол ожидает объект даже у методов без аргументов.
var emptyParams = json.RawMessage(`{}`)

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return emptyParams, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}

// methodEnvelope собирает конверт исходящего вызова.
func methodEnvelope(id uint32, method string, params any, discard bool) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&envelope{
		Type:    packetMethod,
		ID:      id,
		Method:  method,
		Params:  raw,
		Discard: discard,
	})
}
