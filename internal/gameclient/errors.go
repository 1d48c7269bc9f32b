package gameclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected — операция требует активной сессии.
	ErrNotConnected = errors.New("gameclient: not connected")
	// ErrAlreadyConnected — Connect при уже идущей/установленной сессии.
	ErrAlreadyConnected = errors.New("gameclient: already connected")
	// ErrNoReply — базовая ошибка «запрос ушёл, ответа не будет».
	// Конкретика — причина внутри обёртки NoReplyError.
	ErrNoReply = errors.New("gameclient: no reply")
	// ErrCallTimeout — ответ не пришёл за отведённое время.
	ErrCallTimeout = errors.New("gameclient: call timed out")
	// ErrConnectionLost — сессия оборвалась, пока вызов ждал ответа.
	ErrConnectionLost = errors.New("gameclient: connection lost")
	// ErrSessionClosed — сессию закрыли (Disconnect), пока вызов ждал ответа.
	ErrSessionClosed = errors.New("gameclient: session closed")
	// ErrMalformedVarint — varint длиннее 5 групп либо оборван.
	ErrMalformedVarint = errors.New("gameclient: malformed varint")
	// ErrMalformedFrame — сжатый кадр не согласуется со своим префиксом длины.
	ErrMalformedFrame = errors.New("gameclient: malformed frame")
	// ErrNoEndpoints — источник адресов не дал ни одного хоста.
	ErrNoEndpoints = errors.New("gameclient: no endpoints to dial")
	// ErrHelloOverflow — сервер заполнил буфер входящих раньше, чем прислал
	// hello; рукопожатие прерывается. Приходит обёрнутым в ConnectError.
	ErrHelloOverflow = errors.New("gameclient: inbound buffer overflow before hello")
)

// ConnectError — не удалось установить сессию с конкретным хостом
// (dial, рукопожатие или таймаут ожидания hello).
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("gameclient: connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NoReplyError — вызов зарегистрирован и отправлен, но ответ не пришёл:
// таймаут ожидания, обрыв соединения или отмена контекста.
type NoReplyError struct {
	Method string
	ID     uint32
	Err    error
}

func (e *NoReplyError) Error() string {
	return fmt.Sprintf("gameclient: %s (id=%d): no reply: %v", e.Method, e.ID, e.Err)
}

func (e *NoReplyError) Unwrap() error { return e.Err }

// Is — чтобы errors.Is(err, ErrNoReply) работал для любой обёртки.
func (e *NoReplyError) Is(target error) bool { return target == ErrNoReply }

// ReplyError — сервер ответил на вызов пакетом с непустым error.
// Десериализуется прямо из конверта reply.
type ReplyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (e *ReplyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("gameclient: reply error %d at %q: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("gameclient: reply error %d: %s", e.Code, e.Message)
}
