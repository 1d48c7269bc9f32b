package gameclient

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// callResult — единственное, что когда-либо попадёт в канал ожидающего:
// либо сырой result, либо ошибка.
type callResult struct {
	raw json.RawMessage
	err error
}

// pendingCall — зарегистрированный вызов, ждущий reply с тем же id.
type pendingCall struct {
	id     uint32
	method string
	ch     chan callResult // cap 1, пишется ровно один раз
}

// registry — реестр транзакций: выдаёт id и сводит reply с ожидающими.
// Инвариант: каждый зарегистрированный вызов разрешается ровно один раз —
// запись в канал возможна только после удаления записи из pend под мьютексом,
// так что у гонки settle/drop всегда один победитель.
type registry struct {
	seq uint32 // atomic

	mu   sync.Mutex
	pend map[uint32]*pendingCall

	log zerolog.Logger
}

func newRegistry(log zerolog.Logger) *registry {
	return &registry{
		pend: make(map[uint32]*pendingCall),
		log:  log,
	}
}

// next выдаёт следующий идентификатор вызова. Счётчик монотонный на всё
// время жизни клиента и не сбрасывается при реконнектах.
func (r *registry) next() uint32 {
	return atomic.AddUint32(&r.seq, 1)
}

func (r *registry) register(id uint32, method string) *pendingCall {
	p := &pendingCall{id: id, method: method, ch: make(chan callResult, 1)}
	r.mu.Lock()
	r.pend[id] = p
	r.mu.Unlock()
	return p
}

// settle разрешает вызов пришедшим reply. Неизвестный id — поздний ответ
// на уже снятый вызов, просто фиксируем в логе.
func (r *registry) settle(id uint32, raw json.RawMessage, err error) {
	r.mu.Lock()
	p, ok := r.pend[id]
	if ok {
		delete(r.pend, id)
	}
	r.mu.Unlock()
	if !ok {
		r.log.Debug().Uint32("id", id).Msg("reply for unknown call")
		return
	}
	p.ch <- callResult{raw: raw, err: err}
}

// drop снимает вызов с ожидания (таймаут/отмена/неудачная запись).
// false означает проигрыш гонки: settle уже положил результат в канал.
func (r *registry) drop(id uint32) bool {
	r.mu.Lock()
	_, ok := r.pend[id]
	if ok {
		delete(r.pend, id)
	}
	r.mu.Unlock()
	return ok
}

// cancelAll разрешает все ожидающие вызовы ошибкой (обрыв/закрытие сессии)
// и оставляет реестр пустым.
func (r *registry) cancelAll(cause error) {
	r.mu.Lock()
	pend := r.pend
	r.pend = make(map[uint32]*pendingCall)
	r.mu.Unlock()

	for _, p := range pend {
		p.ch <- callResult{err: &NoReplyError{Method: p.method, ID: p.id, Err: cause}}
	}
	if len(pend) > 0 {
		r.log.Debug().Int("count", len(pend)).Msg("pending calls cancelled")
	}
}

// size — для логов и тестов.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pend)
}
