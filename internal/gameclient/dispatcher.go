package gameclient

import (
	"sync"

	"github.com/rs/zerolog"
)

// listener — одна подписка; id нужен для отписки.
type listener struct {
	id   uint64
	kind EventKind
	fn   func(*Event)
}

// dispatcher хранит подписчиков и раздаёт им события.
// Для каждого вида подписчики вызываются в порядке регистрации, затем
// подписчики KindAny. Вызовы синхронные, на горутине диспетчеризации —
// никогда на горутине чтения сокета.
type dispatcher struct {
	mu   sync.RWMutex
	seq  uint64
	subs map[EventKind][]listener

	log zerolog.Logger
}

func newDispatcher(log zerolog.Logger) *dispatcher {
	return &dispatcher{
		subs: make(map[EventKind][]listener),
		log:  log,
	}
}

func (d *dispatcher) subscribe(kind EventKind, fn func(*Event)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.subs[kind] = append(d.subs[kind], listener{id: d.seq, kind: kind, fn: fn})
	return d.seq
}

func (d *dispatcher) unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for kind, ls := range d.subs {
		for i := range ls {
			if ls[i].id == id {
				d.subs[kind] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// publish доставляет событие всем адресатам. Ничего не теряется: метод без
// единого подписчика просто уходит в лог.
func (d *dispatcher) publish(ev *Event) {
	d.mu.RLock()
	direct := d.subs[ev.Kind]
	catchAll := d.subs[KindAny]
	targets := make([]listener, 0, len(direct)+len(catchAll))
	targets = append(targets, direct...)
	targets = append(targets, catchAll...)
	d.mu.RUnlock()

	if len(targets) == 0 {
		d.log.Debug().Str("method", ev.Method).Msg("event without subscribers")
		return
	}
	// вне блокировки: слушатель вправе подписываться/отписываться из колбэка
	for _, l := range targets {
		l.fn(ev)
	}
}
