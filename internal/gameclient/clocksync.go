package gameclient

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultClockSamples  = 5
	defaultClockInterval = 30 * time.Second
	clockCallTimeout     = 5 * time.Second
)

// clockSampler периодически меряет расхождение локальных часов с серверными.
// Раунд — это samples вызовов getTime; для каждого удачного замера
//
//	offset = серверное время − RTT/2 − момент отправки (всё в миллисекундах),
//
// итог раунда — среднее удачных замеров с округлением вниз. Если не удался
// ни один замер, прежняя поправка остаётся в силе.
type clockSampler struct {
	samples  int
	interval time.Duration

	call  func(ctx context.Context) (int64, error) // getTime: серверные unix ms
	apply func(delta int64)                        // публикация поправки
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	log zerolog.Logger
}

func newClockSampler(samples int, interval time.Duration, call func(context.Context) (int64, error), apply func(int64), log zerolog.Logger) *clockSampler {
	if samples <= 0 {
		samples = defaultClockSamples
	}
	if interval <= 0 {
		interval = defaultClockInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &clockSampler{
		samples:  samples,
		interval: interval,
		call:     call,
		apply:    apply,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log,
	}
}

// run — фоновый цикл: первый раунд сразу после подключения, дальше по тикеру.
func (s *clockSampler) run() {
	defer close(s.done)
	s.sampleRound()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.sampleRound()
		}
	}
}

func (s *clockSampler) sampleRound() {
	var sum, n int64
	for i := 0; i < s.samples; i++ {
		if s.ctx.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(s.ctx, clockCallTimeout)
		tx := s.now()
		remote, err := s.call(ctx)
		rx := s.now()
		cancel()
		if err != nil {
			s.log.Debug().Err(err).Msg("clock sample failed")
			continue
		}
		rtt := rx.Sub(tx)
		sum += remote - rtt.Milliseconds()/2 - tx.UnixMilli()
		n++
	}
	if n == 0 {
		// раунд целиком неудачный — оставляем прежнюю поправку
		s.log.Debug().Msg("clock round failed, adjustment kept")
		return
	}
	delta := floorDiv(sum, n)
	s.apply(delta)
	s.log.Debug().Int64("delta_ms", delta).Int64("samples", n).Msg("clock adjusted")
}

// stop синхронно останавливает сэмплер; висящий getTime обрывается отменой
// контекста, поэтому ждать приходится недолго.
func (s *clockSampler) stop() {
	s.cancel()
	<-s.done
}

// floorDiv — целочисленное деление с округлением вниз (a может быть < 0).
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
