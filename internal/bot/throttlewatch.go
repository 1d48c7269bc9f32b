package bot

import (
	"context"
	"errors"
	"time"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

// StartThrottleWatch запускает фоновый опрос счётчиков троттлинга: рост
// rejected означает, что сервис начал резать наш трафик.
func (bot *InteractiveBot) StartThrottleWatch(every time.Duration) error {
	bot.twMu.Lock()
	defer bot.twMu.Unlock()

	if bot.cli == nil {
		return errors.New("throttle-watch: игровой клиент не инициализирован")
	}
	if bot.twRunning {
		// можно обновить интервал на лету
		bot.twEvery = every
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	bot.twCancel = cancel
	bot.twEvery = every
	bot.twRunning = true

	go bot.throttlePollLoop(ctx) // фоновая горутина
	return nil
}

func (bot *InteractiveBot) StopThrottleWatch() {
	bot.twMu.Lock()
	defer bot.twMu.Unlock()
	if !bot.twRunning {
		return
	}
	bot.twRunning = false
	if bot.twCancel != nil {
		bot.twCancel()
		bot.twCancel = nil
	}
}

// throttlePollLoop — живёт, пока не вызовут StopThrottleWatch().
func (bot *InteractiveBot) throttlePollLoop(ctx context.Context) {
	t := time.NewTicker(bot.twEvery)
	defer t.Stop()

	// чтобы не спамить в разрыв соединения
	var notConnectedBackoff = time.Second
	const maxBackoff = 10 * time.Second

	var prev gameclient.ThrottleState

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.C:
			// нет соединения? прогрессивно «спим» и ждём следующего тика
			if !bot.cli.IsConnected() {
				time.Sleep(notConnectedBackoff)
				if notConnectedBackoff < maxBackoff {
					notConnectedBackoff *= 2
					if notConnectedBackoff > maxBackoff {
						notConnectedBackoff = maxBackoff
					}
				}
				continue
			}
			notConnectedBackoff = time.Second

			reqCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
			cur, err := bot.cli.ThrottleStats(reqCtx)
			cancel()
			if err != nil {
				// сеть/таймаут — молча ждём следующий тик
				continue
			}

			// первый проход — только зафиксировать состояние
			if prev == nil {
				prev = cur
				continue
			}

			if delta := rejectedDelta(prev, cur); len(delta) > 0 {
				for method, n := range delta {
					bot.log.Warn().Str("method", method).Uint64("rejected", n).
						Msg("service is throttling us")
				}
			}
			prev = cur
		}
	}
}

// rejectedDelta — прирост rejected по методам между двумя снимками.
func rejectedDelta(prev, cur gameclient.ThrottleState) map[string]uint64 {
	delta := map[string]uint64{}
	for method, s := range cur {
		p, ok := prev[method]
		switch {
		case !ok && s.Rejected > 0:
			delta[method] = s.Rejected
		case ok && s.Rejected > p.Rejected:
			delta[method] = s.Rejected - p.Rejected
		}
	}
	return delta
}
