package discovery

import (
	"context"
	"slices"
	"time"
)

// StartRefresh запускает фоновое обновление списка хостов.
// onChange вызывается с новым списком, когда он отличается от прежнего
// (может быть nil). Повторный запуск — no-op.
func (c *Client) StartRefresh(interval time.Duration, onChange func([]string)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	// стартовая инициализация — без уведомления
	if _, err := c.fetchHosts(context.Background()); err != nil {
		c.log.Warn().Err(err).Msg("initial hosts fetch failed")
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				prev := c.Cached()
				cur, err := c.fetchHosts(context.Background())
				if err != nil {
					c.log.Warn().Err(err).Msg("hosts refresh failed")
					continue
				}
				if !slices.Equal(prev, cur) {
					c.log.Info().Strs("hosts", cur).Msg("host list changed")
					if onChange != nil {
						onChange(cur)
					}
				}

			case <-c.stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop останавливает фоновое обновление. Идемпотентен.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.running = false
	c.mu.Unlock()
}
