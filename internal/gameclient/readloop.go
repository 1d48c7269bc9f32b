package gameclient

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig — политика пауз между попытками реконнекта.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	// MaxAttempts <= 0 — без ограничения.
	MaxAttempts int
}

func (b BackoffConfig) withDefaults() BackoffConfig {
	if b.InitialDelay <= 0 {
		b.InitialDelay = time.Second
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 30 * time.Second
	}
	if b.Multiplier < 1.0 {
		b.Multiplier = 2.0
	}
	return b
}

// nextBackoffDelay возвращает паузу перед попыткой attempt (нумерация с 1).
func nextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	return time.Duration(delay)
}

// run — горутина диспетчеризации: выгребает конверты сессии в порядке
// прихода, при обрыве фейлит ожидающие вызовы и реконнектится. Завершается
// после Disconnect либо когда попытки реконнекта исчерпаны; финальный
// teardown здесь, поэтому OnDisconnected срабатывает ровно один раз.
func (c *GameClient) run(sess *session, closeCh <-chan struct{}, done chan<- struct{}) {
	defer func() {
		// при исчерпании реконнектов Disconnect не вызывался — сэмплер
		// останавливаем здесь, иначе он тикал бы вечно
		c.mu.Lock()
		sampler := c.sampler
		c.sampler = nil
		c.closeCh = nil
		c.mu.Unlock()
		if sampler != nil {
			sampler.stop() // висящий getTime обрывается отменой контекста
		}
		c.sess.Store(nil)
		c.reg.cancelAll(ErrSessionClosed)
		c.state.Store(int32(StateDisconnected))
		if c.OnDisconnected != nil {
			c.OnDisconnected()
		}
		close(done)
	}()

	for {
		for env := range sess.in {
			c.handle(env)
		}

		// канал закрыт: либо нас попросили (Disconnect), либо обрыв
		if State(c.state.Load()) == StateDisconnecting {
			return
		}
		sess.close()
		c.reg.cancelAll(ErrConnectionLost)
		c.state.Store(int32(StateReconnecting))
		c.log.Warn().Msg("connection lost, reconnecting")
		if c.OnError != nil {
			c.OnError(ErrConnectionLost)
		}

		ns := c.redial(closeCh)
		if ns == nil {
			return
		}
		sess = ns
		c.sess.Store(ns)
		// Disconnect мог успеть выставить disconnecting, пока шёл dial;
		// тогда новую сессию не фиксируем, а закрываем
		if !c.state.CompareAndSwap(int32(StateReconnecting), int32(StateConnected)) {
			ns.close()
			return
		}
		if c.OnConnected != nil {
			c.OnConnected()
		}
		// сжатие договаривается заново на каждой сессии; отдельной горутиной,
		// чтобы не ждать ответ, который диспетчеризуем мы же
		go func() {
			if err := c.applyPreferredCompression(context.Background()); err != nil {
				c.log.Warn().Err(err).Msg("compression negotiation failed")
			}
		}()
	}
}

// redial пытается установить новую сессию с экспоненциальным backoff.
// nil — клиент закрывают либо попытки исчерпаны.
func (c *GameClient) redial(closeCh <-chan struct{}) *session {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; c.cfg.Backoff.MaxAttempts <= 0 || attempt <= c.cfg.Backoff.MaxAttempts; attempt++ {
		delay := nextBackoffDelay(c.cfg.Backoff, attempt, rng)
		select {
		case <-closeCh:
			return nil
		case <-time.After(delay):
		}
		if State(c.state.Load()) == StateDisconnecting {
			return nil
		}

		sess, err := c.dialAny(context.Background())
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("wait", delay).Msg("reconnect failed")
			if c.OnError != nil {
				c.OnError(err)
			}
			continue
		}
		c.log.Info().Int("attempt", attempt).Msg("reconnected")
		return sess
	}

	c.log.Error().Msg("reconnect attempts exhausted")
	return nil
}
