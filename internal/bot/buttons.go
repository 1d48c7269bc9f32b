package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

// smartButton — кнопка на сцене, за которой следит бот: игровое действие,
// кулдаун и подтверждение spark-транзакции.
type smartButton struct {
	sync.Mutex
	id       string
	sceneID  string
	cooldown time.Duration
	capture  bool
	action   func(*gameclient.InputEvent)
	lastFire time.Time
}

// SetButton регистрирует кнопку. action может быть nil — тогда бот только
// ведёт кулдаун и подтверждает транзакции.
func (bot *InteractiveBot) SetButton(id, sceneID string, cooldown time.Duration, capture bool, action func(*gameclient.InputEvent)) error {
	if id == "" {
		return errors.New("кнопка без controlID")
	}
	if sceneID == "" {
		sceneID = "default"
	}
	btn := &smartButton{
		id:       id,
		sceneID:  sceneID,
		cooldown: cooldown,
		capture:  capture,
		action:   action,
	}
	bot.mu.Lock()
	bot.buttons[id] = btn
	bot.mu.Unlock()
	return nil
}

// RemoveButton снимает кнопку с отслеживания.
func (bot *InteractiveBot) RemoveButton(id string) {
	bot.mu.Lock()
	delete(bot.buttons, id)
	bot.mu.Unlock()
}

// fireButton — реакция на mousedown: локальный антидребезг, capture
// транзакции, серверный кулдаун и пользовательское действие.
func (bot *InteractiveBot) fireButton(btn *smartButton, in *gameclient.InputEvent) {
	btn.Lock()
	if btn.cooldown > 0 && time.Since(btn.lastFire) < btn.cooldown {
		btn.Unlock()
		return
	}
	btn.lastFire = time.Now()
	btn.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if btn.capture && in.TransactionID != "" {
		if err := bot.cli.Capture(ctx, in.TransactionID); err != nil {
			bot.log.Warn().Err(err).Str("tx", in.TransactionID).Msg("capture failed")
		} else {
			bot.log.Info().Str("tx", in.TransactionID).Msg("sparks captured")
		}
	}

	if btn.cooldown > 0 {
		// штамп считается в серверных часах, иначе кулдаун поплывёт
		stamp := cooldownStamp(bot.cli.ServerNow(), btn.cooldown)
		err := bot.cli.UpdateControls(ctx, btn.sceneID,
			gameclient.Control{ID: btn.id, Cooldown: stamp})
		if err != nil {
			bot.log.Warn().Err(err).Str("control", btn.id).Msg("cooldown update failed")
		}
	}

	if btn.action != nil {
		btn.action(in)
	}
	bot.log.Debug().Str("control", btn.id).Str("participant", in.ParticipantID).Msg("button fired")
}

// cooldownStamp — момент окончания кулдауна в unix ms от переданных часов.
func cooldownStamp(now time.Time, d time.Duration) int64 {
	return now.Add(d).UnixMilli()
}
