package bot

import (
	"context"
	"time"

	"github.com/EgorLis/Interactivebot/internal/gameclient"
)

// greetParticipants — реакция на onParticipantJoin: лог и, если настроена
// стартовая группа, перевод новичков в неё.
func (bot *InteractiveBot) greetParticipants(parts []gameclient.Participant) {
	for _, p := range parts {
		bot.log.Info().Str("user", p.Username).Str("session", p.SessionID).Msg("participant joined")
	}

	group := bot.defaultGroup()
	if group == "" {
		return
	}

	moved := make([]gameclient.Participant, 0, len(parts))
	for _, p := range parts {
		if p.GroupID == group {
			continue
		}
		p.GroupID = group
		moved = append(moved, p)
	}
	if len(moved) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := bot.cli.UpdateParticipants(ctx, moved...); err != nil {
		bot.log.Warn().Err(err).Str("group", group).Msg("group assignment failed")
		return
	}
	bot.log.Debug().Int("count", len(moved)).Str("group", group).Msg("participants regrouped")
}
