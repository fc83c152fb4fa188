package app

import (
	"context"
	"log/slog"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/ai"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

// generateReply calls the chat model with the system instruction and the
// bounded history. The history already contains the just-appended user
// turn.
func (a *App) generateReply(ctx context.Context, systemInstruction string, history []domain.Turn) (string, error) {
	return a.generator.GenerateChat(ctx, systemInstruction, providerTurns(history, a.logger), a.temperature)
}

// providerTurns maps stored roles onto the provider's chat schema: user
// stays user, assistant becomes model, system turns are excluded because
// system instructions travel out-of-band. Unrecognized roles fall back to
// model rather than passing through verbatim, and the fallback is logged.
func providerTurns(history []domain.Turn, logger *slog.Logger) []ai.ChatTurn {
	turns := make([]ai.ChatTurn, 0, len(history))
	for _, turn := range history {
		var role string
		switch turn.Role {
		case domain.RoleSystem:
			continue
		case domain.RoleUser:
			role = "user"
		case domain.RoleAssistant:
			role = "model"
		default:
			logger.Warn("unrecognized stored role, normalizing to model", "role", string(turn.Role), "turn_id", turn.ID)
			role = "model"
		}
		turns = append(turns, ai.ChatTurn{Role: role, Text: turn.Content})
	}
	return turns
}
