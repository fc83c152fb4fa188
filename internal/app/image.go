package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/ai"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

// runImageWorkflow turns the delivered reply into an illustration: an
// art-direction call produces the visual prompt, the image model renders
// it, and the result goes out through the three-phase upload protocol.
func (a *App) runImageWorkflow(ctx context.Context, ev domain.InboundEvent, question, reply string) error {
	if a.imageGen == nil {
		return errors.New("image generation not configured")
	}

	// Art direction: a secondary generative call that must output only the
	// visual-description prompt.
	brief := fmt.Sprintf("Question: %s\n\nAnswer: %s", question, reply)
	prompt, err := a.generator.GenerateChat(ctx, artDirectionInstructions,
		[]ai.ChatTurn{{Role: "user", Text: brief}}, a.temperature)
	if err != nil {
		return fmt.Errorf("art direction: %w", err)
	}

	data, mimeType, err := a.imageGen.GenerateImage(ctx, prompt)
	if err != nil {
		return fmt.Errorf("image synthesis: %w", err)
	}

	filename := fmt.Sprintf("illustration-%d.%s", time.Now().Unix(), extensionForMime(mimeType))
	title := truncate(question, 80)
	if err := a.messenger.UploadFile(ctx, ev.Conversation, ev.ThreadRef, filename, title, data); err != nil {
		return err
	}
	return nil
}

// imageFailureReason names the failed stage for the user notice.
func imageFailureReason(err error) string {
	var stageErr interface{ StageName() string }
	if errors.As(err, &stageErr) {
		return "upload phase: " + stageErr.StageName()
	}
	var refusal *ai.RefusalError
	switch {
	case errors.Is(err, ai.ErrNoImageData):
		return "the model returned no image"
	case errors.As(err, &refusal):
		return "blocked: " + refusal.Reason
	default:
		return err.Error()
	}
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
