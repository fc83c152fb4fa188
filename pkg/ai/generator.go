package ai

import (
	"context"
	"errors"
	"fmt"
)

// ChatGenerator produces a reply for a chat history with an out-of-band
// system instruction. History roles use the provider schema ("user" and
// "model").
type ChatGenerator interface {
	GenerateChat(ctx context.Context, systemPrompt string, turns []ChatTurn, temperature float32) (string, error)
}

// ImageGenerator synthesizes an image for a prompt, returning the raw bytes
// and their MIME type.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

// ErrNoImageData indicates the image model responded without an inline
// image payload.
var ErrNoImageData = errors.New("response contains no image data")

// RefusalError indicates the provider declined to produce a usable
// candidate (safety block or empty candidate set). It is distinct from a
// transport failure and carries the provider's reason when available.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("generation refused: %s", e.Reason)
}

// IsRefusal reports whether err is a provider refusal.
func IsRefusal(err error) bool {
	var refusal *RefusalError
	return errors.As(err, &refusal)
}
