package ai

import "context"

// GeminiGenerator wraps GeminiClient with a fixed model for chat generation.
type GeminiGenerator struct {
	client *GeminiClient
	model  string
}

// NewGeminiGenerator builds a Gemini-based ChatGenerator.
func NewGeminiGenerator(client *GeminiClient, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// GenerateChat implements ChatGenerator using Gemini.
func (g *GeminiGenerator) GenerateChat(ctx context.Context, systemPrompt string, turns []ChatTurn, temperature float32) (string, error) {
	return g.client.GenerateChat(ctx, g.model, systemPrompt, turns, temperature)
}

// GeminiImageGenerator wraps GeminiClient with a fixed image-capable model.
type GeminiImageGenerator struct {
	client *GeminiClient
	model  string
}

// NewGeminiImageGenerator builds a Gemini-based ImageGenerator.
func NewGeminiImageGenerator(client *GeminiClient, model string) *GeminiImageGenerator {
	return &GeminiImageGenerator{client: client, model: model}
}

// GenerateImage implements ImageGenerator using Gemini.
func (g *GeminiImageGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return g.client.GenerateImage(ctx, g.model, prompt)
}
