package ai

import "context"

// OllamaGenerator adapts OllamaClient to the ChatGenerator interface.
// Provider role "model" is translated to Ollama's "assistant"; the system
// prompt is prepended as a system message because Ollama has no out-of-band
// system instruction field.
type OllamaGenerator struct {
	client *OllamaClient
	model  string
}

// NewOllamaGenerator builds an Ollama-based ChatGenerator.
func NewOllamaGenerator(client *OllamaClient, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

// GenerateChat implements ChatGenerator using Ollama.
func (g *OllamaGenerator) GenerateChat(ctx context.Context, systemPrompt string, turns []ChatTurn, temperature float32) (string, error) {
	messages := make([]ollamaMessage, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	for _, turn := range turns {
		role := turn.Role
		if role == "model" {
			role = "assistant"
		}
		messages = append(messages, ollamaMessage{Role: role, Content: turn.Text})
	}
	return g.client.Chat(ctx, g.model, messages, temperature)
}
