package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with the provided API key.
func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// ChatTurn is one history entry in the provider's chat schema. Role must
// already be a provider role ("user" or "model").
type ChatTurn struct {
	Role string
	Text string
}

// GenerateChat returns the reply for a chat history with an out-of-band
// system instruction. A safety block or an empty candidate set is returned
// as *RefusalError, distinct from transport failures.
func (c *GeminiClient) GenerateChat(ctx context.Context, model, systemPrompt string, turns []ChatTurn, temperature float32) (string, error) {
	contents := make([]content, 0, len(turns))
	for _, turn := range turns {
		contents = append(contents, content{
			Role:  turn.Role,
			Parts: []part{{Text: turn.Text}},
		})
	}
	reqBody := generateRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			Temperature: temperature,
		},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.SystemInstruction = &content{
			Parts: []part{{Text: systemPrompt}},
		}
	}
	var resp generateResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, normalizeModel(model), c.apiKey), reqBody, &resp); err != nil {
		return "", err
	}
	if err := refusalFromResponse(resp); err != nil {
		return "", err
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// EmbedTexts generates one embedding per input text in a single batch call.
func (c *GeminiClient) EmbedTexts(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model = normalizeModel(model)
	requests := make([]embedRequest, 0, len(texts))
	for _, text := range texts {
		req := embedRequest{
			Model: "models/" + model,
			Content: content{
				Parts: []part{{Text: text}},
			},
		}
		if taskType != "" {
			req.TaskType = taskType
		}
		requests = append(requests, req)
	}
	var resp batchEmbedResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", c.baseURL, model, c.apiKey), batchEmbedRequest{Requests: requests}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedText generates an embedding for a single input text.
func (c *GeminiClient) EmbedText(ctx context.Context, model, text, taskType string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, model, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateImage asks an image-capable model for a picture and returns the
// first inline image payload. ErrNoImageData is returned when the response
// carries no image part.
func (c *GeminiClient) GenerateImage(ctx context.Context, model, prompt string) ([]byte, string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: prompt}},
			},
		},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	var resp generateResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, normalizeModel(model), c.apiKey), reqBody, &resp); err != nil {
		return nil, "", err
	}
	if err := refusalFromResponse(resp); err != nil {
		return nil, "", err
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, "", fmt.Errorf("decode inline image: %w", err)
		}
		return data, p.InlineData.MimeType, nil
	}
	return nil, "", ErrNoImageData
}

func refusalFromResponse(resp generateResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return &RefusalError{Reason: resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) == 0 {
		return &RefusalError{Reason: "no candidates returned"}
	}
	cand := resp.Candidates[0]
	if len(cand.Content.Parts) == 0 {
		reason := cand.FinishReason
		if reason == "" {
			reason = "empty candidate"
		}
		return &RefusalError{Reason: reason}
	}
	return nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature        float32  `json:"temperature,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type embedRequest struct {
	Model    string  `json:"model,omitempty"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
