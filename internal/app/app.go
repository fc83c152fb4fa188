package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/ai"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/storage"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/store"
)

// Messenger posts messages and files into conversations on the messaging
// platform.
type Messenger interface {
	PostMessage(ctx context.Context, channel, text, threadTS string) error
	UploadFile(ctx context.Context, channel, threadTS, filename, title string, data []byte) error
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Messenger   Messenger
	Archiver    storage.Archiver
	HTTPClient  *http.Client
	FileToken   string

	Generator      ai.ChatGenerator
	Embedder       ai.Embedder
	ImageGenerator ai.ImageGenerator

	GenerationProvider string
	GenerationBaseURL  string
	GenerationAPIKey   string
	GenerationModel    string
	ImageModel         string
	GeminiAPIKey       string
	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingDim       int

	ResponseLimit    int
	HistoryWindow    int
	RetrievalTopK    int
	ChunkSize        int
	ChunkOverlap     int
	EmbedBatchSize   int
	EmbedConcurrency int
	Temperature      float32
}

// App coordinates one conversation actor per conversation key: quota
// enforcement, the turn log, retrieval-augmented reply generation, document
// ingestion, and the image workflow.
type App struct {
	store     store.Store
	messenger Messenger
	archiver  storage.Archiver
	generator ai.ChatGenerator
	embedder  ai.Embedder
	imageGen  ai.ImageGenerator

	httpClient *http.Client
	fileToken  string
	extract    func(data []byte) (string, error)

	responseLimit    int
	historyWindow    int
	topK             int
	chunkSize        int
	chunkOverlap     int
	embedBatchSize   int
	embedConcurrency int
	temperature      float32

	logger *slog.Logger

	mu     sync.Mutex
	actors map[string]chan domain.InboundEvent
	wg     sync.WaitGroup
}

// New constructs the application with database-backed storage for turns and
// chunks. Injected Store/Messenger/Generator/Embedder/ImageGenerator values
// take precedence over provider construction; tests rely on that.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Messenger == nil {
		return nil, fmt.Errorf("messenger required")
	}

	var gemini *ai.GeminiClient
	needGemini := func() (*ai.GeminiClient, error) {
		if gemini != nil {
			return gemini, nil
		}
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		gemini = client
		return gemini, nil
	}

	generator := cfg.Generator
	if generator == nil {
		if cfg.GenerationModel == "" {
			return nil, fmt.Errorf("generation model required")
		}
		provider := strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
		if provider == "" {
			provider = "gemini"
		}
		switch provider {
		case "gemini":
			client, err := needGemini()
			if err != nil {
				return nil, err
			}
			generator = ai.NewGeminiGenerator(client, cfg.GenerationModel)
		case "ollama":
			generator = ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.GenerationBaseURL), cfg.GenerationModel)
		case "openai":
			generator = ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel)
		default:
			return nil, fmt.Errorf("unknown generation provider: %s", provider)
		}
	}

	embedder := cfg.Embedder
	if embedder == nil {
		if cfg.EmbeddingModel == "" {
			return nil, fmt.Errorf("embedding model required")
		}
		provider := strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
		if provider == "" {
			provider = "gemini"
		}
		switch provider {
		case "gemini":
			client, err := needGemini()
			if err != nil {
				return nil, err
			}
			embedder = ai.NewGeminiEmbedder(client, cfg.EmbeddingModel)
		case "ollama":
			if cfg.EmbeddingDim <= 0 {
				return nil, fmt.Errorf("embedding dim required for ollama")
			}
			embedder = ai.NewOllamaEmbedder(ai.NewOllamaClient(cfg.EmbeddingBaseURL), cfg.EmbeddingModel, cfg.EmbeddingDim)
		default:
			return nil, fmt.Errorf("unknown embedding provider: %s", provider)
		}
	}

	imageGen := cfg.ImageGenerator
	if imageGen == nil && cfg.ImageModel != "" {
		client, err := needGemini()
		if err != nil {
			return nil, err
		}
		imageGen = ai.NewGeminiImageGenerator(client, cfg.ImageModel)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	app := &App{
		store:            dataStore,
		messenger:        cfg.Messenger,
		archiver:         cfg.Archiver,
		generator:        generator,
		embedder:         embedder,
		imageGen:         imageGen,
		httpClient:       httpClient,
		fileToken:        cfg.FileToken,
		extract:          extractPDFText,
		responseLimit:    cfg.ResponseLimit,
		historyWindow:    cfg.HistoryWindow,
		topK:             cfg.RetrievalTopK,
		chunkSize:        cfg.ChunkSize,
		chunkOverlap:     cfg.ChunkOverlap,
		embedBatchSize:   cfg.EmbedBatchSize,
		embedConcurrency: cfg.EmbedConcurrency,
		temperature:      cfg.Temperature,
		logger:           slog.Default().With("component", "actor"),
		actors:           make(map[string]chan domain.InboundEvent),
	}
	app.applyDefaults()
	return app, nil
}

func (a *App) applyDefaults() {
	if a.responseLimit <= 0 {
		a.responseLimit = 100
	}
	if a.historyWindow <= 0 {
		a.historyWindow = 10
	}
	if a.topK <= 0 {
		a.topK = 5
	}
	if a.chunkSize <= 0 {
		a.chunkSize = 1000
	}
	if a.chunkOverlap < 0 || a.chunkOverlap >= a.chunkSize {
		a.chunkOverlap = 100
	}
	if a.embedBatchSize <= 0 {
		a.embedBatchSize = 5
	}
	if a.embedConcurrency <= 0 {
		a.embedConcurrency = 1
	}
	if a.temperature <= 0 {
		a.temperature = 0.3
	}
}

// Dispatch routes an event to its conversation's mailbox, creating the
// actor on first use. Each actor processes its mailbox strictly one event
// at a time, which keeps the quota check and turn appends race-free within
// a conversation; different conversations run concurrently.
func (a *App) Dispatch(ev domain.InboundEvent) {
	a.mu.Lock()
	mailbox, ok := a.actors[ev.Conversation]
	if !ok {
		mailbox = make(chan domain.InboundEvent, 64)
		a.actors[ev.Conversation] = mailbox
		a.wg.Add(1)
		go a.runActor(ev.Conversation, mailbox)
	}
	a.mu.Unlock()
	mailbox <- ev
}

// Close stops accepting events and waits for in-flight ones to finish.
func (a *App) Close() {
	a.mu.Lock()
	for _, mailbox := range a.actors {
		close(mailbox)
	}
	a.actors = make(map[string]chan domain.InboundEvent)
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *App) runActor(conv string, mailbox <-chan domain.InboundEvent) {
	defer a.wg.Done()
	for ev := range mailbox {
		a.HandleEvent(context.Background(), ev)
	}
}
