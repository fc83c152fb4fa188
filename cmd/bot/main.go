package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/avhust/ai-slack-bot-on-cloudflare/internal/app"
	"github.com/avhust/ai-slack-bot-on-cloudflare/internal/config"
	"github.com/avhust/ai-slack-bot-on-cloudflare/internal/server"
	"github.com/avhust/ai-slack-bot-on-cloudflare/internal/util"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/slack"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/storage"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/store"
)

const slackAPIBaseURL = "https://slack.com/api"

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel, "bot")

	var deduper store.EventDeduper
	dedupTTL := time.Duration(cfg.DedupTTLSeconds) * time.Second
	if dedupTTL <= 0 {
		dedupTTL = time.Hour
	}
	if cfg.RedisAddr != "" {
		deduper = store.NewRedisDeduper(cfg.RedisAddr, cfg.RedisPassword, dedupTTL)
	} else {
		slog.Warn("redis not configured, using in-process event dedup")
		deduper = store.NewMemoryDeduper(dedupTTL)
	}

	var archiver storage.Archiver
	if cfg.MinioEndpoint != "" {
		archiver, err = storage.NewMinioArchive(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init object store", "err", err)
		}
	}

	messenger := slack.NewClient(slackAPIBaseURL, cfg.SlackBotToken)

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Messenger:   messenger,
		Archiver:    archiver,
		FileToken:   cfg.SlackBotToken,

		GenerationProvider: cfg.GenerationProvider,
		GenerationBaseURL:  cfg.GenerationBaseURL,
		GenerationAPIKey:   cfg.GenerationAPIKey,
		GenerationModel:    cfg.GenerationModel,
		ImageModel:         cfg.ImageModel,
		GeminiAPIKey:       cfg.GeminiAPIKey,
		EmbeddingProvider:  cfg.EmbeddingProvider,
		EmbeddingBaseURL:   cfg.EmbeddingBaseURL,
		EmbeddingModel:     cfg.EmbeddingModel,
		EmbeddingDim:       cfg.EmbeddingDim,

		ResponseLimit:    cfg.ResponseLimit,
		HistoryWindow:    cfg.HistoryWindow,
		RetrievalTopK:    cfg.RetrievalTopK,
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		EmbedBatchSize:   cfg.EmbedBatchSize,
		EmbedConcurrency: cfg.EmbedConcurrency,
		Temperature:      cfg.Temperature,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}
	defer appCore.Close()

	httpServer := server.New(server.Config{
		Dispatcher:    appCore,
		Deduper:       deduper,
		SigningSecret: cfg.SlackSigningSecret,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("bot server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}
