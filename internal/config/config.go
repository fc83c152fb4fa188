package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	SlackBotToken      string `yaml:"slackBotToken"`
	SlackSigningSecret string `yaml:"slackSigningSecret"`

	GenerationProvider string `yaml:"generationProvider"`
	GenerationBaseURL  string `yaml:"generationBaseURL"`
	GenerationAPIKey   string `yaml:"generationAPIKey"`
	GenerationModel    string `yaml:"generationModel"`
	ImageModel         string `yaml:"imageModel"`
	GeminiAPIKey       string `yaml:"geminiAPIKey"`
	EmbeddingProvider  string `yaml:"embeddingProvider"`
	EmbeddingBaseURL   string `yaml:"embeddingBaseURL"`
	EmbeddingModel     string `yaml:"embeddingModel"`
	EmbeddingDim       int    `yaml:"embeddingDim"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	ResponseLimit    int     `yaml:"responseLimit"`
	HistoryWindow    int     `yaml:"historyWindow"`
	RetrievalTopK    int     `yaml:"retrievalTopK"`
	ChunkSize        int     `yaml:"chunkSize"`
	ChunkOverlap     int     `yaml:"chunkOverlap"`
	EmbedBatchSize   int     `yaml:"embedBatchSize"`
	EmbedConcurrency int     `yaml:"embedConcurrency"`
	Temperature      float32 `yaml:"temperature"`
	DedupTTLSeconds  int     `yaml:"dedupTTLSeconds"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.SlackBotToken = v
	}
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		cfg.SlackSigningSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("GEMINI_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("BOT_RESPONSE_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse BOT_RESPONSE_LIMIT: %w", err)
		}
		cfg.ResponseLimit = limit
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.SlackBotToken == "" {
		return errors.New("config: slackBotToken is required (set in config.yaml or SLACK_BOT_TOKEN)")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml)")
	}
	if cfg.EmbeddingModel == "" {
		return errors.New("config: embeddingModel is required (set in config.yaml)")
	}
	provider := cfg.GenerationProvider
	if provider == "" || provider == "gemini" {
		if cfg.GeminiAPIKey == "" {
			return errors.New("config: geminiAPIKey is required for the gemini provider (set in config.yaml or GEMINI_API_KEY)")
		}
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize && cfg.ChunkSize > 0 {
		return fmt.Errorf("config: chunkOverlap (%d) must be smaller than chunkSize (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	return nil
}
