package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
port: "8080"
logLevel: debug
databaseURL: postgres://localhost/bot
slackBotToken: xoxb-abc
slackSigningSecret: sekrit
geminiAPIKey: key-123
generationModel: gemini-2.0-flash
embeddingModel: text-embedding-004
responseLimit: 50
chunkSize: 800
chunkOverlap: 80
temperature: 0.3
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.ResponseLimit != 50 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Temperature != 0.3 {
		t.Fatalf("temperature not parsed: %v", cfg.Temperature)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("DATABASE_URL", "postgres://other/bot")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("BOT_RESPONSE_LIMIT", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://other/bot" {
		t.Fatalf("DATABASE_URL override not applied: %q", cfg.DatabaseURL)
	}
	if cfg.SlackBotToken != "xoxb-env" {
		t.Fatalf("SLACK_BOT_TOKEN override not applied: %q", cfg.SlackBotToken)
	}
	if cfg.ResponseLimit != 7 {
		t.Fatalf("BOT_RESPONSE_LIMIT override not applied: %d", cfg.ResponseLimit)
	}
}

func TestBadResponseLimitOverride(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("BOT_RESPONSE_LIMIT", "not-a-number")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed BOT_RESPONSE_LIMIT")
	}
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing port", `
databaseURL: postgres://localhost/bot
slackBotToken: xoxb-abc
geminiAPIKey: k
generationModel: m
embeddingModel: e
`},
		{"missing bot token", `
port: "8080"
databaseURL: postgres://localhost/bot
geminiAPIKey: k
generationModel: m
embeddingModel: e
`},
		{"missing gemini key for gemini provider", `
port: "8080"
databaseURL: postgres://localhost/bot
slackBotToken: xoxb-abc
generationModel: m
embeddingModel: e
`},
		{"overlap not smaller than chunk size", `
port: "8080"
databaseURL: postgres://localhost/bot
slackBotToken: xoxb-abc
geminiAPIKey: k
generationModel: m
embeddingModel: e
chunkSize: 100
chunkOverlap: 100
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNonGeminiProviderSkipsKeyCheck(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: postgres://localhost/bot
slackBotToken: xoxb-abc
generationProvider: ollama
generationBaseURL: http://localhost:11434
generationModel: llama3
embeddingProvider: ollama
embeddingModel: nomic-embed-text
embeddingDim: 768
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("ollama provider must not require a gemini key: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
