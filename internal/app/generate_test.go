package app

import (
	"log/slog"
	"testing"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

func TestProviderTurnsRoleMapping(t *testing.T) {
	history := []domain.Turn{
		{ID: 1, Role: domain.RoleUser, Content: "question"},
		{ID: 2, Role: domain.RoleAssistant, Content: "answer"},
		{ID: 3, Role: domain.RoleSystem, Content: "internal note"},
		{ID: 4, Role: domain.Role("moderator"), Content: "legacy row"},
	}

	turns := providerTurns(history, slog.Default())

	if len(turns) != 3 {
		t.Fatalf("system turns must be excluded, got %d turns", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Text != "question" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != "model" || turns[1].Text != "answer" {
		t.Fatalf("assistant must map to model: %+v", turns[1])
	}
	// Unknown stored roles normalize to model instead of leaking through.
	if turns[2].Role != "model" || turns[2].Text != "legacy row" {
		t.Fatalf("unknown role must normalize to model: %+v", turns[2])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 80); got != "short" {
		t.Fatalf("short strings pass through, got %q", got)
	}
	long := make([]rune, 100)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(string(long), 80)
	if len([]rune(got)) != 80 {
		t.Fatalf("expected 80 runes, got %d", len([]rune(got)))
	}
}

func TestExtensionForMime(t *testing.T) {
	cases := map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpg",
		"image/webp": "webp",
		"image/gif":  "png", // unknown types fall back to png
	}
	for mime, want := range cases {
		if got := extensionForMime(mime); got != want {
			t.Fatalf("extensionForMime(%q) = %q, want %q", mime, got, want)
		}
	}
}
