package app

import (
	"context"
	"testing"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

func TestRenderGrounding(t *testing.T) {
	matches := []domain.ChunkMatch{
		{Source: "a.pdf", Content: "first", Score: 0.9},
		{Source: "b.pdf", Content: "second", Score: 0.5},
	}
	got := renderGrounding(matches)
	want := "SOURCE: a.pdf\nCONTENT: first\n\nSOURCE: b.pdf\nCONTENT: second"
	if got != want {
		t.Fatalf("renderGrounding mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRenderGroundingEmpty(t *testing.T) {
	if got := renderGrounding(nil); got != noContextMarker {
		t.Fatalf("expected no-context marker, got %q", got)
	}
}

func TestRetrieveDegradesOnEmbedFailure(t *testing.T) {
	h := newTestApp(t, func(cfg *Config) {
		cfg.Embedder = &fakeEmbedder{fail: true}
	})
	if got := h.app.retrieve(context.Background(), "query"); got != noContextMarker {
		t.Fatalf("embed failure should degrade to the marker, got %q", got)
	}
}

func TestRetrieveRespectsTopK(t *testing.T) {
	h := newTestApp(t, func(cfg *Config) { cfg.RetrievalTopK = 2 })
	chunks := make([]domain.DocumentChunk, 5)
	for i := range chunks {
		chunks[i] = domain.DocumentChunk{
			ID:          string(rune('a' + i)),
			SourceTitle: "doc",
			Content:     "chunk",
			Embedding:   []float32{1, float32(i), 0, 0},
		}
	}
	if err := h.store.UpsertChunks(chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := h.store.SearchChunks(embedDeterministic("query"), h.app.topK)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected top-2 matches, got %d", len(matches))
	}
}
