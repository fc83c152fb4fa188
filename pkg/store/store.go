package store

import (
	"context"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

// Store defines persistence for the conversation turn log and the chunk
// vector index. Turns are append-only and partitioned by conversation key;
// chunks are shared across conversations and keyed by deterministic IDs.
type Store interface {
	// turns
	AppendTurn(conv string, role domain.Role, content string) (domain.Turn, error)
	CountTurnsByRole(conv string, role domain.Role) (int, error)
	// RecentTurns returns at most limit most recent turns in chronological
	// order, oldest first.
	RecentTurns(conv string, limit int) ([]domain.Turn, error)

	// chunks
	UpsertChunks(chunks []domain.DocumentChunk) error
	SearchChunks(embedding []float32, limit int) ([]domain.ChunkMatch, error)
}

// EventDeduper remembers webhook delivery IDs so retried deliveries of the
// same event are processed once.
type EventDeduper interface {
	// FirstDelivery reports whether eventID has not been seen before and
	// marks it seen.
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
}
