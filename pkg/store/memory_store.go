package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

// MemoryStore keeps turns and chunks in-process. It mirrors the GormStore
// contract and backs the tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	turns  map[string][]domain.Turn
	chunks map[string]domain.DocumentChunk
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:  make(map[string][]domain.Turn),
		chunks: make(map[string]domain.DocumentChunk),
	}
}

// AppendTurn stores a turn with the next monotonically increasing ID.
func (m *MemoryStore) AppendTurn(conv string, role domain.Role, content string) (domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	turn := domain.Turn{
		ID:        m.nextID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.turns[conv] = append(m.turns[conv], turn)
	return turn, nil
}

// CountTurnsByRole counts turns with the given role in a conversation.
func (m *MemoryStore) CountTurnsByRole(conv string, role domain.Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, turn := range m.turns[conv] {
		if turn.Role == role {
			count++
		}
	}
	return count, nil
}

// RecentTurns returns at most limit most recent turns, oldest first.
func (m *MemoryStore) RecentTurns(conv string, limit int) ([]domain.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []domain.Turn{}, nil
	}
	all := m.turns[conv]
	start := len(all) - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.Turn, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

// UpsertChunks stores chunks keyed by ID, replacing existing entries.
func (m *MemoryStore) UpsertChunks(chunks []domain.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s: embedding vector is empty", chunk.ID)
		}
		m.chunks[chunk.ID] = chunk
	}
	return nil
}

// SearchChunks brute-forces cosine similarity over all stored chunks.
func (m *MemoryStore) SearchChunks(embedding []float32, limit int) ([]domain.ChunkMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []domain.ChunkMatch{}, nil
	}
	matches := make([]domain.ChunkMatch, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		matches = append(matches, domain.ChunkMatch{
			Source:  chunk.SourceTitle,
			Content: chunk.Content,
			Score:   cosineSimilarity(embedding, chunk.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ChunkCount reports the number of stored chunks.
func (m *MemoryStore) ChunkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MemoryDeduper is an in-process EventDeduper used when Redis is not
// configured and in tests.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewMemoryDeduper builds an in-process deduper with the given TTL.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time)}
}

// FirstDelivery reports and records whether eventID is new.
func (d *MemoryDeduper) FirstDelivery(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for id, expiry := range d.seen {
		if now.After(expiry) {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = now.Add(d.ttl)
	return true, nil
}
