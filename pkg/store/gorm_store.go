package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

const migrateLockID int64 = 52418806

const defaultEmbeddingDim = 768

type GormStoreOptions struct {
	EmbeddingDim int
}

type GormStoreOption func(*GormStoreOptions)

// WithEmbeddingDim sets the embedding dimension enforced by storage.
func WithEmbeddingDim(dim int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.EmbeddingDim = dim
	}
}

// GormStore implements Store using GORM + Postgres with pgvector.
type GormStore struct {
	db           *gorm.DB
	embeddingDim int
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	embeddingDim := opts.EmbeddingDim
	if embeddingDim <= 0 {
		embeddingDim = defaultEmbeddingDim
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create pgvector extension: %w", err)
		}
		if err := tx.AutoMigrate(&TurnModel{}, &ChunkModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(`
			DO $$
			BEGIN
			IF EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'chunk_models' AND column_name = 'embedding'
			) THEN
				ALTER TABLE chunk_models ALTER COLUMN embedding TYPE vector(%d);
			END IF;
			END $$;
		`, embeddingDim)).Error; err != nil {
			return fmt.Errorf("alter chunk embedding type: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, embeddingDim: embeddingDim}, nil
}

// withMigrationLock serializes schema migration across concurrently starting
// replicas using a Postgres advisory lock.
func withMigrationLock(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		return fn(tx)
	})
}

// AppendTurn inserts a new turn and returns it with the assigned ID.
func (s *GormStore) AppendTurn(conv string, role domain.Role, content string) (domain.Turn, error) {
	model := TurnModel{
		Conversation: conv,
		Role:         string(role),
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Turn{}, fmt.Errorf("append turn: %w", err)
	}
	return turnFromModel(model), nil
}

// CountTurnsByRole counts stored turns with the given role in a conversation.
func (s *GormStore) CountTurnsByRole(conv string, role domain.Role) (int, error) {
	var count int64
	if err := s.db.Model(&TurnModel{}).
		Where("conversation = ? AND role = ?", conv, string(role)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return int(count), nil
}

// RecentTurns fetches the newest turns in reverse-chronological order and
// reverses them, so callers always see chronological order, oldest first.
func (s *GormStore) RecentTurns(conv string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return []domain.Turn{}, nil
	}
	var models []TurnModel
	if err := s.db.Where("conversation = ?", conv).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	turns := make([]domain.Turn, len(models))
	for i, model := range models {
		turns[len(models)-1-i] = turnFromModel(model)
	}
	return turns, nil
}

// UpsertChunks writes chunks with their embeddings, overwriting rows that
// share the same deterministic ID.
func (s *GormStore) UpsertChunks(chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := make([]ChunkModel, 0, len(chunks))
	for _, chunk := range chunks {
		if err := s.validateEmbeddingDim(chunk.Embedding); err != nil {
			return fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		model, err := chunkToModel(chunk)
		if err != nil {
			return err
		}
		models = append(models, model)
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&models).Error
}

// SearchChunks returns the closest chunks by cosine distance, best first.
func (s *GormStore) SearchChunks(embedding []float32, limit int) ([]domain.ChunkMatch, error) {
	if limit <= 0 {
		return []domain.ChunkMatch{}, nil
	}
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	var rows []chunkSearchRow
	if err := s.db.Model(&ChunkModel{}).
		Select("source, content, 1 - (embedding <=> ?) AS score", vec).
		Where("embedding IS NOT NULL").
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	matches := make([]domain.ChunkMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, domain.ChunkMatch{
			Source:  row.Source,
			Content: row.Content,
			Score:   row.Score,
		})
	}
	return matches, nil
}

type chunkSearchRow struct {
	Source  string
	Content string
	Score   float64
}

func (s *GormStore) validateEmbeddingDim(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if s.embeddingDim > 0 && len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.embeddingDim)
	}
	return nil
}

func chunkToModel(chunk domain.DocumentChunk) (ChunkModel, error) {
	meta, err := json.Marshal(map[string]any{
		"file_id": chunk.FileID,
		"seq":     chunk.Seq,
	})
	if err != nil {
		return ChunkModel{}, fmt.Errorf("marshal chunk metadata: %w", err)
	}
	vec := pgvector.NewVector(chunk.Embedding)
	now := time.Now().UTC()
	return ChunkModel{
		ID:        chunk.ID,
		Source:    chunk.SourceTitle,
		Content:   chunk.Content,
		Metadata:  datatypes.JSON(meta),
		Embedding: &vec,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func turnFromModel(m TurnModel) domain.Turn {
	return domain.Turn{
		ID:        m.ID,
		Role:      domain.Role(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
