package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type TurnModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Conversation string    `gorm:"not null;index:idx_turns_conv_role,priority:1"`
	Role         string    `gorm:"not null;index:idx_turns_conv_role,priority:2"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type ChunkModel struct {
	ID        string           `gorm:"primaryKey"`
	Source    string           `gorm:"not null;index"`
	Content   string           `gorm:"type:text;not null"`
	Metadata  datatypes.JSON   `gorm:"type:jsonb"`
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time        `gorm:"not null"`
	UpdatedAt time.Time
}
