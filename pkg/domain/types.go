package domain

import "time"

// Role tags a stored conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one stored message in a conversation. IDs are assigned by the
// store and strictly increase in insertion order, so ordering by ID is
// equivalent to chronological order.
type Turn struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentChunk is the unit of embedding and retrieval: an overlapping
// slice of extracted document text. The ID is derived from the source file
// ID plus the chunk sequence index, so re-ingesting a file overwrites its
// previous chunks instead of duplicating them.
type DocumentChunk struct {
	ID          string    `json:"id"`
	FileID      string    `json:"fileId"`
	Seq         int       `json:"seq"`
	SourceTitle string    `json:"sourceTitle"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"-"`
}

// ChunkMatch is a similarity-search hit with its metadata.
type ChunkMatch struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// FileRef describes an attachment carried by an inbound event.
type FileRef struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Mimetype  string `json:"mimetype"`
	SourceURL string `json:"sourceUrl"`
}

// InboundEvent is one chat event routed to a conversation actor.
type InboundEvent struct {
	Conversation string    `json:"conversation"`
	Text         string    `json:"text"`
	ThreadRef    string    `json:"threadRef,omitempty"`
	Files        []FileRef `json:"files,omitempty"`
}
