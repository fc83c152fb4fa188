package util

import "github.com/google/uuid"

// NewID returns a random identifier for request and ingestion tracing.
func NewID() string {
	return uuid.NewString()
}
