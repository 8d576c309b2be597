package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory is one embedded text record. Records are scoped to a session
// namespace and only ever appended; Seq disambiguates records within a
// namespace but is not used for retrieval ordering.
type Memory struct {
	ID        MemoryID           `json:"id"`
	SessionID SessionID          `json:"session_id"`
	Seq       int64              `json:"seq"`
	Text      string             `json:"text"`
	Embedding firestore.Vector32 `json:"-"`
	CreatedAt time.Time          `json:"created_at"`
}
