package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
)

var (
	// ErrSessionNotFound is returned when the session does not exist
	ErrSessionNotFound = goerr.New("session not found")
)

// Repository persists agent sessions and their memory records. Memory
// records are namespaced by session; no operation crosses a namespace
// boundary.
type Repository interface {
	// PutSession saves the complete session state
	PutSession(ctx context.Context, session *model.Session) error

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)

	// PutMemory appends a memory record to its session namespace.
	// Records are never overwritten.
	PutMemory(ctx context.Context, memory *model.Memory) error

	// SearchMemories returns up to limit records of the session nearest
	// to the embedding, ordered by ascending distance (closest first)
	SearchMemories(ctx context.Context, sessionID model.SessionID, embedding []float32, limit int) ([]*model.Memory, error)

	// CountMemories returns the number of records in the session
	// namespace
	CountMemories(ctx context.Context, sessionID model.SessionID) (int64, error)

	// ClearMemories deletes all memory records of the session.
	// Clearing an empty namespace is not an error.
	ClearMemories(ctx context.Context, sessionID model.SessionID) error
}
