// Package memory implements the agent's long-term memory: texts are
// embedded and persisted per session, then recalled by vector
// similarity when composing the next prompt.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/adapter"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/repository"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
)

// Store writes and recalls memories for a single session. Sequence
// numbers are monotonic within the session and survive restarts: New
// seeds the counter from the persisted count.
type Store struct {
	repo      repository.Repository
	gemini    adapter.Gemini
	sessionID model.SessionID
	seq       atomic.Int64
}

// New creates a memory store bound to the session
func New(ctx context.Context, repo repository.Repository, gemini adapter.Gemini, sessionID model.SessionID) (*Store, error) {
	count, err := repo.CountMemories(ctx, sessionID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count existing memories", goerr.V("session", sessionID))
	}

	s := &Store{
		repo:      repo,
		gemini:    gemini,
		sessionID: sessionID,
	}
	s.seq.Store(count)

	return s, nil
}

// Add embeds the text and persists it as the next memory in the
// session
func (s *Store) Add(ctx context.Context, text string) (model.MemoryID, error) {
	embedding, err := s.gemini.Embedding(ctx, text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed memory text")
	}

	mem := &model.Memory{
		ID:        model.NewMemoryID(),
		SessionID: s.sessionID,
		Seq:       s.seq.Add(1),
		Text:      text,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}

	if err := s.repo.PutMemory(ctx, mem); err != nil {
		return "", goerr.Wrap(err, "failed to persist memory", goerr.V("memory", mem.ID))
	}

	logging.From(ctx).Debug("memory added", "session", s.sessionID, "seq", mem.Seq)

	return mem.ID, nil
}

// GetRelevant returns the texts of the memories most similar to the
// query, closest first
func (s *Store) GetRelevant(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	embedding, err := s.gemini.Embedding(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed memory query")
	}

	memories, err := s.repo.SearchMemories(ctx, s.sessionID, embedding, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories", goerr.V("session", s.sessionID))
	}

	texts := make([]string, 0, len(memories))
	for _, mem := range memories {
		texts = append(texts, mem.Text)
	}

	return texts, nil
}

// Count returns the number of memories stored for the session
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.repo.CountMemories(ctx, s.sessionID)
}

// Clear removes every memory of the session and resets the sequence
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.ClearMemories(ctx, s.sessionID); err != nil {
		return goerr.Wrap(err, "failed to clear memories", goerr.V("session", s.sessionID))
	}
	s.seq.Store(0)
	return nil
}
