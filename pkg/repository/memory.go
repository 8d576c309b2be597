package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
)

// Memory implements Repository in process memory. It backs local runs
// without GCP credentials and the test suite.
type Memory struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.Session
	memories map[model.SessionID][]*model.Memory
}

// NewMemory creates a new in-memory repository
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[model.SessionID]*model.Session),
		memories: make(map[model.SessionID][]*model.Memory),
	}
}

func (r *Memory) PutSession(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *session
	clone.Transcript = append(model.Transcript(nil), session.Transcript...)
	r.sessions[session.ID] = &clone
	return nil
}

func (r *Memory) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(ErrSessionNotFound, "no such session", goerr.V("session", id))
	}

	clone := *session
	clone.Transcript = append(model.Transcript(nil), session.Transcript...)
	return &clone, nil
}

func (r *Memory) PutMemory(ctx context.Context, memory *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *memory
	r.memories[memory.SessionID] = append(r.memories[memory.SessionID], &clone)
	return nil
}

// cosineDistance returns 1 - cosine similarity; smaller is closer
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.MaxFloat64
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func (r *Memory) SearchMemories(ctx context.Context, sessionID model.SessionID, embedding []float32, limit int) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.memories[sessionID]

	type scored struct {
		memory   *model.Memory
		distance float64
	}
	candidates := make([]scored, 0, len(records))
	for _, m := range records {
		candidates = append(candidates, scored{
			memory:   m,
			distance: cosineDistance(m.Embedding, embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]*model.Memory, 0, len(candidates))
	for _, c := range candidates {
		clone := *c.memory
		results = append(results, &clone)
	}
	return results, nil
}

func (r *Memory) CountMemories(ctx context.Context, sessionID model.SessionID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.memories[sessionID])), nil
}

func (r *Memory) ClearMemories(ctx context.Context, sessionID model.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memories, sessionID)
	return nil
}
