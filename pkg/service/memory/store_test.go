package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/repository"
	"github.com/m-mizutani/harrier/pkg/service/memory"
	"google.golang.org/genai"
)

// mockGemini embeds texts onto fixed axes so similarity is predictable
type mockGemini struct {
	vectors map[string][]float32
	calls   int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, nil
}

func (m *mockGemini) GenerateText(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	return "", nil
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestStoreAddAndRecall(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	sessionID := model.NewSessionID()

	gemini := &mockGemini{vectors: map[string][]float32{
		"apples are red":      {1, 0, 0},
		"bananas are yellow":  {0, 1, 0},
		"apple pie is sweet":  {0.9, 0.1, 0},
		"what color is fruit": {1, 0.05, 0},
	}}

	store, err := memory.New(ctx, repo, gemini, sessionID)
	gt.NoError(t, err)

	for _, text := range []string{"apples are red", "bananas are yellow", "apple pie is sweet"} {
		_, err := store.Add(ctx, text)
		gt.NoError(t, err)
	}

	count, err := store.Count(ctx)
	gt.NoError(t, err)
	gt.V(t, count).Equal(int64(3))

	texts, err := store.GetRelevant(ctx, "what color is fruit", 2)
	gt.NoError(t, err)
	gt.A(t, texts).Length(2)
	gt.V(t, texts[0]).Equal("apples are red")
	gt.V(t, texts[1]).Equal("apple pie is sweet")
}

func TestStoreAddSameTextTwice(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	sessionID := model.NewSessionID()
	gemini := &mockGemini{}

	store, err := memory.New(ctx, repo, gemini, sessionID)
	gt.NoError(t, err)

	first, err := store.Add(ctx, "the meeting is at noon")
	gt.NoError(t, err)
	second, err := store.Add(ctx, "the meeting is at noon")
	gt.NoError(t, err)

	// Identical texts are separate records, not an upsert
	gt.False(t, first == second)

	memories, err := repo.SearchMemories(ctx, sessionID, []float32{0, 0, 1}, 10)
	gt.NoError(t, err)
	gt.A(t, memories).Length(2)
	gt.V(t, memories[0].Text).Equal("the meeting is at noon")
	gt.V(t, memories[1].Text).Equal("the meeting is at noon")
	gt.False(t, memories[0].ID == memories[1].ID)
	gt.False(t, memories[0].Seq == memories[1].Seq)
}

func TestStoreSequenceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	sessionID := model.NewSessionID()
	gemini := &mockGemini{}

	store, err := memory.New(ctx, repo, gemini, sessionID)
	gt.NoError(t, err)

	_, err = store.Add(ctx, "first")
	gt.NoError(t, err)
	_, err = store.Add(ctx, "second")
	gt.NoError(t, err)

	// A new store over the same repository continues the sequence
	restored, err := memory.New(ctx, repo, gemini, sessionID)
	gt.NoError(t, err)
	_, err = restored.Add(ctx, "third")
	gt.NoError(t, err)

	memories, err := repo.SearchMemories(ctx, sessionID, []float32{0, 0, 1}, 10)
	gt.NoError(t, err)
	gt.A(t, memories).Length(3)

	seqs := make(map[int64]bool)
	for _, mem := range memories {
		seqs[mem.Seq] = true
	}
	gt.True(t, seqs[1])
	gt.True(t, seqs[2])
	gt.True(t, seqs[3])
}

func TestStoreGetRelevantZeroLimit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gemini := &mockGemini{}

	store, err := memory.New(ctx, repo, gemini, model.NewSessionID())
	gt.NoError(t, err)

	texts, err := store.GetRelevant(ctx, "anything", 0)
	gt.NoError(t, err)
	gt.A(t, texts).Length(0)
	gt.V(t, gemini.calls).Equal(0)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	sessionID := model.NewSessionID()
	gemini := &mockGemini{}

	store, err := memory.New(ctx, repo, gemini, sessionID)
	gt.NoError(t, err)

	_, err = store.Add(ctx, "ephemeral")
	gt.NoError(t, err)

	gt.NoError(t, store.Clear(ctx))

	count, err := store.Count(ctx)
	gt.NoError(t, err)
	gt.V(t, count).Equal(int64(0))
}
