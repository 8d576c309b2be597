package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
	"google.golang.org/genai"
)

// ErrTransportExhausted is returned when the completion or embedding
// call still fails after all retries. It is fatal to the current
// iteration; the caller decides whether to retry the whole step.
var ErrTransportExhausted = goerr.New("LLM transport exhausted retries")

// Gemini is the completion and embedding transport boundary
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateText(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
	maxRetries      int
	baseBackoff     time.Duration
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func WithMaxRetries(n int) GeminiOption {
	return func(g *GeminiClient) {
		g.maxRetries = n
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
		maxRetries:      3,
		baseBackoff:     2 * time.Second,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// isRetryable reports whether the API error is a rate limit or a
// transient server error
func isRetryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case 429, 500, 502, 503:
		return true
	}
	return false
}

func (g *GeminiClient) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.baseBackoff << (attempt - 1)
			logging.From(ctx).Warn("retrying LLM call",
				"op", op, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return goerr.Wrap(ctx.Err(), "canceled while waiting for retry")
			case <-time.After(backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return goerr.Wrap(ErrTransportExhausted, "giving up",
		goerr.V("op", op), goerr.V("cause", lastErr.Error()))
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	err := g.retry(ctx, "generate_content", func() error {
		var callErr error
		resp, callErr = g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
		return callErr
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	return resp, nil
}

// GenerateText generates content and flattens the first candidate into
// plain text
func (g *GeminiClient) GenerateText(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", err
	}
	return FlattenText(resp), nil
}

func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	var resp *genai.EmbedContentResponse
	err := g.retry(ctx, "embed_content", func() error {
		var callErr error
		resp, callErr = g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
		return callErr
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}

	if len(resp.Embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	return resp.Embeddings[0].Values, nil
}

// FlattenText concatenates the text parts of the first candidate
func FlattenText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out += part.Text
		}
	}
	return out
}
