// Package agent implements the autonomous loop: compose a prompt from
// the session, ask the model for the next action, decode it, execute
// the command, and feed the result back into the session.
package agent

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/adapter"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/decode"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/repository"
	"github.com/m-mizutani/harrier/pkg/service/memory"
)

// replaceable for tests
var timeNow = time.Now

const (
	defaultTranscriptLimit = 50
	defaultMemoryLimit     = 10

	// memoryQueryWindow is how many recent messages seed the memory
	// recall query
	memoryQueryWindow = 9
)

// Agent drives one session. It owns no loop policy: Step advances the
// session exactly one cycle and can be called from the continuous
// loop, from a one-shot CLI invocation, or from a service endpoint.
type Agent struct {
	repo     repository.Repository
	gemini   adapter.Gemini
	storage  adapter.Storage
	decoder  *decode.Decoder
	registry *command.Registry
	memory   *memory.Store

	session *model.Session

	transcriptLimit int
	memoryLimit     int
}

// NewInput contains the dependencies for creating an agent
type NewInput struct {
	Repo     repository.Repository
	Gemini   adapter.Gemini
	Storage  adapter.Storage
	Decoder  *decode.Decoder
	Registry *command.Registry
	Memory   *memory.Store
	Session  *model.Session
}

type Option func(*Agent)

// WithTranscriptLimit caps how many messages of the transcript are
// kept after each step
func WithTranscriptLimit(limit int) Option {
	return func(a *Agent) {
		a.transcriptLimit = limit
	}
}

// WithMemoryLimit caps how many recalled memories are injected into
// each prompt
func WithMemoryLimit(limit int) Option {
	return func(a *Agent) {
		a.memoryLimit = limit
	}
}

// New creates an agent over an existing session
func New(input NewInput, opts ...Option) (*Agent, error) {
	if input.Session == nil {
		return nil, goerr.New("session is required")
	}
	if input.Registry == nil {
		return nil, goerr.New("command registry is required")
	}

	a := &Agent{
		repo:     input.Repo,
		gemini:   input.Gemini,
		storage:  input.Storage,
		decoder:  input.Decoder,
		registry: input.Registry,
		memory:   input.Memory,
		session:  input.Session,

		transcriptLimit: defaultTranscriptLimit,
		memoryLimit:     defaultMemoryLimit,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Session returns the session the agent is driving
func (a *Agent) Session() *model.Session {
	return a.session
}

// Save persists the current session state
func (a *Agent) Save(ctx context.Context) error {
	if err := a.repo.PutSession(ctx, a.session); err != nil {
		return goerr.Wrap(err, "failed to save session", goerr.V("session", a.session.ID))
	}
	return nil
}
