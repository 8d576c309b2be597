package command

import (
	"context"

	"github.com/m-mizutani/harrier/pkg/adapter"
	"github.com/m-mizutani/harrier/pkg/model"
)

// Names with special handling in the step engine
const (
	NameTaskComplete  = "task_complete"
	NameHumanFeedback = "human_feedback"
)

// Spec declares a command: its canonical name, known aliases, and the
// argument keys it requires. Required keys are validated at dispatch
// time, not earlier.
type Spec struct {
	Name        string
	Description string
	Aliases     []string
	Required    []string
	Usage       string
}

// Command is a registered capability the agent can invoke. Handlers
// return a result text or an error; errors never escape the dispatch
// boundary as anything but text.
type Command interface {
	Spec() Spec
	Run(ctx context.Context, args model.Args) (string, error)
}

// MemoryWriter is the slice of the memory store handlers may write to
type MemoryWriter interface {
	Add(ctx context.Context, text string) (model.MemoryID, error)
}

// Client holds shared resources that command handlers can use
type Client struct {
	Storage   adapter.Storage
	Memory    MemoryWriter
	SessionID model.SessionID
}
