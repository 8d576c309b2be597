package builtin

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/model"
)

type doNothing struct{}

func (c *doNothing) Spec() command.Spec {
	return command.Spec{
		Name:        "do_nothing",
		Description: "Do Nothing",
	}
}

func (c *doNothing) Run(ctx context.Context, args model.Args) (string, error) {
	return "No action performed.", nil
}

type taskComplete struct{}

func (c *taskComplete) Spec() command.Spec {
	return command.Spec{
		Name:        command.NameTaskComplete,
		Description: "Task Complete (Shutdown)",
		Required:    []string{"reason"},
		Usage:       `"reason": "<reason>"`,
	}
}

func (c *taskComplete) Run(ctx context.Context, args model.Args) (string, error) {
	reason, _ := args.GetString("reason")
	return "", goerr.Wrap(command.ErrTaskComplete, "task marked complete", goerr.V("reason", reason))
}
