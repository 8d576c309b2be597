package builtin

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/model"
)

type memoryAdd struct {
	client *command.Client
}

func (c *memoryAdd) Spec() command.Spec {
	return command.Spec{
		Name:        "memory_add",
		Description: "Memory Add",
		Required:    []string{"string"},
		Usage:       `"string": "<string>"`,
	}
}

func (c *memoryAdd) Run(ctx context.Context, args model.Args) (string, error) {
	text, _ := args.GetString("string")

	if _, err := c.client.Memory.Add(ctx, text); err != nil {
		return "", goerr.Wrap(err, "failed to add memory")
	}

	return "Committing memory with string: " + text, nil
}
