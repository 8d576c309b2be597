package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
)

// ErrTaskComplete signals deliberate loop termination. It is not a
// failure: the dispatcher passes it through untouched so the step
// engine can exit cleanly instead of feeding a result back to the
// model.
var ErrTaskComplete = goerr.New("task complete")

// Dispatch executes the named command. Every failure mode other than
// task completion degrades to result text, because the transcript is
// the only feedback channel the model has: unknown names, missing
// required arguments, policy denials, handler errors, and handler
// panics all come back as a string the model reads next turn.
func (r *Registry) Dispatch(ctx context.Context, name string, args model.Args) (string, error) {
	cmd, ok := r.Lookup(name)
	if !ok {
		return fmt.Sprintf(
			"Unknown command '%s'. Please refer to the 'COMMANDS' list for available commands and only respond in the specified JSON format.",
			name), nil
	}

	spec := cmd.Spec()

	if r.policy != nil {
		reason, denied, err := r.policy.Deny(ctx, spec.Name, args)
		if err != nil {
			return fmt.Sprintf("Error: policy evaluation failed: %s", err), nil
		}
		if denied {
			return fmt.Sprintf("Error: command '%s' is not authorized: %s", spec.Name, reason), nil
		}
	}

	for _, key := range spec.Required {
		if !args.Has(key) {
			return fmt.Sprintf("Error: missing required argument '%s' for command '%s'", key, spec.Name), nil
		}
	}

	result, err := runSafely(ctx, cmd, args)
	if err != nil {
		if errors.Is(err, ErrTaskComplete) {
			return "", err
		}
		return fmt.Sprintf("Error: %s", err), nil
	}

	return result, nil
}

// runSafely invokes the handler inside a panic boundary
func runSafely(ctx context.Context, cmd Command, args model.Args) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("command handler panicked",
				"command", cmd.Spec().Name, "panic", r)
			err = goerr.New("command handler panicked",
				goerr.V("command", cmd.Spec().Name), goerr.V("panic", fmt.Sprint(r)))
		}
	}()

	return cmd.Run(ctx, args)
}
