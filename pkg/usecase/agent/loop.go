package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
)

// LoopConfig controls the interactive loop
type LoopConfig struct {
	// Continuous skips the human confirmation gate entirely
	Continuous bool

	// MaxIterations stops the loop after this many cycles; 0 means no
	// ceiling
	MaxIterations int

	Out io.Writer
}

// RunLoop drives the agent until the task completes, the user exits,
// or the iteration ceiling is reached. Each completed step is
// persisted and its audit record uploaded before the next one starts.
func (a *Agent) RunLoop(ctx context.Context, cfg LoopConfig) error {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt: "Input: ",
	})
	if err != nil {
		return goerr.Wrap(err, "failed to initialize input reader")
	}
	defer rl.Close()

	fmt.Fprintf(out, "Session %s started for %s.\n", a.session.ID, a.session.Profile.Name)

	for iteration := 1; ; iteration++ {
		if cfg.MaxIterations > 0 && iteration > cfg.MaxIterations {
			fmt.Fprintf(out, "Reached the iteration ceiling (%d), stopping.\n", cfg.MaxIterations)
			return a.Save(ctx)
		}

		sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		sp.Suffix = " thinking..."
		sp.Start()
		plan, err := a.NextPlan(ctx)
		sp.Stop()
		if err != nil {
			return err
		}

		a.printPlan(out, plan)

		feedback := ""
		if !cfg.Continuous && a.session.NextActionCount == 0 {
			input, exit, err := a.confirm(rl, out)
			if err != nil {
				return err
			}
			if exit {
				fmt.Fprintln(out, "Exiting.")
				return a.Save(ctx)
			}
			feedback = input
		}

		result, err := a.Execute(ctx, plan, feedback)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, result.Result)

		if err := a.Save(ctx); err != nil {
			return err
		}
		if err := a.uploadAudit(ctx, iteration, result); err != nil {
			// An audit upload failure should not kill the session
			logging.From(ctx).Warn("failed to upload audit record", "error", err)
		}

		if result.Terminated {
			if result.Reason != "" {
				fmt.Fprintf(out, "Task complete: %s\n", result.Reason)
			}
			return nil
		}
	}
}

// confirm asks the user to authorize the planned command. It returns
// the feedback text (empty when plainly authorized) and whether the
// user chose to exit.
func (a *Agent) confirm(rl *readline.Instance, out io.Writer) (string, bool, error) {
	fmt.Fprintln(out, "Enter 'y' to authorise the command, 'y -N' to run N continuous commands, 'n' to exit, or feedback for the agent.")

	for {
		line, err := rl.Readline()
		if err != nil { // Ctrl-C or Ctrl-D
			return "", true, nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue

		case line == "y":
			return "", false, nil

		case strings.HasPrefix(line, "y -"):
			count, err := strconv.Atoi(strings.TrimPrefix(line, "y -"))
			if err != nil || count < 1 {
				fmt.Fprintln(out, "Invalid count. Use 'y -N' with a positive N.")
				continue
			}
			a.session.NextActionCount = count
			return "", false, nil

		case line == "n" || line == "exit":
			return "", true, nil

		default:
			return line, false, nil
		}
	}
}

// printPlan renders the model's thoughts and the proposed command
func (a *Agent) printPlan(out io.Writer, plan *Plan) {
	name := strings.ToUpper(a.session.Profile.Name)

	if plan.Action != nil {
		thoughts := plan.Action.Thoughts
		fmt.Fprintf(out, "%s THOUGHTS: %s\n", name, thoughts.Text)
		if thoughts.Reasoning != "" {
			fmt.Fprintf(out, "REASONING: %s\n", thoughts.Reasoning)
		}
		if thoughts.Plan != "" {
			fmt.Fprintln(out, "PLAN:")
			for _, line := range strings.Split(thoughts.Plan, "\n") {
				fmt.Fprintf(out, "  %s\n", strings.TrimSpace(line))
			}
		}
		if thoughts.Criticism != "" {
			fmt.Fprintf(out, "CRITICISM: %s\n", thoughts.Criticism)
		}
	}

	if plan.Invalid != "" {
		fmt.Fprintf(out, "NEXT ACTION: (invalid) %s\n", plan.Invalid)
		return
	}

	fmt.Fprintf(out, "NEXT ACTION: COMMAND = %s  ARGUMENTS = %s\n", plan.Name, plan.Args.Summary())
}

// uploadAudit stores the step record as a JSON object next to the
// session's workspace files
func (a *Agent) uploadAudit(ctx context.Context, iteration int, result *StepResult) error {
	if a.storage == nil {
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal audit record")
	}

	key := fmt.Sprintf("sessions/%s/logs/%s-%04d.json",
		a.session.ID, timeNow().UTC().Format("20060102-150405"), iteration)

	if err := a.storage.Write(ctx, key, string(data)); err != nil {
		return goerr.Wrap(err, "failed to upload audit record", goerr.V("key", key))
	}

	return nil
}
