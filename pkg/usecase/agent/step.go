package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
	"google.golang.org/genai"
)

// Plan is a proposed next action: the model has spoken but nothing has
// been executed yet. The caller decides whether to Execute it, which
// allows a human confirmation gate between the two phases.
type Plan struct {
	Reply  string
	Action *model.Action
	Name   string
	Args   model.Args

	// Invalid carries the decode or resolution failure. An invalid
	// plan is still executable: the failure text becomes the command
	// result so the model can correct itself next turn.
	Invalid string
}

// StepResult is the outcome of one completed cycle
type StepResult struct {
	Reply    string        `json:"reply"`
	Action   *model.Action `json:"action,omitempty"`
	Command  string        `json:"command"`
	Args     model.Args    `json:"args,omitempty"`
	Result   string        `json:"result"`
	Feedback string        `json:"feedback,omitempty"`

	Terminated bool   `json:"terminated"`
	Reason     string `json:"reason,omitempty"`
}

// NextPlan asks the model for the next action and decodes it. It does
// not mutate the session.
func (a *Agent) NextPlan(ctx context.Context) (*Plan, error) {
	systemPrompt, err := a.buildSystemPrompt()
	if err != nil {
		return nil, err
	}

	var memories []string
	if a.memory != nil {
		if query := a.memoryQuery(); query != "" {
			memories, err = a.memory.GetRelevant(ctx, query, a.memoryLimit)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to recall memories")
			}
		}
	}

	contents := a.buildContents(memories, triggerPrompt)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}

	reply, err := a.gemini.GenerateText(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate next action")
	}

	plan := &Plan{Reply: reply}

	action, err := a.decoder.Decode(ctx, reply)
	if err != nil {
		logging.From(ctx).Warn("failed to decode model reply", "error", err)
		plan.Invalid = fmt.Sprintf("Unable to execute command: %s. Respond only in the specified JSON format.", err)
		return plan, nil
	}
	plan.Action = action

	name, args, err := a.registry.Resolve(action)
	if err != nil {
		plan.Invalid = fmt.Sprintf("Unable to execute command: %s", err)
		return plan, nil
	}

	plan.Name = name
	plan.Args = args

	return plan, nil
}

// Execute runs a plan and folds the outcome back into the session.
// A non-empty feedback overrides execution: the command is skipped and
// the feedback becomes the result the model sees next turn.
func (a *Agent) Execute(ctx context.Context, plan *Plan, feedback string) (*StepResult, error) {
	result := &StepResult{
		Reply:    plan.Reply,
		Action:   plan.Action,
		Command:  plan.Name,
		Args:     plan.Args,
		Feedback: feedback,
	}

	switch {
	case feedback != "":
		result.Command = command.NameHumanFeedback
		result.Result = "Human feedback: " + feedback

	case plan.Invalid != "":
		result.Result = plan.Invalid

	default:
		text, err := a.registry.Dispatch(ctx, plan.Name, plan.Args)
		if err != nil {
			if !errors.Is(err, command.ErrTaskComplete) {
				return nil, goerr.Wrap(err, "failed to dispatch command", goerr.V("command", plan.Name))
			}
			result.Terminated = true
			result.Reason, _ = plan.Args.GetString("reason")
			result.Result = "Task completed."
		} else {
			result.Result = fmt.Sprintf("Command %s returned: %s", plan.Name, text)
		}

		// Only a real dispatch consumes the forced-continue budget;
		// invalid plans and feedback turns leave it untouched.
		if a.session.NextActionCount > 0 {
			a.session.NextActionCount--
		}
	}

	if a.memory != nil {
		entry := fmt.Sprintf("Assistant Reply: %s \nResult: %s \nHuman Feedback: %s ",
			plan.Reply, result.Result, feedback)
		if _, err := a.memory.Add(ctx, entry); err != nil {
			return nil, goerr.Wrap(err, "failed to record step memory")
		}
	}

	a.session.Transcript = a.session.Transcript.
		Append(model.RoleUser, triggerPrompt).
		Append(model.RoleAssistant, plan.Reply).
		Append(model.RoleSystem, result.Result).
		Truncate(a.transcriptLimit)

	a.session.LastCommand = result.Command
	a.session.LastArgs = plan.Args
	a.session.LastReply = plan.Reply
	a.session.UpdatedAt = timeNow()

	return result, nil
}

// Step advances the session one full cycle: plan, execute, and fold
// the result back in. This is the re-entrant entry point; callers that
// need a confirmation gate use NextPlan and Execute directly.
func (a *Agent) Step(ctx context.Context, feedback string) (*StepResult, error) {
	plan, err := a.NextPlan(ctx)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, plan, feedback)
}
