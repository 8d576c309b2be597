package decode

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
)

var (
	// ErrNoJSON means no strategy could recover a JSON object from the
	// reply
	ErrNoJSON = goerr.New("no parseable JSON in model reply")

	// ErrSchema means the reply parsed as JSON but does not carry a
	// command object with a name
	ErrSchema = goerr.New("reply JSON does not match the action format")
)

//go:embed schema/action.json
var actionSchemaRaw []byte

// Fixer is the optional last-resort repair pass that asks an LLM to
// rewrite a broken reply into valid JSON
type Fixer interface {
	FixJSON(ctx context.Context, raw string) (string, error)
}

// Decoder converts raw model replies into structured actions
type Decoder struct {
	schema *jsonschema.Resolved
	fixer  Fixer
}

type Option func(*Decoder)

// WithFixer enables the LLM auto-repair strategy
func WithFixer(f Fixer) Option {
	return func(d *Decoder) {
		d.fixer = f
	}
}

// New creates a Decoder
func New(opts ...Option) (*Decoder, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(actionSchemaRaw, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to parse embedded action schema")
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve action schema")
	}

	d := &Decoder{schema: resolved}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Decode recovers a structured action from a raw model reply. It tries
// a strict parse first, then a repair pass, then extraction of the
// outermost JSON object, then the optional LLM fixer. On total failure
// it returns the empty action together with ErrNoJSON; a structurally
// valid object without command.name returns the empty action together
// with ErrSchema. Decode itself never fails hard.
func (d *Decoder) Decode(ctx context.Context, raw string) (*model.Action, error) {
	obj, ok := d.parse(raw)

	if !ok && d.fixer != nil {
		logging.From(ctx).Debug("falling back to LLM JSON repair")
		if fixed, err := d.fixer.FixJSON(ctx, raw); err == nil {
			obj, ok = d.parse(fixed)
		} else {
			logging.From(ctx).Warn("LLM JSON repair failed", "error", err)
		}
	}

	if !ok {
		return &model.Action{}, goerr.Wrap(ErrNoJSON, "all repair strategies failed")
	}

	if err := d.schema.Validate(obj); err != nil {
		return &model.Action{}, goerr.Wrap(ErrSchema, "schema check failed",
			goerr.V("reason", err.Error()))
	}

	return toAction(obj), nil
}

// parse runs the non-LLM strategies in order
func (d *Decoder) parse(raw string) (map[string]any, bool) {
	if obj, ok := parseStrict(raw); ok {
		return obj, true
	}

	if obj, ok := parseStrict(repair(raw)); ok {
		return obj, true
	}

	if sub, balanced := outermostObject(raw); sub != "" {
		if balanced {
			if obj, ok := parseStrict(sub); ok {
				return obj, true
			}
		}
		if obj, ok := parseStrict(repair(sub)); ok {
			return obj, true
		}
	}

	return nil, false
}

func parseStrict(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func toAction(obj map[string]any) *model.Action {
	action := &model.Action{}

	if thoughts, ok := obj["thoughts"].(map[string]any); ok {
		action.Thoughts = model.Thoughts{
			Text:      stringField(thoughts, "text"),
			Reasoning: stringField(thoughts, "reasoning"),
			Plan:      planField(thoughts),
			Criticism: stringField(thoughts, "criticism"),
		}
		if goal, ok := thoughts["relevant_goal"].(float64); ok {
			action.Thoughts.RelevantGoal = int(goal)
		}
	}

	if command, ok := obj["command"].(map[string]any); ok {
		action.Command.Name, _ = command["name"].(string)
		if args, ok := command["args"].(map[string]any); ok {
			action.Command.Args = model.ArgsFrom(args)
		}
	}

	return action
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// planField accepts the plan either as a string or as a list of steps
func planField(m map[string]any) string {
	switch plan := m["plan"].(type) {
	case string:
		return plan
	case []any:
		lines := make([]string, 0, len(plan))
		for _, step := range plan {
			if s, ok := step.(string); ok {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}
