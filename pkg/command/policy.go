package command

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Policy evaluates Rego rules against each dispatch. Rules live under
// the "command" package and export a "deny" set of reason strings: a
// non-empty set blocks the command.
type Policy struct {
	query *rego.PreparedEvalQuery
}

// LoadPolicy loads all .rego files from policyDir and prepares the
// data.command.deny query. An empty directory yields a nil policy,
// meaning every command is allowed.
func LoadPolicy(ctx context.Context, policyDir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}

	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.command.deny"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query")
	}

	return &Policy{query: &prepared}, nil
}

// NewPolicy prepares a policy from in-memory Rego source, keyed by a
// synthetic filename. Mainly for tests and embedded defaults.
func NewPolicy(ctx context.Context, name, source string) (*Policy, error) {
	prepared, err := rego.New(
		rego.Query("data.command.deny"),
		rego.Module(name, source),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query", goerr.V("module", name))
	}

	return &Policy{query: &prepared}, nil
}

// Deny evaluates the policy for a single dispatch. The input document
// is {"name": <canonical name>, "args": <argument map>}. It returns
// the first deny reason when the command is blocked.
func (p *Policy) Deny(ctx context.Context, name string, args model.Args) (string, bool, error) {
	if p == nil || p.query == nil {
		return "", false, nil
	}

	input := map[string]any{
		"name": name,
		"args": args.Interface(),
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to evaluate command policy", goerr.V("command", name))
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", false, nil
	}

	reasons, ok := rs[0].Expressions[0].Value.([]any)
	if !ok || len(reasons) == 0 {
		return "", false, nil
	}

	reason, _ := reasons[0].(string)
	if reason == "" {
		reason = "denied by policy"
	}
	return reason, true, nil
}
