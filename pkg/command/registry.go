package command

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
)

// synonyms maps command names the model has been observed to invent to
// the registered names it means
var synonyms = map[string]string{
	"write_file":  "write_to_file",
	"create_file": "write_to_file",
	"search":      "google",
}

// Registry is the closed table of capabilities, keyed by canonical
// name and alias. It is read-only after initialization and safe for
// unsynchronized concurrent reads.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string
	order    []string
	policy   *Policy
}

type RegistryOption func(*Registry)

// WithPolicy attaches a Rego authorization policy consulted before
// every dispatch
func WithPolicy(p *Policy) RegistryOption {
	return func(r *Registry) {
		r.policy = p
	}
}

// New creates a registry with the given commands
func New(commands []Command, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}

	for _, opt := range opts {
		opt(r)
	}

	for _, cmd := range commands {
		spec := cmd.Spec()
		if spec.Name == "" {
			return nil, goerr.New("command has no name")
		}
		if _, exists := r.commands[spec.Name]; exists {
			return nil, goerr.New("duplicate command name", goerr.V("name", spec.Name))
		}

		r.commands[spec.Name] = cmd
		r.order = append(r.order, spec.Name)

		for _, alias := range spec.Aliases {
			if _, exists := r.aliases[alias]; exists {
				return nil, goerr.New("duplicate command alias", goerr.V("alias", alias))
			}
			r.aliases[alias] = spec.Name
		}
	}

	return r, nil
}

// Canonical normalizes a command name through the synonym table and
// registered aliases. Unknown names pass through unchanged.
func (r *Registry) Canonical(name string) string {
	if actual, ok := synonyms[name]; ok {
		name = actual
	}
	if actual, ok := r.aliases[name]; ok {
		name = actual
	}
	return name
}

// Lookup returns the command registered under the (canonicalized) name
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[r.Canonical(name)]
	return cmd, ok
}

// Names returns the canonical command names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Describe renders the numbered command list included in the system
// prompt
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, name := range r.order {
		spec := r.commands[name].Spec()
		usage := spec.Usage
		if usage == "" {
			usage = "no arguments"
		}
		fmt.Fprintf(&b, "%d. %s: %q, args: %s\n", i+1, spec.Description, spec.Name, usage)
	}
	return b.String()
}

// Resolve validates a decoded action and returns the canonical command
// name with its arguments. It performs no execution and never fails
// hard: a malformed action yields an error value with a readable
// reason.
func (r *Registry) Resolve(action *model.Action) (string, model.Args, error) {
	if action == nil || action.Command.Name == "" {
		return "", nil, goerr.New("missing 'name' field in 'command' object")
	}

	args := action.Command.Args
	if args == nil {
		args = model.Args{}
	}

	return r.Canonical(action.Command.Name), args, nil
}
