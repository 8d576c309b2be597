package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// specFromTool builds a command spec from an MCP tool declaration. The
// input schema contributes the required argument keys and a rendered
// usage line for the command list.
func specFromTool(t *mcp.Tool) (command.Spec, error) {
	spec := command.Spec{
		Name:        t.Name,
		Description: t.Description,
	}
	if spec.Description == "" {
		spec.Description = t.Name
	}

	if t.InputSchema == nil {
		return spec, nil
	}

	// InputSchema is an arbitrary structure; round-trip through JSON
	// to get a typed schema
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return spec, goerr.Wrap(err, "failed to marshal input schema")
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return spec, goerr.Wrap(err, "failed to unmarshal input schema")
	}

	spec.Required = schema.Required
	spec.Usage = renderUsage(&schema)

	return spec, nil
}

// renderUsage renders the schema properties as the args portion of a
// command list entry, required keys first
func renderUsage(schema *jsonschema.Schema) string {
	if len(schema.Properties) == 0 {
		return ""
	}

	required := make(map[string]bool, len(schema.Required))
	for _, key := range schema.Required {
		required[key] = true
	}

	keys := make([]string, 0, len(schema.Properties))
	for key := range schema.Properties {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if required[keys[i]] != required[keys[j]] {
			return required[keys[i]]
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		hint := key
		if prop := schema.Properties[key]; prop != nil && prop.Type != "" {
			hint = prop.Type
		}
		parts = append(parts, fmt.Sprintf("%q: \"<%s>\"", key, hint))
	}

	return strings.Join(parts, ", ")
}
