package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Commands converts every tool on every connected server into a
// dispatchable command. Tool names are used verbatim; a name collision
// across servers surfaces as a registration error later.
func Commands(client *Client) ([]command.Command, error) {
	if client == nil {
		return nil, nil
	}

	var commands []command.Command
	for _, serverName := range client.GetAllServers() {
		tools, err := client.GetTools(serverName)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get tools from server",
				goerr.V("server", serverName))
		}

		for _, t := range tools {
			spec, err := specFromTool(t)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to build command spec",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}

			commands = append(commands, &remoteCommand{
				client:     client,
				serverName: serverName,
				toolName:   t.Name,
				spec:       spec,
			})
		}
	}

	return commands, nil
}

// remoteCommand dispatches to a tool on a connected MCP server
type remoteCommand struct {
	client     *Client
	serverName string
	toolName   string
	spec       command.Spec
}

func (c *remoteCommand) Spec() command.Spec { return c.spec }

func (c *remoteCommand) Run(ctx context.Context, args model.Args) (string, error) {
	result, err := c.client.CallTool(ctx, c.serverName, c.toolName, args.Interface())
	if err != nil {
		return "", goerr.Wrap(err, "failed to call MCP tool")
	}

	text := renderResult(result)
	if result.IsError {
		return "", goerr.New("MCP tool reported an error",
			goerr.V("tool", c.toolName), goerr.V("detail", text))
	}

	return text, nil
}

// renderResult flattens a tool result into transcript text. Text
// content is concatenated; anything else falls back to its JSON form.
func renderResult(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if data, err := json.Marshal(content); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
