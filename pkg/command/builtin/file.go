package builtin

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/adapter"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/model"
)

// fileKey maps a workspace-relative filename to its storage key. The
// workspace is confined to the session's files/ prefix: traversal and
// absolute paths are rejected before they reach the blob store.
func fileKey(sessionID model.SessionID, filename string) (string, error) {
	cleaned := path.Clean(filename)
	if cleaned == "." || cleaned == ".." ||
		strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, "/") {
		return "", goerr.New("filename escapes the workspace", goerr.V("filename", filename))
	}
	return fmt.Sprintf("sessions/%s/files/%s", sessionID, cleaned), nil
}

type readFile struct {
	client *command.Client
}

func (c *readFile) Spec() command.Spec {
	return command.Spec{
		Name:        "read_file",
		Description: "Read File",
		Required:    []string{"filename"},
		Usage:       `"filename": "<filename>"`,
	}
}

func (c *readFile) Run(ctx context.Context, args model.Args) (string, error) {
	filename, _ := args.GetString("filename")
	key, err := fileKey(c.client.SessionID, filename)
	if err != nil {
		return "", err
	}

	text, err := c.client.Storage.Read(ctx, key)
	if err != nil {
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return "", goerr.New("no such file", goerr.V("filename", filename))
		}
		return "", err
	}

	return text, nil
}

type writeFile struct {
	client *command.Client
}

func (c *writeFile) Spec() command.Spec {
	return command.Spec{
		Name:        "write_to_file",
		Description: "Write to File",
		Required:    []string{"filename", "text"},
		Usage:       `"filename": "<filename>", "text": "<text>"`,
	}
}

func (c *writeFile) Run(ctx context.Context, args model.Args) (string, error) {
	filename, _ := args.GetString("filename")
	text, _ := args.GetString("text")

	key, err := fileKey(c.client.SessionID, filename)
	if err != nil {
		return "", err
	}

	if err := c.client.Storage.Write(ctx, key, text); err != nil {
		return "", err
	}

	return "File written to successfully.", nil
}

type appendFile struct {
	client *command.Client
}

func (c *appendFile) Spec() command.Spec {
	return command.Spec{
		Name:        "append_to_file",
		Description: "Append to File",
		Required:    []string{"filename", "text"},
		Usage:       `"filename": "<filename>", "text": "<text>"`,
	}
}

func (c *appendFile) Run(ctx context.Context, args model.Args) (string, error) {
	filename, _ := args.GetString("filename")
	text, _ := args.GetString("text")

	key, err := fileKey(c.client.SessionID, filename)
	if err != nil {
		return "", err
	}

	existing, err := c.client.Storage.Read(ctx, key)
	if err != nil && !errors.Is(err, adapter.ErrObjectNotFound) {
		return "", err
	}

	if err := c.client.Storage.Write(ctx, key, existing+text); err != nil {
		return "", err
	}

	return "Text appended successfully.", nil
}

type deleteFile struct {
	client *command.Client
}

func (c *deleteFile) Spec() command.Spec {
	return command.Spec{
		Name:        "delete_file",
		Description: "Delete File",
		Required:    []string{"filename"},
		Usage:       `"filename": "<filename>"`,
	}
}

func (c *deleteFile) Run(ctx context.Context, args model.Args) (string, error) {
	filename, _ := args.GetString("filename")
	key, err := fileKey(c.client.SessionID, filename)
	if err != nil {
		return "", err
	}

	if err := c.client.Storage.Delete(ctx, key); err != nil {
		return "", err
	}

	return "File deleted successfully.", nil
}

type listFiles struct {
	client *command.Client
}

func (c *listFiles) Spec() command.Spec {
	return command.Spec{
		Name:        "list_files",
		Description: "List Files in Workspace",
		Aliases:     []string{"search_files"},
	}
}

func (c *listFiles) Run(ctx context.Context, args model.Args) (string, error) {
	prefix := fmt.Sprintf("sessions/%s/files/", c.client.SessionID)

	keys, err := c.client.Storage.List(ctx, prefix)
	if err != nil {
		return "", err
	}

	if len(keys) == 0 {
		return "The workspace is empty.", nil
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, prefix))
	}

	return strings.Join(names, "\n"), nil
}
