// Package builtin provides the standard command set registered for
// every agent session: workspace file manipulation, long-term memory
// writes, web search, and loop control.
package builtin

import (
	"github.com/m-mizutani/harrier/pkg/command"
)

// Config carries credentials for the optional commands
type Config struct {
	// GoogleAPIKey and GoogleCSEID configure the "google" search
	// command via the Custom Search JSON API. The command is always
	// registered; without both set it reports a configuration error
	// when invoked.
	GoogleAPIKey string
	GoogleCSEID  string
}

// All returns the builtin command set for the given client
func All(client *command.Client, cfg Config) []command.Command {
	return []command.Command{
		&readFile{client: client},
		&writeFile{client: client},
		&appendFile{client: client},
		&deleteFile{client: client},
		&listFiles{client: client},
		&memoryAdd{client: client},
		newGoogle(cfg.GoogleAPIKey, cfg.GoogleCSEID),
		&doNothing{},
		&taskComplete{},
	}
}
