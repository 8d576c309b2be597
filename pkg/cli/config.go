package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/adapter"
	"github.com/m-mizutani/harrier/pkg/command"
	"github.com/m-mizutani/harrier/pkg/command/builtin"
	"github.com/m-mizutani/harrier/pkg/decode"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/repository"
	"github.com/m-mizutani/harrier/pkg/service/mcp"
	"github.com/m-mizutani/harrier/pkg/service/memory"
	"github.com/m-mizutani/harrier/pkg/usecase/agent"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel string

	// Repository
	project  string
	database string
	local    bool

	// Adapters
	geminiProject  string
	geminiLocation string
	bucket         string
	noJSONFixer    bool

	// Commands
	policyDir    string
	mcpConfig    string
	googleAPIKey string
	googleCSEID  string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("HARRIER_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "local",
			Usage:       "Keep all state in memory (no Firestore or Cloud Storage)",
			Sources:     cli.EnvVars("HARRIER_LOCAL"),
			Destination: &cfg.local,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for workspace files and audit logs",
			Sources:     cli.EnvVars("HARRIER_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.BoolFlag{
			Name:        "no-json-fixer",
			Usage:       "Disable the LLM repair pass for unparseable replies",
			Sources:     cli.EnvVars("HARRIER_NO_JSON_FIXER"),
			Destination: &cfg.noJSONFixer,
		},
	}
}

// commandFlags returns flags controlling the agent's command set
func commandFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies authorizing commands",
			Sources:     cli.EnvVars("HARRIER_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "Path to MCP server configuration (YAML)",
			Sources:     cli.EnvVars("HARRIER_MCP_CONFIG"),
			Destination: &cfg.mcpConfig,
		},
		&cli.StringFlag{
			Name:        "google-api-key",
			Usage:       "API key for the Custom Search JSON API",
			Sources:     cli.EnvVars("HARRIER_GOOGLE_API_KEY"),
			Destination: &cfg.googleAPIKey,
		},
		&cli.StringFlag{
			Name:        "google-cse-id",
			Usage:       "Custom Search Engine ID",
			Sources:     cli.EnvVars("HARRIER_GOOGLE_CSE_ID"),
			Destination: &cfg.googleCSEID,
		},
	}
}

// setupLogger installs a logger for the invocation and returns the
// context carrying it
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.local {
		return repository.NewMemory(), nil
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required (or use --local)")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	project := cfg.geminiProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	gemini, err := adapter.NewGemini(ctx, project, cfg.geminiLocation)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}
	return gemini, nil
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.local {
		return adapter.NewMemoryStorage(), nil
	}

	if cfg.bucket == "" {
		return nil, goerr.New("bucket is required (or use --local)")
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newAgent assembles the full agent over an existing session
func (cfg *config) newAgent(ctx context.Context, repo repository.Repository, session *model.Session) (*agent.Agent, func(), error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := memory.New(ctx, repo, gemini, session.ID)
	if err != nil {
		return nil, nil, err
	}

	registry, cleanup, err := cfg.newRegistry(ctx, storage, store, session.ID)
	if err != nil {
		return nil, nil, err
	}

	var decodeOpts []decode.Option
	if !cfg.noJSONFixer {
		decodeOpts = append(decodeOpts, decode.WithFixer(decode.NewGeminiFixer(gemini)))
	}

	decoder, err := decode.New(decodeOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	ag, err := agent.New(agent.NewInput{
		Repo:     repo,
		Gemini:   gemini,
		Storage:  storage,
		Decoder:  decoder,
		Registry: registry,
		Memory:   store,
		Session:  session,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return ag, cleanup, nil
}

// newRegistry builds the command registry: builtins, MCP tools, and
// the authorization policy. The returned cleanup closes MCP sessions.
func (cfg *config) newRegistry(ctx context.Context, storage adapter.Storage, store *memory.Store, sessionID model.SessionID) (*command.Registry, func(), error) {
	client := &command.Client{
		Storage:   storage,
		Memory:    store,
		SessionID: sessionID,
	}

	commands := builtin.All(client, builtin.Config{
		GoogleAPIKey: cfg.googleAPIKey,
		GoogleCSEID:  cfg.googleCSEID,
	})

	cleanup := func() {}

	mcpClient, err := mcp.LoadAndConnect(ctx, cfg.mcpConfig)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to connect MCP servers")
	}
	if mcpClient != nil {
		cleanup = func() {
			if err := mcpClient.Close(); err != nil {
				logging.From(ctx).Warn("failed to close MCP client", "error", err)
			}
		}

		remote, err := mcp.Commands(mcpClient)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		commands = append(commands, remote...)
	}

	var opts []command.RegistryOption
	if cfg.policyDir != "" {
		policy, err := command.LoadPolicy(ctx, cfg.policyDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if policy != nil {
			opts = append(opts, command.WithPolicy(policy))
		}
	}

	registry, err := command.New(commands, opts...)
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to build command registry")
	}

	return registry, cleanup, nil
}
