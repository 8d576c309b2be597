package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/m-mizutani/harrier/pkg/repository"
	"github.com/m-mizutani/harrier/pkg/usecase/agent"
	"github.com/m-mizutani/harrier/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	var (
		cfg           config
		profilePath   string
		sessionID     string
		continuous    bool
		maxIterations int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "profile",
			Aliases:     []string{"f"},
			Usage:       "Path to the agent profile YAML",
			Sources:     cli.EnvVars("HARRIER_PROFILE"),
			Destination: &profilePath,
		},
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID to resume",
			Sources:     cli.EnvVars("HARRIER_SESSION_ID"),
			Destination: &sessionID,
		},
		&cli.BoolFlag{
			Name:        "continuous",
			Aliases:     []string{"c"},
			Usage:       "Run without asking for confirmation before each command",
			Sources:     cli.EnvVars("HARRIER_CONTINUOUS"),
			Destination: &continuous,
		},
		&cli.IntFlag{
			Name:        "max-iterations",
			Usage:       "Stop after this many cycles (0 = no ceiling)",
			Value:       0,
			Sources:     cli.EnvVars("HARRIER_MAX_ITERATIONS"),
			Destination: &maxIterations,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, commandFlags(&cfg)...)

	return &cli.Command{
		Name:  "run",
		Usage: "Start or resume an agent session and drive its loop",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			session, err := openSession(ctx, repo, profilePath, sessionID)
			if err != nil {
				return err
			}

			ag, cleanup, err := cfg.newAgent(ctx, repo, session)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := ag.Save(ctx); err != nil {
				return err
			}

			return ag.RunLoop(ctx, agent.LoopConfig{
				Continuous:    continuous,
				MaxIterations: int(maxIterations),
				Out:           c.Root().Writer,
			})
		},
	}
}

// openSession resumes the named session, or creates one from the
// profile when no session ID is given
func openSession(ctx context.Context, repo repository.Repository, profilePath, sessionID string) (*model.Session, error) {
	if sessionID != "" {
		session, err := repo.GetSession(ctx, model.SessionID(sessionID))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load session", goerr.V("session", sessionID))
		}
		return session, nil
	}

	if profilePath == "" {
		return nil, goerr.New("either --profile or --session-id is required")
	}

	profile, err := loadProfile(profilePath)
	if err != nil {
		return nil, err
	}

	return model.NewSession(*profile), nil
}

func newCommand() *cli.Command {
	var (
		cfg         config
		profilePath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "profile",
			Aliases:     []string{"f"},
			Usage:       "Path to the agent profile YAML",
			Sources:     cli.EnvVars("HARRIER_PROFILE"),
			Destination: &profilePath,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "new",
		Usage: "Create a session from a profile and print its ID",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			profile, err := loadProfile(profilePath)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			session := model.NewSession(*profile)
			if err := repo.PutSession(ctx, session); err != nil {
				return goerr.Wrap(err, "failed to save session")
			}

			if _, ok := repo.(*repository.Memory); ok {
				logging.From(ctx).Warn("session created in a memory repository; it will not survive this process")
			}

			_, err = c.Root().Writer.Write([]byte(string(session.ID) + "\n"))
			return err
		},
	}
}
