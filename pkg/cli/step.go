package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"github.com/urfave/cli/v3"
)

func stepCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
		feedback  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID to advance",
			Sources:     cli.EnvVars("HARRIER_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "feedback",
			Usage:       "Human feedback to record instead of executing the planned command",
			Destination: &feedback,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, commandFlags(&cfg)...)

	return &cli.Command{
		Name:  "step",
		Usage: "Advance a session exactly one cycle and print the result as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			session, err := repo.GetSession(ctx, model.SessionID(sessionID))
			if err != nil {
				return goerr.Wrap(err, "failed to load session", goerr.V("session", sessionID))
			}

			ag, cleanup, err := cfg.newAgent(ctx, repo, session)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := ag.Step(ctx, feedback)
			if err != nil {
				return err
			}

			if err := ag.Save(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
