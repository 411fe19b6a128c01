package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-fileops/internal/app"
	"go-fileops/internal/config"
	"go-fileops/internal/logger"
)

func (c *cli) tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "token <subject>",
		Short:   "Issue an API token signed with API_TOKEN_SECRET",
		Args:    cobra.ExactArgs(1),
		GroupID: "server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(_ context.Context, core *app.Core) error {
				if core.Tokens == nil {
					return fmt.Errorf("API_TOKEN_SECRET is not set")
				}
				token, err := core.Tokens.Issue(args[0])
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), token)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), token.Token)
				return nil
			})
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Args:    cobra.NoArgs,
		GroupID: "server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				if err := os.Setenv("SERVER_PORT", port); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") {
				logger.SetupWriter(cmd.ErrOrStderr(), cfg.LogLevel)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides SERVER_PORT)")
	return cmd
}
