package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-fileops/internal/app"
	"go-fileops/internal/config"
	"go-fileops/internal/logger"
)

const shutdownTimeout = 30 * time.Second

type cli struct {
	jsonOutput bool
	configPath string
	logLevel   string

	in *bufio.Reader
}

// NewRootCmd builds the fileops command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:     "fileops",
		Version: "dev",
		Short:   "Copy, move, delete and rename files with conflict handling and an undo trail",
		Long: `fileops runs bulk file operations through a planner and a worker engine.

Deletes go to the freedesktop trash unless --permanent is given, and every
finished action is appended to the operation log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.configPath != "" {
				if err := os.Setenv("FILEOPS_CONFIG", c.configPath); err != nil {
					return err
				}
			}
			logger.SetupWriter(cmd.ErrOrStderr(), c.logLevel)
			c.in = bufio.NewReader(cmd.InOrStdin())
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (overrides FILEOPS_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	root.AddGroup(
		&cobra.Group{ID: "operations", Title: "Operations:"},
		&cobra.Group{ID: "history", Title: "Trash & History:"},
		&cobra.Group{ID: "server", Title: "Server:"},
	)

	root.AddCommand(
		c.copyCmd(),
		c.moveCmd(),
		c.deleteCmd(),
		c.renameCmd(),
		c.logCmd(),
		c.trashCmd(),
		c.tokenCmd(),
		c.serveCmd(),
	)

	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// withCore loads configuration, starts an engine for the duration of fn and
// shuts it down afterwards.
func (c *cli) withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	core, err := app.NewCore(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := fn(ctx, core)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := core.Close(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
