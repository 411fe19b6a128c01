package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go-fileops/internal/app"
)

func (c *cli) trashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trash",
		Short:   "Inspect and manage the trash",
		GroupID: "history",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List trashed entries, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withCore(cmd, func(ctx context.Context, core *app.Core) error {
					entries, err := core.Engine.ListTrash(ctx)
					if err != nil {
						return err
					}
					if c.jsonOutput {
						return writeJSON(cmd.OutOrStdout(), entries)
					}

					out := cmd.OutOrStdout()
					if len(entries) == 0 {
						_, _ = fmt.Fprintln(out, "trash is empty")
						return nil
					}
					for _, entry := range entries {
						origin := entry.OriginalPath
						if !entry.MetadataWritten {
							origin = warningColor.Sprint("(original location unknown)")
						}
						_, _ = fmt.Fprintf(out, "%s  %s  %s\n",
							dim(entry.TrashedAt.Local().Format(time.DateTime)), entry.ID, origin)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore <id>...",
			Short: "Move entries back to where they were deleted from",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCore(cmd, func(ctx context.Context, core *app.Core) error {
					var errs []error
					for _, id := range args {
						entry, err := core.Engine.RestoreTrash(ctx, id)
						if err != nil {
							PrintError(cmd.ErrOrStderr(), fmt.Sprintf("%s: %v", id, err))
							errs = append(errs, err)
							continue
						}
						PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("restored %s", entry.OriginalPath))
					}
					return errors.Join(errs...)
				})
			},
		},
		&cobra.Command{
			Use:   "rm <id>...",
			Short: "Permanently delete entries from the trash",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCore(cmd, func(ctx context.Context, core *app.Core) error {
					var errs []error
					for _, id := range args {
						if _, err := core.Engine.RemoveTrash(ctx, id); err != nil {
							PrintError(cmd.ErrOrStderr(), fmt.Sprintf("%s: %v", id, err))
							errs = append(errs, err)
							continue
						}
						PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("removed %s", id))
					}
					return errors.Join(errs...)
				})
			},
		},
		&cobra.Command{
			Use:   "empty",
			Short: "Permanently delete everything in the trash",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withCore(cmd, func(ctx context.Context, core *app.Core) error {
					result, err := core.Engine.EmptyTrash(ctx)
					if c.jsonOutput {
						if encodeErr := writeJSON(cmd.OutOrStdout(), result); encodeErr != nil {
							return encodeErr
						}
					} else {
						PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("removed %d entries", result.Removed))
						for _, failure := range result.Failures {
							PrintError(cmd.ErrOrStderr(), fmt.Sprintf("%s: %s", failure.ID, failure.Reason))
						}
					}
					if err != nil {
						return err
					}
					if len(result.Failures) > 0 {
						return fmt.Errorf("%d trash entries could not be removed", len(result.Failures))
					}
					return nil
				})
			},
		},
	)

	return cmd
}

