package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-fileops/internal/app"
	"go-fileops/internal/model"
)

type logFlags struct {
	action  string
	outcome string
	name    string
	since   time.Duration
	from    string
	to      string
	limit   int
}

func (c *cli) logCmd() *cobra.Command {
	flags := &logFlags{}
	cmd := &cobra.Command{
		Use:     "log",
		Short:   "Show the operation log, oldest first",
		Args:    cobra.NoArgs,
		GroupID: "history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter(time.Now())
			if err != nil {
				return err
			}

			return c.withCore(cmd, func(_ context.Context, core *app.Core) error {
				records := make([]model.LogRecord, 0)
				for record, err := range core.Engine.QueryLog(filter) {
					if err != nil {
						return err
					}
					records = append(records, record)
					// Keep only the newest entries.
					if flags.limit > 0 && len(records) > flags.limit {
						records = records[1:]
					}
				}

				if c.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), model.LogListData{Items: records})
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					_, _ = fmt.Fprintln(out, "no matching log records")
					return nil
				}
				for _, record := range records {
					printLogRecord(cmd, record)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.action, "action", "", "Only this action (copy, move, delete, rename, restore, empty_trash, trash_remove)")
	cmd.Flags().StringVar(&flags.outcome, "outcome", "", "Only this outcome (succeeded, failed, cancelled)")
	cmd.Flags().StringVar(&flags.name, "name", "", "Match a base name; glob patterns are allowed")
	cmd.Flags().DurationVar(&flags.since, "since", 0, "Only records newer than this duration")
	cmd.Flags().StringVar(&flags.from, "from", "", "Start of the time range (RFC3339)")
	cmd.Flags().StringVar(&flags.to, "to", "", "End of the time range (RFC3339)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Show at most this many of the newest records")
	return cmd
}

func (f *logFlags) filter(now time.Time) (model.LogFilter, error) {
	filter := model.LogFilter{
		Action:  strings.TrimSpace(f.action),
		Outcome: strings.TrimSpace(f.outcome),
		Name:    strings.TrimSpace(f.name),
	}

	if f.since > 0 {
		filter.From = now.Add(-f.since)
	}
	if f.from != "" {
		from, err := time.Parse(time.RFC3339, f.from)
		if err != nil {
			return model.LogFilter{}, fmt.Errorf("--from: %w", err)
		}
		filter.From = from
	}
	if f.to != "" {
		to, err := time.Parse(time.RFC3339, f.to)
		if err != nil {
			return model.LogFilter{}, fmt.Errorf("--to: %w", err)
		}
		filter.To = to
	}
	return filter, nil
}

func printLogRecord(cmd *cobra.Command, record model.LogRecord) {
	out := cmd.OutOrStdout()

	outcome := string(record.Outcome)
	switch record.Outcome {
	case model.OutcomeSucceeded:
		outcome = successColor.Sprint(outcome)
	case model.OutcomeCancelled:
		outcome = warningColor.Sprint(outcome)
	default:
		outcome = errorColor.Sprint(outcome)
	}

	_, _ = fmt.Fprintf(out, "%s  %-12s %s  %s",
		dim(record.Timestamp.Local().Format(time.DateTime)),
		record.Action,
		outcome,
		strings.Join(record.Sources, ", "),
	)
	if len(record.Destinations) > 0 {
		_, _ = fmt.Fprintf(out, " -> %s", strings.Join(record.Destinations, ", "))
	}
	_, _ = fmt.Fprintln(out)

	if record.ErrorDetail != "" {
		_, _ = fmt.Fprintf(out, "    %s\n", errorColor.Sprint(record.ErrorDetail))
	}
}
