package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"go-fileops/internal/app"
	"go-fileops/internal/event"
	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

type operationFlags struct {
	conflict  string
	permanent bool
}

func (c *cli) copyCmd() *cobra.Command {
	flags := &operationFlags{}
	cmd := &cobra.Command{
		Use:     "copy <source>... <destination>",
		Short:   "Copy files or directories",
		Long:    "Copy sources into destination. An existing directory receives the sources; otherwise a single source is copied to that path.",
		Args:    cobra.MinimumNArgs(2),
		GroupID: "operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, model.OperationRequest{
				Type:        model.OperationCopy,
				Sources:     absPaths(args[:len(args)-1]),
				Destination: absPath(args[len(args)-1]),
				Conflict:    model.ConflictAction(flags.conflict),
			})
		},
	}
	addConflictFlag(cmd, flags)
	return cmd
}

func (c *cli) moveCmd() *cobra.Command {
	flags := &operationFlags{}
	cmd := &cobra.Command{
		Use:     "move <source>... <destination>",
		Aliases: []string{"mv"},
		Short:   "Move files or directories, falling back to copy+remove across devices",
		Args:    cobra.MinimumNArgs(2),
		GroupID: "operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, model.OperationRequest{
				Type:        model.OperationMove,
				Sources:     absPaths(args[:len(args)-1]),
				Destination: absPath(args[len(args)-1]),
				Conflict:    model.ConflictAction(flags.conflict),
			})
		},
	}
	addConflictFlag(cmd, flags)
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	flags := &operationFlags{}
	cmd := &cobra.Command{
		Use:     "delete <path>...",
		Aliases: []string{"rm"},
		Short:   "Send paths to the trash, or remove them with --permanent",
		Args:    cobra.MinimumNArgs(1),
		GroupID: "operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, model.OperationRequest{
				Type:      model.OperationDelete,
				Sources:   absPaths(args),
				Permanent: flags.permanent,
			})
		},
	}
	cmd.Flags().BoolVar(&flags.permanent, "permanent", false, "Delete permanently instead of trashing")
	return cmd
}

func (c *cli) renameCmd() *cobra.Command {
	flags := &operationFlags{}
	cmd := &cobra.Command{
		Use:     "rename <path> <new-name>",
		Short:   "Rename an entry in place",
		Args:    cobra.ExactArgs(2),
		GroupID: "operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, model.OperationRequest{
				Type:        model.OperationRename,
				Sources:     absPaths(args[:1]),
				Destination: args[1],
				Conflict:    model.ConflictAction(flags.conflict),
			})
		},
	}
	addConflictFlag(cmd, flags)
	return cmd
}

func addConflictFlag(cmd *cobra.Command, flags *operationFlags) {
	cmd.Flags().StringVar(&flags.conflict, "conflict", "", "On collision: ask|replace|skip|rename|cancel (default from CONFLICT_DEFAULT)")
}

// runOperation submits the request, follows its events until it completes
// and prints the outcome. Ctrl-C cancels the operation cooperatively.
func (c *cli) runOperation(cmd *cobra.Command, request model.OperationRequest) error {
	return c.withCore(cmd, func(ctx context.Context, core *app.Core) error {
		events, unsubscribe := core.Bus.Subscribe()
		defer unsubscribe()

		id, err := core.Engine.Submit(ctx, request)
		if err != nil {
			return err
		}

		interrupt, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		c.follow(ctx, cmd, core.Engine, events, id, interrupt.Done(), string(request.Type))

		op, err := core.Engine.Wait(ctx, id)
		if err != nil {
			return err
		}

		if c.jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), op); err != nil {
				return err
			}
		} else {
			printOperation(cmd.OutOrStdout(), cmd.ErrOrStderr(), op)
		}

		if op.Status != model.StatusSucceeded {
			return fmt.Errorf("operation %s %s", op.ID, op.Status)
		}
		return nil
	})
}

// operationControl is the part of the engine the follow loop drives.
type operationControl interface {
	Cancel(id string) error
	ResolveConflict(id string, stepID int, decision model.ConflictDecision) error
	Wait(ctx context.Context, id string) (model.Operation, error)
}

type conflictAnswer struct {
	stepID   int
	decision model.ConflictDecision
}

// follow renders progress and answers conflicts until the operation is
// finished. Prompts run off the loop so an interrupt is acted on while one
// is waiting for input. The loop ends on Wait, not on the completed event,
// which a slow subscriber may miss.
func (c *cli) follow(ctx context.Context, cmd *cobra.Command, engine operationControl, events <-chan event.Event, id string, interrupted <-chan struct{}, verb string) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = engine.Wait(ctx, id)
	}()

	progress := newProgressPrinter(cmd.ErrOrStderr(), verb)
	defer progress.clear()

	answers := make(chan conflictAnswer, 1)
	prompting := false

	for {
		select {
		case <-finished:
			return
		case <-interrupted:
			interrupted = nil
			progress.clear()
			PrintWarning(cmd.ErrOrStderr(), "cancelling...")
			if err := engine.Cancel(id); err != nil {
				return
			}
		case answer := <-answers:
			prompting = false
			if err := engine.ResolveConflict(id, answer.stepID, answer.decision); err != nil {
				PrintError(cmd.ErrOrStderr(), err.Error())
			}
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if opID, found := event.OperationID(e); !found || opID != id {
				continue
			}

			switch payload := e.Payload.(type) {
			case event.ProgressPayload:
				if !prompting {
					progress.update(payload)
				}
			case model.ConflictRequest:
				if prompting {
					continue
				}
				progress.clear()
				prompting = true
				go func() {
					answers <- conflictAnswer{stepID: payload.StepID, decision: c.askConflict(cmd, payload)}
				}()
			}
		}
	}
}

// absPath keeps a trailing separator, which marks a destination as a
// directory.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if storage.HasTrailingSeparator(path) && abs != string(filepath.Separator) {
		abs += string(filepath.Separator)
	}
	return abs
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		out = append(out, absPath(path))
	}
	return out
}
