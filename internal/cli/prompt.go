package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"go-fileops/internal/model"
)

const conflictPrompt = "[r]eplace, [s]kip, re[n]ame, [c]ancel (uppercase applies to all): "

// askConflict blocks on stdin until a valid answer arrives. End of input
// cancels.
func (c *cli) askConflict(cmd *cobra.Command, request model.ConflictRequest) model.ConflictDecision {
	errOut := cmd.ErrOrStderr()
	PrintWarning(errOut, fmt.Sprintf("%s already exists", request.DestPath))
	_, _ = fmt.Fprintf(errOut, "  %s %s\n", dim("source:"), request.SourcePath)

	for {
		_, _ = fmt.Fprint(errOut, conflictPrompt)
		line, err := c.in.ReadString('\n')
		if decision, ok := parseDecision(line); ok {
			return decision
		}
		if err != nil {
			if err != io.EOF {
				PrintError(errOut, err.Error())
			}
			_, _ = fmt.Fprintln(errOut)
			return model.ConflictDecision{Action: model.ConflictCancel, Scope: model.ScopeThisItem}
		}
		PrintError(errOut, fmt.Sprintf("unrecognized answer %q", strings.TrimSpace(line)))
	}
}

// parseDecision accepts a single letter, where uppercase means apply to
// all, or a word with an optional "-all" suffix.
func parseDecision(raw string) (model.ConflictDecision, bool) {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return model.ConflictDecision{}, false
	}

	scope := model.ScopeThisItem
	if len(answer) == 1 {
		if strings.ToUpper(answer) == answer {
			scope = model.ScopeApplyToAll
		}
		answer = strings.ToLower(answer)
	} else {
		answer = strings.ToLower(answer)
		if trimmed, ok := strings.CutSuffix(answer, "-all"); ok {
			answer = trimmed
			scope = model.ScopeApplyToAll
		}
	}

	var action model.ConflictAction
	switch answer {
	case "r", "replace":
		action = model.ConflictReplace
	case "s", "skip":
		action = model.ConflictSkip
	case "n", "rename":
		action = model.ConflictRename
	case "c", "cancel":
		action = model.ConflictCancel
	default:
		return model.ConflictDecision{}, false
	}

	return model.ConflictDecision{Action: action, Scope: scope}, true
}
