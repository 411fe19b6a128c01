package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"go-fileops/internal/model"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func PrintSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

func PrintSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func PrintWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

func PrintError(w io.Writer, msg string) {
	_, _ = errorColor.Fprintf(w, "✗ %s\n", msg)
}

func PrintLabelValue(w io.Writer, label string, value string) {
	_, _ = labelColor.Fprintf(w, "  %s: ", label)
	_, _ = fmt.Fprintln(w, value)
}

// printOperation writes the summary to out and failures to errOut.
func printOperation(out io.Writer, errOut io.Writer, op model.Operation) {
	title := fmt.Sprintf("%s %s", strings.ToUpper(string(op.Type[:1]))+string(op.Type[1:]), op.Status)
	switch op.Status {
	case model.StatusSucceeded:
		PrintSuccess(out, title)
	case model.StatusCancelled:
		PrintWarning(out, title)
	default:
		PrintError(out, title)
	}

	PrintLabelValue(out, "ID", op.ID)
	PrintLabelValue(out, "Steps", fmt.Sprintf("%d succeeded, %d failed, %d skipped, %d cancelled",
		op.Summary.Succeeded, op.Summary.Failed, op.Summary.Skipped, op.Summary.Cancelled))
	if op.BytesTotal > 0 {
		PrintLabelValue(out, "Data", fmt.Sprintf("%s of %s", humanize.IBytes(uint64(op.BytesDone)), humanize.IBytes(uint64(op.BytesTotal))))
	}
	if op.StartedAt != nil && op.FinishedAt != nil {
		PrintLabelValue(out, "Elapsed", op.FinishedAt.Sub(*op.StartedAt).Round(time.Millisecond).String())
	}
	for _, destination := range op.Destinations {
		PrintLabelValue(out, "Destination", destination)
	}

	if op.Error != "" {
		PrintError(errOut, op.Error)
	}
	for _, failure := range op.Failures {
		path := failure.Source
		if failure.Destination != "" {
			path = failure.Destination
		}
		PrintError(errOut, fmt.Sprintf("%s: %s (%s)", path, failure.Reason, failure.Kind))
	}
	for _, warning := range op.Warnings {
		PrintWarning(errOut, warning)
	}
}

func formatRate(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

func formatETA(remaining time.Duration) string {
	if remaining <= 0 {
		return "-"
	}
	if remaining < time.Second {
		return "<1s"
	}
	return remaining.Round(time.Second).String()
}

func shorten(path string, limit int) string {
	if len(path) <= limit || limit < 4 {
		return path
	}
	return "..." + path[len(path)-limit+3:]
}

func dim(value string) string {
	return dimColor.Sprint(value)
}
