package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	require.Empty(t, buf.String())

	log.With("operation_id", "op-1").WithGroup("step").Warn("step failed", "id", 3, "error", errors.New("denied"))
	out := buf.String()
	require.Contains(t, out, "WARN ")
	require.Contains(t, out, "step failed")
	require.Contains(t, out, "operation_id=op-1")
	require.Contains(t, out, "step.id=3")
	require.Contains(t, out, "step.error=denied")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}
