package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	timeColor  = color.New(color.FgWhite)
	keyColor   = color.New(color.FgCyan)
	msgColor   = color.New(color.FgHiWhite)
	levelColor = map[slog.Level]*color.Color{
		slog.LevelDebug: color.New(color.FgMagenta),
		slog.LevelInfo:  color.New(color.FgGreen),
		slog.LevelWarn:  color.New(color.FgYellow),
		slog.LevelError: color.New(color.FgRed),
	}
)

// PrettyHandler renders one colored line per record. Colors follow
// fatih/color, so they switch off when the output is not a terminal.
type PrettyHandler struct {
	opts  slog.HandlerOptions
	w     io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{
		opts:  *opts,
		w:     w,
		mu:    &sync.Mutex{},
		attrs: []slog.Attr{},
	}
}

// Setup installs a PrettyHandler on stderr as the default logger.
func Setup(level string) *slog.Logger {
	return SetupWriter(os.Stderr, level)
}

func SetupWriter(w io.Writer, level string) *slog.Logger {
	log := slog.New(NewPrettyHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(log)
	return log
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minimum := slog.LevelInfo
	if h.opts.Level != nil {
		minimum = h.opts.Level.Level()
	}
	return level >= minimum
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder
	line.WriteString(timeColor.Sprint(r.Time.Format("15:04:05.000")))
	line.WriteByte(' ')

	paint, ok := levelColor[r.Level]
	if !ok {
		paint = msgColor
	}
	// Pad level to 5 chars (INFO , ERROR, DEBUG, WARN )
	line.WriteString(paint.Sprintf("%-5s", r.Level.String()))
	line.WriteByte(' ')
	line.WriteString(msgColor.Sprint(r.Message))

	for _, a := range h.attrs {
		appendAttr(&line, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&line, a, h.group)
		return true
	})
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func appendAttr(line *strings.Builder, a slog.Attr, group string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, nested := range a.Value.Group() {
			appendAttr(line, nested, key)
		}
		return
	}

	var val any = a.Value.Any()
	switch typed := val.(type) {
	case time.Time:
		val = typed.Format(time.RFC3339)
	case time.Duration:
		val = typed.String()
	case error:
		val = typed.Error()
	}

	fmt.Fprintf(line, " %s=%v", keyColor.Sprint(key), val)
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	for _, a := range attrs {
		// Keys are qualified now; a later WithGroup must not rename them.
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}

	return &PrettyHandler{
		opts:  h.opts,
		w:     h.w,
		mu:    h.mu, // Share mutex for writing to same output
		attrs: newAttrs,
		group: h.group,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}

	return &PrettyHandler{
		opts:  h.opts,
		w:     h.w,
		mu:    h.mu,
		attrs: h.attrs,
		group: newGroup,
	}
}
