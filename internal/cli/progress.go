package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"go-fileops/internal/event"
)

const progressPathWidth = 40

// progressPrinter redraws a single status line on a terminal. On anything
// else it stays quiet.
type progressPrinter struct {
	w       io.Writer
	verb    string
	enabled bool
	now     func() time.Time

	started time.Time
	drawn   int
}

func newProgressPrinter(w io.Writer, verb string) *progressPrinter {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressPrinter{w: w, verb: verb, enabled: enabled, now: time.Now}
}

func (p *progressPrinter) update(payload event.ProgressPayload) {
	if !p.enabled {
		return
	}
	line := p.render(payload)
	padding := ""
	if p.drawn > len(line) {
		padding = strings.Repeat(" ", p.drawn-len(line))
	}
	_, _ = fmt.Fprintf(p.w, "\r%s%s", line, padding)
	p.drawn = len(line)
}

func (p *progressPrinter) render(payload event.ProgressPayload) string {
	now := p.now()
	if p.started.IsZero() {
		p.started = now
	}
	elapsed := now.Sub(p.started)

	var rate float64
	if elapsed > 0 {
		rate = float64(payload.BytesDone) / elapsed.Seconds()
	}

	var eta time.Duration
	if rate > 0 && payload.BytesTotal > payload.BytesDone {
		eta = time.Duration(float64(payload.BytesTotal-payload.BytesDone) / rate * float64(time.Second))
	}

	percent := 0
	if payload.BytesTotal > 0 {
		percent = int(payload.BytesDone * 100 / payload.BytesTotal)
	} else if payload.ItemsTotal > 0 {
		percent = payload.ItemsDone * 100 / payload.ItemsTotal
	}

	return fmt.Sprintf("%s %3d%%  %s/%s  %d/%d items  %s  ETA %s  %s",
		p.verb,
		percent,
		humanize.IBytes(uint64(payload.BytesDone)),
		humanize.IBytes(uint64(payload.BytesTotal)),
		payload.ItemsDone,
		payload.ItemsTotal,
		formatRate(rate),
		formatETA(eta),
		shorten(payload.CurrentPath, progressPathWidth),
	)
}

func (p *progressPrinter) clear() {
	if !p.enabled || p.drawn == 0 {
		return
	}
	_, _ = fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.drawn))
	p.drawn = 0
}
