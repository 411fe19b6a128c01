package service

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"go-fileops/internal/model"
)

const (
	activeLogName      = "operations.jsonl"
	rotatedLogPrefix   = "operations-"
	rotatedLogSuffix   = ".jsonl"
	rotatedStampLayout = "20060102T150405.000000000Z"
	maxLogLineBytes    = 4 * 1024 * 1024
)

type OperationLogConfig struct {
	Dir      string
	MaxBytes int64
	MaxFiles int
	MaxAge   time.Duration
}

// OperationLog is the append-only JSON-lines record of finished actions.
type OperationLog struct {
	cfg OperationLogConfig
	mu  sync.Mutex
	now func() time.Time
}

func NewOperationLog(cfg OperationLogConfig) (*OperationLog, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("operation log directory cannot be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare operation log directory: %w", err)
	}

	return &OperationLog{cfg: cfg, now: time.Now}, nil
}

func (l *OperationLog) Path() string {
	return filepath.Join(l.cfg.Dir, activeLogName)
}

// Append writes one record as a single line. Failures come back as
// *model.LogWriteError and never affect the operation being recorded.
func (l *OperationLog) Append(record model.LogRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now().UTC()
	}
	if record.Sources == nil {
		record.Sources = []string{}
	}
	if record.Destinations == nil {
		record.Destinations = []string{}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return &model.LogWriteError{Path: l.Path(), Err: err}
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(int64(len(data))); err != nil {
		slog.Warn("operation log rotation failed", "path", l.Path(), "error", err)
	}

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &model.LogWriteError{Path: l.Path(), Err: err}
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return &model.LogWriteError{Path: l.Path(), Err: err}
	}
	_ = f.Sync()

	return nil
}

func (l *OperationLog) rotateIfNeeded(incoming int64) error {
	if l.cfg.MaxBytes <= 0 {
		return nil
	}

	info, err := os.Stat(l.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.Size() == 0 || info.Size()+incoming <= l.cfg.MaxBytes {
		return nil
	}

	rotated := filepath.Join(l.cfg.Dir, rotatedLogPrefix+l.now().UTC().Format(rotatedStampLayout)+rotatedLogSuffix)
	if err := os.Rename(l.Path(), rotated); err != nil {
		return fmt.Errorf("rotate operation log: %w", err)
	}

	return l.prune()
}

// prune drops rotated files past MaxAge, then the oldest beyond MaxFiles.
func (l *OperationLog) prune() error {
	rotated, err := l.rotatedFiles()
	if err != nil {
		return err
	}

	keep := rotated[:0]
	var errs []error
	for _, file := range rotated {
		if l.cfg.MaxAge > 0 && l.now().Sub(file.stamp) > l.cfg.MaxAge {
			if err := os.Remove(file.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		keep = append(keep, file)
	}

	for len(keep) > l.cfg.MaxFiles {
		if err := os.Remove(keep[0].path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		keep = keep[1:]
	}

	return errors.Join(errs...)
}

type rotatedFile struct {
	path  string
	stamp time.Time
}

// rotatedFiles lists rotated logs oldest first.
func (l *OperationLog) rotatedFiles() ([]rotatedFile, error) {
	entries, err := os.ReadDir(l.cfg.Dir)
	if err != nil {
		return nil, err
	}

	files := make([]rotatedFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, rotatedLogPrefix) || !strings.HasSuffix(name, rotatedLogSuffix) {
			continue
		}

		raw := strings.TrimSuffix(strings.TrimPrefix(name, rotatedLogPrefix), rotatedLogSuffix)
		stamp, parseErr := time.Parse(rotatedStampLayout, raw)
		if parseErr != nil {
			continue
		}
		files = append(files, rotatedFile{path: filepath.Join(l.cfg.Dir, name), stamp: stamp})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].stamp.Before(files[j].stamp) })
	return files, nil
}

// Query yields matching records from every retained file, oldest first.
// Each range re-reads the files, so the sequence can be iterated again.
// Malformed lines are skipped.
func (l *OperationLog) Query(filter model.LogFilter) iter.Seq2[model.LogRecord, error] {
	match := newLogMatcher(filter)

	return func(yield func(model.LogRecord, error) bool) {
		files, err := l.openLogFiles()
		if err != nil {
			yield(model.LogRecord{}, err)
			return
		}
		defer func() {
			for _, file := range files {
				if file.f != nil {
					_ = file.f.Close()
				}
			}
		}()

		for _, file := range files {
			if !readLogFile(file, match, yield) {
				return
			}
		}
	}
}

type openLogFile struct {
	path string
	f    *os.File
	err  error
}

// openLogFiles opens the rotated files and the active file in one critical
// section. The handles stay readable when a later rotation renames the
// active file or pruning removes a rotated one.
func (l *OperationLog) openLogFiles() ([]openLogFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rotated, err := l.rotatedFiles()
	if err != nil {
		return nil, fmt.Errorf("list operation logs: %w", err)
	}

	paths := make([]string, 0, len(rotated)+1)
	for _, file := range rotated {
		paths = append(paths, file.path)
	}
	paths = append(paths, l.Path())

	files := make([]openLogFile, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		files = append(files, openLogFile{path: path, f: f, err: err})
	}
	return files, nil
}

func readLogFile(file openLogFile, match func(model.LogRecord) bool, yield func(model.LogRecord, error) bool) bool {
	if file.err != nil {
		return yield(model.LogRecord{}, fmt.Errorf("open operation log: %w", file.err))
	}

	scanner := bufio.NewScanner(file.f)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record model.LogRecord
		if unmarshalErr := json.Unmarshal([]byte(line), &record); unmarshalErr != nil {
			continue
		}
		if record.Action == "" || record.Timestamp.IsZero() {
			continue
		}
		if !match(record) {
			continue
		}
		if !yield(record, nil) {
			return false
		}
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return yield(model.LogRecord{}, fmt.Errorf("read operation log %q: %w", file.path, scanErr))
	}
	return true
}

func newLogMatcher(filter model.LogFilter) func(model.LogRecord) bool {
	action := strings.ToLower(strings.TrimSpace(filter.Action))
	outcome := strings.ToLower(strings.TrimSpace(filter.Outcome))
	name := strings.ToLower(strings.TrimSpace(filter.Name))
	glob := name != "" && strings.ContainsAny(name, "*?[{")
	if glob && !doublestar.ValidatePattern(name) {
		glob = false
	}

	matchName := func(path string) bool {
		base := strings.ToLower(filepath.Base(path))
		if glob {
			ok, _ := doublestar.Match(name, base)
			return ok
		}
		return strings.Contains(base, name)
	}

	return func(record model.LogRecord) bool {
		if action != "" && strings.ToLower(record.Action) != action {
			return false
		}
		if outcome != "" && strings.ToLower(string(record.Outcome)) != outcome {
			return false
		}
		if !filter.From.IsZero() && record.Timestamp.Before(filter.From) {
			return false
		}
		if !filter.To.IsZero() && record.Timestamp.After(filter.To) {
			return false
		}
		if name == "" {
			return true
		}

		for _, path := range record.Sources {
			if matchName(path) {
				return true
			}
		}
		for _, path := range record.Destinations {
			if matchName(path) {
				return true
			}
		}
		return false
	}
}
