package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

const (
	trashInfoSuffix     = ".trashinfo"
	trashInfoHeader     = "[Trash Info]"
	trashDeletionLayout = "2006-01-02T15:04:05"
	maxTrashNameTries   = 10000
)

// TrashService implements the freedesktop.org trash layout: content under
// files/ and one info/<name>.trashinfo per entry.
type TrashService struct {
	fs       storage.FS
	root     string
	filesDir string
	infoDir  string
	transfer *transfer
	now      func() time.Time
}

func NewTrashService(fsys storage.FS, root string, chunkSize int) (*TrashService, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("trash root cannot be empty")
	}

	s := &TrashService{
		fs:       fsys,
		root:     root,
		filesDir: filepath.Join(root, "files"),
		infoDir:  filepath.Join(root, "info"),
		transfer: newTransfer(fsys, chunkSize, false),
		now:      time.Now,
	}

	for _, dir := range []string{s.filesDir, s.infoDir} {
		if err := fsys.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("prepare trash directory: %w", err)
		}
	}

	return s, nil
}

func (s *TrashService) Root() string {
	return s.root
}

// Trash moves path into the trash. When the move succeeds but the info file
// cannot be written the entry is still returned, with MetadataWritten false.
func (s *TrashService) Trash(ctx context.Context, path string) (model.TrashEntry, error) {
	info, err := s.fs.Lstat(path)
	if err != nil {
		return model.TrashEntry{}, &model.TrashError{Op: "trash", Path: path, Err: err}
	}

	name, err := s.uniqueName(filepath.Base(path))
	if err != nil {
		return model.TrashEntry{}, &model.TrashError{Op: "trash", Path: path, Err: err}
	}

	trashedPath := filepath.Join(s.filesDir, name)
	if _, err := s.transfer.moveEntry(ctx, path, trashedPath, nil); err != nil {
		return model.TrashEntry{}, &model.TrashError{Op: "trash", Path: path, Err: err}
	}

	entry := model.TrashEntry{
		ID:           name,
		OriginalPath: path,
		TrashedPath:  trashedPath,
		TrashedAt:    s.now().Truncate(time.Second),
		IsDir:        info.IsDir(),
	}

	infoPath := s.infoPath(name)
	if err := s.writeInfo(infoPath, path, entry.TrashedAt); err != nil {
		entry.MetadataError = err.Error()
		slog.Warn("trash metadata not written", "path", path, "trashed_path", trashedPath, "error", err)
		return entry, nil
	}

	entry.InfoPath = infoPath
	entry.MetadataWritten = true
	return entry, nil
}

// uniqueName picks "name", "name 1", "name 2" ... free in both files/ and
// info/.
func (s *TrashService) uniqueName(base string) (string, error) {
	for index := 0; index <= maxTrashNameTries; index++ {
		candidate := base
		if index > 0 {
			candidate = fmt.Sprintf("%s %d", base, index)
		}

		contentExists, err := storage.Exists(s.fs, filepath.Join(s.filesDir, candidate))
		if err != nil {
			return "", err
		}
		infoExists, err := storage.Exists(s.fs, s.infoPath(candidate))
		if err != nil {
			return "", err
		}
		if !contentExists && !infoExists {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free trash name for %q", base)
}

func (s *TrashService) infoPath(name string) string {
	return filepath.Join(s.infoDir, name+trashInfoSuffix)
}

func (s *TrashService) writeInfo(infoPath string, originalPath string, deletedAt time.Time) error {
	f, err := s.fs.OpenFile(infoPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	content := fmt.Sprintf("%s\nPath=%s\nDeletionDate=%s\n", trashInfoHeader, encodeTrashPath(originalPath), deletedAt.Local().Format(trashDeletionLayout))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(infoPath)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(infoPath)
		return err
	}
	return f.Close()
}

// encodeTrashPath percent-encodes every segment and keeps the separators.
func encodeTrashPath(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

type trashInfo struct {
	originalPath string
	deletedAt    time.Time
}

func (s *TrashService) readInfo(infoPath string) (trashInfo, error) {
	f, err := s.fs.Open(infoPath)
	if err != nil {
		return trashInfo{}, err
	}
	defer f.Close()

	var parsed trashInfo
	inSection := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inSection = line == trashInfoHeader
			continue
		}
		if !inSection {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "Path":
			decoded, decodeErr := url.PathUnescape(value)
			if decodeErr != nil {
				return trashInfo{}, fmt.Errorf("decode Path: %w", decodeErr)
			}
			parsed.originalPath = decoded
		case "DeletionDate":
			if at, parseErr := time.ParseInLocation(trashDeletionLayout, value, time.Local); parseErr == nil {
				parsed.deletedAt = at
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return trashInfo{}, err
	}
	if parsed.originalPath == "" {
		return trashInfo{}, fmt.Errorf("%s has no Path", infoPath)
	}
	return parsed, nil
}

// List returns entries with metadata plus content that has none, newest
// first. Info files whose content is gone are ignored.
func (s *TrashService) List(ctx context.Context) ([]model.TrashEntry, error) {
	contents, err := s.fs.ReadDir(s.filesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.TrashEntry{}, nil
		}
		return nil, &model.TrashError{Op: "list", Path: s.filesDir, Err: err}
	}

	entries := make([]model.TrashEntry, 0, len(contents))
	for _, content := range contents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries = append(entries, s.describe(content.Name()))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TrashedAt.After(entries[j].TrashedAt)
	})
	return entries, nil
}

func (s *TrashService) describe(name string) model.TrashEntry {
	entry := model.TrashEntry{ID: name, TrashedPath: filepath.Join(s.filesDir, name)}
	if info, err := s.fs.Lstat(entry.TrashedPath); err == nil {
		entry.IsDir = info.IsDir()
		entry.TrashedAt = info.ModTime()
	}

	infoPath := s.infoPath(name)
	parsed, err := s.readInfo(infoPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			entry.MetadataError = err.Error()
		}
		return entry
	}

	entry.InfoPath = infoPath
	entry.OriginalPath = parsed.originalPath
	entry.MetadataWritten = true
	if !parsed.deletedAt.IsZero() {
		entry.TrashedAt = parsed.deletedAt
	}
	return entry
}

func (s *TrashService) lookup(id string) (model.TrashEntry, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return model.TrashEntry{}, fmt.Errorf("%w: %q", model.ErrTrashItemNotFound, id)
	}

	exists, err := storage.Exists(s.fs, filepath.Join(s.filesDir, id))
	if err != nil {
		return model.TrashEntry{}, &model.TrashError{Op: "lookup", Path: id, Err: err}
	}
	if !exists {
		return model.TrashEntry{}, fmt.Errorf("%w: %q", model.ErrTrashItemNotFound, id)
	}
	return s.describe(id), nil
}

// Restore moves an entry back to its original path and removes its info
// file. It refuses entries without metadata and occupied targets.
func (s *TrashService) Restore(ctx context.Context, id string) (model.TrashEntry, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return model.TrashEntry{}, err
	}
	if !entry.MetadataWritten {
		return entry, fmt.Errorf("%w: %q", model.ErrRestoreUnavailable, id)
	}

	occupied, err := storage.Exists(s.fs, entry.OriginalPath)
	if err != nil {
		return entry, &model.TrashError{Op: "restore", Path: entry.OriginalPath, Err: err}
	}
	if occupied {
		return entry, fmt.Errorf("%w: %s already exists", model.ErrPathConflict, entry.OriginalPath)
	}

	if err := s.fs.MkdirAll(filepath.Dir(entry.OriginalPath), 0o755); err != nil {
		return entry, &model.TrashError{Op: "restore", Path: entry.OriginalPath, Err: err}
	}

	if _, err := s.transfer.moveEntry(ctx, entry.TrashedPath, entry.OriginalPath, nil); err != nil {
		return entry, &model.TrashError{Op: "restore", Path: entry.OriginalPath, Err: err}
	}

	if err := s.fs.Remove(entry.InfoPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("trash info not removed after restore", "info_path", entry.InfoPath, "error", err)
	}
	return entry, nil
}

// Remove deletes one entry and its metadata for good.
func (s *TrashService) Remove(_ context.Context, id string) (model.TrashEntry, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return model.TrashEntry{}, err
	}
	if err := s.removeEntry(id); err != nil {
		return entry, err
	}
	return entry, nil
}

func (s *TrashService) removeEntry(id string) error {
	content := filepath.Join(s.filesDir, id)
	if err := s.fs.RemoveAll(content); err != nil {
		return &model.TrashError{Op: "remove", Path: content, Err: err}
	}
	if err := s.fs.Remove(s.infoPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &model.TrashError{Op: "remove", Path: s.infoPath(id), Err: err}
	}
	return nil
}

// Empty removes every entry, continuing past failures. Orphaned info files
// are cleared as well.
func (s *TrashService) Empty(ctx context.Context) (model.EmptyTrashResult, error) {
	result := model.EmptyTrashResult{Failures: []model.TrashFailure{}}

	entries, err := s.List(ctx)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.removeEntry(entry.ID); err != nil {
			result.Failures = append(result.Failures, model.TrashFailure{ID: entry.ID, Reason: err.Error()})
			continue
		}
		result.Removed++
	}

	infos, err := s.fs.ReadDir(s.infoDir)
	if err != nil {
		return result, nil
	}
	for _, info := range infos {
		name := strings.TrimSuffix(info.Name(), trashInfoSuffix)
		if name == info.Name() {
			continue
		}
		if exists, _ := storage.Exists(s.fs, filepath.Join(s.filesDir, name)); exists {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.infoDir, info.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.Failures = append(result.Failures, model.TrashFailure{ID: name, Reason: err.Error()})
		}
	}

	return result, nil
}
