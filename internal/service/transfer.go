package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

const defaultChunkSize = 1024 * 1024

// transfer holds the byte-level primitives shared by the executor and the
// trash: chunked copies through a temporary file, symlink copies and whole
// tree copies used when a rename crosses filesystems.
type transfer struct {
	fs        storage.FS
	chunkSize int
	verify    bool
}

func newTransfer(fsys storage.FS, chunkSize int, verify bool) *transfer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &transfer{fs: fsys, chunkSize: chunkSize, verify: verify}
}

// copyFile streams source into a temporary sibling of destination, syncs it
// and renames it into place. ctx is checked between chunks; on cancellation
// the partial temporary file is removed. onChunk receives bytes written.
func (t *transfer) copyFile(ctx context.Context, source string, destination string, info fs.FileInfo, verify bool, onChunk func(int64)) error {
	in, err := t.fs.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := t.fs.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+".fileops-*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = t.fs.Remove(tmpPath)
		}
	}()

	hasher := xxhash.New()
	buf := make([]byte, t.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				return err
			}
			_, _ = hasher.Write(buf[:n])
			if onChunk != nil {
				onChunk(int64(n))
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := t.fs.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}

	if verify || t.verify {
		if err := t.verifyDigest(tmpPath, hasher.Sum64()); err != nil {
			return &model.StepError{Path: destination, Kind: model.StepErrVerification, Err: err}
		}
	}

	// Rename would silently replace; an entry that appeared since planning
	// is a failure, not something to overwrite.
	exists, err := storage.Exists(t.fs, destination)
	if err != nil {
		return err
	}
	if exists {
		return &os.PathError{Op: "copy", Path: destination, Err: fs.ErrExist}
	}

	if err := t.fs.Rename(tmpPath, destination); err != nil {
		return err
	}
	committed = true

	_ = t.fs.Chtimes(destination, info.ModTime(), info.ModTime())
	return nil
}

func (t *transfer) verifyDigest(path string, expected uint64) error {
	f, err := t.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher := xxhash.New()
	if _, err := io.CopyBuffer(hasher, f, make([]byte, t.chunkSize)); err != nil {
		return err
	}
	if got := hasher.Sum64(); got != expected {
		return fmt.Errorf("digest mismatch for %s: got %016x want %016x", path, got, expected)
	}
	return nil
}

func (t *transfer) copySymlink(source string, destination string) error {
	target, err := t.fs.Readlink(source)
	if err != nil {
		return err
	}
	return t.fs.Symlink(target, destination)
}

// mkdir creates destination owner-writable so children can be added; the
// final mode is applied by finishDirs.
func (t *transfer) mkdir(destination string, info fs.FileInfo) error {
	perm := fs.FileMode(0o755)
	if info != nil {
		perm = info.Mode().Perm() | 0o700
	}
	return t.fs.Mkdir(destination, perm)
}

type createdDir struct {
	path string
	info fs.FileInfo
}

// finishDirs applies modes and times deepest first, after all children
// have been written.
func (t *transfer) finishDirs(dirs []createdDir) {
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		if dir.info == nil {
			continue
		}
		_ = t.fs.Chmod(dir.path, dir.info.Mode().Perm())
		_ = t.fs.Chtimes(dir.path, dir.info.ModTime(), dir.info.ModTime())
	}
}

// copyTree copies source to destination entry by entry with every file
// verified against its streamed digest. Symlinks are copied as links. Any
// entry that cannot be read or copied fails the whole tree, so callers never
// delete a source that was only partly copied.
func (t *transfer) copyTree(ctx context.Context, source string, destination string, onChunk func(int64)) error {
	scanner := NewScanner(t.fs, false)
	var dirs []createdDir

	warnings, err := scanner.Walk(ctx, source, func(entry ScanEntry) error {
		target := destination
		if entry.Rel != "" {
			target = filepath.Join(destination, entry.Rel)
		}

		switch {
		case entry.IsDir():
			if entry.ReadErr != nil {
				return &model.StepError{Path: entry.Path, Kind: storage.ClassifyError(entry.ReadErr), Err: entry.ReadErr}
			}
			if err := t.mkdir(target, entry.Info); err != nil {
				return err
			}
			dirs = append(dirs, createdDir{path: target, info: entry.Info})
		case entry.IsSymlink():
			return t.copySymlink(entry.Path, target)
		case entry.IsRegular():
			return t.copyFile(ctx, entry.Path, target, entry.Info, true, onChunk)
		default:
			return unsupportedEntry(entry.Path, entry.Info)
		}
		return nil
	})
	t.finishDirs(dirs)
	if err == nil && len(warnings) > 0 {
		err = &model.StepError{Path: source, Kind: model.StepErrIO, Err: fmt.Errorf("incomplete copy: %s", strings.Join(warnings, "; "))}
	}
	return err
}

// moveEntry renames source to destination, falling back to a verified copy
// and removal of the source when they sit on different filesystems. The
// returned flag reports whether the fallback ran.
func (t *transfer) moveEntry(ctx context.Context, source string, destination string, onChunk func(int64)) (bool, error) {
	err := t.fs.Rename(source, destination)
	if err == nil {
		return false, nil
	}
	if !storage.IsCrossDevice(err) {
		return false, err
	}

	staging := siblingPath(destination, "", "staging")
	if err := t.copyTree(ctx, source, staging, onChunk); err != nil {
		_ = t.fs.RemoveAll(staging)
		return true, err
	}

	if exists, statErr := storage.Exists(t.fs, destination); statErr != nil || exists {
		_ = t.fs.RemoveAll(staging)
		if statErr != nil {
			return true, statErr
		}
		return true, &os.PathError{Op: "move", Path: destination, Err: fs.ErrExist}
	}

	if err := t.fs.Rename(staging, destination); err != nil {
		_ = t.fs.RemoveAll(staging)
		return true, err
	}

	if err := t.fs.RemoveAll(source); err != nil {
		return true, fmt.Errorf("copied to %s but could not remove source: %w", destination, err)
	}
	return true, nil
}
