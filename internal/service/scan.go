package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"

	"go-fileops/internal/storage"
)

// ScanEntry is one entry under a scanned root, delivered parents first.
// ReadErr is set on a directory whose listing was incomplete; children that
// could not be read are not delivered.
type ScanEntry struct {
	Path    string
	Rel     string
	Info    fs.FileInfo
	Depth   int
	ReadErr error
}

func (e ScanEntry) IsDir() bool     { return e.Info.IsDir() }
func (e ScanEntry) IsSymlink() bool { return e.Info.Mode()&fs.ModeSymlink != 0 }
func (e ScanEntry) IsRegular() bool { return e.Info.Mode().IsRegular() }

// ScanFunc receives each entry. Returning filepath.SkipDir from a directory
// entry skips its children.
type ScanFunc func(entry ScanEntry) error

// Scanner walks a source tree without loading it up front. Symlinks are
// reported as links unless followSymlinks is set, in which case linked
// directories are descended and cycles are cut using (device, inode).
type Scanner struct {
	fs             storage.FS
	followSymlinks bool
}

func NewScanner(fsys storage.FS, followSymlinks bool) *Scanner {
	return &Scanner{fs: fsys, followSymlinks: followSymlinks}
}

func (s *Scanner) FollowSymlinks() bool {
	return s.followSymlinks
}

// Walk visits root and everything below it. Entries that cannot be read are
// returned as warnings; ctx cancellation stops the walk with ctx.Err().
func (s *Scanner) Walk(ctx context.Context, root string, fn ScanFunc) ([]string, error) {
	info, err := s.fs.Lstat(root)
	if err != nil {
		return nil, err
	}

	w := &walker{scanner: s, ctx: ctx, fn: fn, ancestors: map[storage.Identity]struct{}{}}
	info, err = w.resolve(root, info)
	if err != nil {
		return nil, err
	}

	if err := w.visit(root, "", info, 0); err != nil && !errors.Is(err, filepath.SkipDir) {
		return w.warnings, err
	}
	return w.warnings, nil
}

type walker struct {
	scanner   *Scanner
	ctx       context.Context
	fn        ScanFunc
	ancestors map[storage.Identity]struct{}
	warnings  []string
}

// resolve follows a symlink when configured. A link to a missing target is
// kept as a link.
func (w *walker) resolve(path string, info fs.FileInfo) (fs.FileInfo, error) {
	if !w.scanner.followSymlinks || info.Mode()&fs.ModeSymlink == 0 {
		return info, nil
	}

	target, err := w.scanner.fs.Stat(path)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, err
		}
		return info, nil
	}
	return target, nil
}

func (w *walker) visit(path string, rel string, info fs.FileInfo, depth int) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	if !info.IsDir() {
		return w.fn(ScanEntry{Path: path, Rel: rel, Info: info, Depth: depth})
	}

	id, tracked := storage.FileIdentity(info)
	if tracked {
		if _, seen := w.ancestors[id]; seen {
			w.warnings = append(w.warnings, fmt.Sprintf("symlink cycle skipped at %s", path))
			return nil
		}
	}

	children, readErr := w.readChildren(path, rel)
	if err := w.fn(ScanEntry{Path: path, Rel: rel, Info: info, Depth: depth, ReadErr: readErr}); err != nil {
		return err
	}

	if tracked {
		w.ancestors[id] = struct{}{}
		defer delete(w.ancestors, id)
	}

	for _, child := range children {
		if err := w.visit(child.path, child.rel, child.info, depth+1); err != nil {
			if errors.Is(err, filepath.SkipDir) {
				continue
			}
			return err
		}
	}

	return nil
}

type scanChild struct {
	path string
	rel  string
	info fs.FileInfo
}

// readChildren lists path and stats every child. Entries that vanished are
// ignored; listing and stat failures are joined into the returned error.
func (w *walker) readChildren(path string, rel string) ([]scanChild, error) {
	entries, err := w.scanner.fs.ReadDir(path)
	if err != nil {
		w.warnings = append(w.warnings, fmt.Sprintf("cannot read directory %s: %v", path, err))
		return nil, err
	}

	children := make([]scanChild, 0, len(entries))
	var statErrs []error
	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		childRel := entry.Name()
		if rel != "" {
			childRel = filepath.Join(rel, entry.Name())
		}

		childInfo, err := w.scanner.fs.Lstat(childPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			w.warnings = append(w.warnings, fmt.Sprintf("cannot stat %s: %v", childPath, err))
			statErrs = append(statErrs, err)
			continue
		}

		childInfo, err = w.resolve(childPath, childInfo)
		if err != nil {
			w.warnings = append(w.warnings, fmt.Sprintf("symlink loop skipped at %s", childPath))
			continue
		}

		children = append(children, scanChild{path: childPath, rel: childRel, info: childInfo})
	}

	return children, errors.Join(statErrs...)
}
