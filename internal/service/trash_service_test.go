package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
)

func newTestTrash(t *testing.T, fsys storage.FS) *TrashService {
	t.Helper()
	if fsys == nil {
		fsys = storage.OS{}
	}
	trash, err := NewTrashService(fsys, filepath.Join(t.TempDir(), "Trash"), 4096)
	require.NoError(t, err)
	trash.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local) }
	return trash
}

func TestTrashRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"my docs/report 1.txt": "quarterly"})
	original := filepath.Join(root, "my docs", "report 1.txt")
	trash := newTestTrash(t, nil)
	ctx := context.Background()

	entry, err := trash.Trash(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, "report 1.txt", entry.ID)
	assert.True(t, entry.MetadataWritten)
	assert.NoFileExists(t, original)
	assert.Equal(t, "quarterly", readFile(t, entry.TrashedPath))

	info := readFile(t, entry.InfoPath)
	assert.Equal(t, "[Trash Info]\nPath="+encodeTrashPath(original)+"\nDeletionDate=2026-03-14T15:09:26\n", info)
	assert.Contains(t, info, "my%20docs/report%201.txt")

	listed, err := trash.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, original, listed[0].OriginalPath)
	assert.True(t, listed[0].TrashedAt.Equal(trash.now()))

	restored, err := trash.Restore(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, original, restored.OriginalPath)
	assert.Equal(t, "quarterly", readFile(t, original))
	assert.NoFileExists(t, entry.InfoPath)

	listed, err = trash.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestTrashRestoresMissingParent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"gone/dir/file.txt": "x"})
	trash := newTestTrash(t, nil)
	ctx := context.Background()

	entry, err := trash.Trash(ctx, filepath.Join(root, "gone", "dir"))
	require.NoError(t, err)
	assert.True(t, entry.IsDir)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "gone")))

	_, err = trash.Restore(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", readFile(t, filepath.Join(root, "gone", "dir", "file.txt")))
}

func TestTrashNamesAreUnique(t *testing.T) {
	root := t.TempDir()
	trash := newTestTrash(t, nil)
	ctx := context.Background()

	var ids []string
	for _, dir := range []string{"a", "b", "c"} {
		writeTree(t, root, map[string]string{dir + "/notes.txt": dir})
		entry, err := trash.Trash(ctx, filepath.Join(root, dir, "notes.txt"))
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}

	assert.Equal(t, []string{"notes.txt", "notes.txt 1", "notes.txt 2"}, ids)
	assert.Equal(t, "b", readFile(t, filepath.Join(trash.Root(), "files", "notes.txt 1")))
}

func TestTrashWithoutMetadata(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})
	original := filepath.Join(root, "a.txt")

	fsys := &storage.MockFS{}
	fsys.On("OpenFile", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &os.PathError{Op: "open", Path: "info", Err: fs.ErrPermission})
	trash := newTestTrash(t, fsys)
	ctx := context.Background()

	entry, err := trash.Trash(ctx, original)
	require.NoError(t, err)
	assert.False(t, entry.MetadataWritten)
	assert.Contains(t, entry.MetadataError, "permission denied")
	assert.NoFileExists(t, original)
	assert.FileExists(t, entry.TrashedPath)

	listed, err := trash.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].MetadataWritten)
	assert.Empty(t, listed[0].OriginalPath)

	_, err = trash.Restore(ctx, entry.ID)
	require.ErrorIs(t, err, model.ErrRestoreUnavailable)
	assert.FileExists(t, entry.TrashedPath)
	fsys.AssertExpectations(t)
}

func TestTrashRestoreRefusesOccupiedPath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "first"})
	original := filepath.Join(root, "a.txt")
	trash := newTestTrash(t, nil)
	ctx := context.Background()

	entry, err := trash.Trash(ctx, original)
	require.NoError(t, err)
	writeTree(t, root, map[string]string{"a.txt": "second"})

	_, err = trash.Restore(ctx, entry.ID)
	require.ErrorIs(t, err, model.ErrPathConflict)
	assert.Equal(t, "second", readFile(t, original))
	assert.Equal(t, "first", readFile(t, entry.TrashedPath))
}

func TestTrashLookupRejectsBadIDs(t *testing.T) {
	trash := newTestTrash(t, nil)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "../etc", "a/b", "missing"} {
		_, err := trash.Restore(ctx, id)
		assert.ErrorIs(t, err, model.ErrTrashItemNotFound, id)
		_, err = trash.Remove(ctx, id)
		assert.ErrorIs(t, err, model.ErrTrashItemNotFound, id)
	}
}

func TestTrashRemoveAndEmpty(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"one.txt":     "1",
		"two.txt":     "2",
		"three/x.txt": "3",
	})
	trash := newTestTrash(t, nil)
	ctx := context.Background()

	var entries []model.TrashEntry
	for _, name := range []string{"one.txt", "two.txt", "three"} {
		entry, err := trash.Trash(ctx, filepath.Join(root, name))
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	removed, err := trash.Remove(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "one.txt"), removed.OriginalPath)
	assert.NoFileExists(t, entries[0].TrashedPath)
	assert.NoFileExists(t, entries[0].InfoPath)

	// An info file whose content vanished is cleared by Empty.
	require.NoError(t, os.WriteFile(filepath.Join(trash.Root(), "info", "orphan.trashinfo"), []byte("[Trash Info]\nPath=/x\n"), 0o600))

	result, err := trash.Empty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.Empty(t, result.Failures)
	assert.Empty(t, entryNames(t, filepath.Join(trash.Root(), "files")))
	assert.Empty(t, entryNames(t, filepath.Join(trash.Root(), "info")))
}
