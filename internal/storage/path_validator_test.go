package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
)

func TestPathValidatorValidate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	validator, err := NewPathValidator(root)
	require.NoError(t, err)

	t.Run("path inside root is cleaned", func(t *testing.T) {
		resolved, validateErr := validator.Validate(filepath.Join(root, "docs", ".", "report.txt"))
		require.NoError(t, validateErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "docs", "report.txt"), resolved)
	})

	t.Run("relative paths are rejected", func(t *testing.T) {
		_, validateErr := validator.Validate("docs/report.txt")
		require.Error(t, validateErr)
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		_, validateErr := validator.Validate(root + "/docs/../../etc/passwd")
		require.Error(t, validateErr)
	})

	t.Run("paths outside root are rejected", func(t *testing.T) {
		_, validateErr := validator.Validate(filepath.Dir(root))
		require.Error(t, validateErr)
	})

	t.Run("control characters are rejected", func(t *testing.T) {
		_, validateErr := validator.Validate(root + "/docs\nreport.txt")
		require.Error(t, validateErr)
	})

	t.Run("overlong paths are rejected", func(t *testing.T) {
		_, validateErr := validator.Validate(root + "/" + strings.Repeat("a", MaxPathLength))
		require.Error(t, validateErr)
	})

	t.Run("empty root allows any absolute path", func(t *testing.T) {
		open, newErr := NewPathValidator("")
		require.NoError(t, newErr)
		resolved, validateErr := open.Validate("/var/tmp/")
		require.NoError(t, validateErr)
		require.Equal(t, "/var/tmp", resolved)
	})
}

func TestIsWithin(t *testing.T) {
	t.Parallel()

	require.True(t, IsWithin("/a", "/a"))
	require.True(t, IsWithin("/a", "/a/b/c"))
	require.False(t, IsWithin("/a", "/ab"))
	require.False(t, IsWithin("/tmp/Root", "/tmp/root/file.txt"))
	require.True(t, IsWithin("/", "/etc"))
	require.True(t, HasTrailingSeparator("/b/"))
	require.False(t, HasTrailingSeparator("/"))
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want model.StepErrorKind
	}{
		{"cross device", &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EXDEV}, model.StepErrCrossDevice},
		{"missing", &os.PathError{Op: "open", Path: "/a", Err: syscall.ENOENT}, model.StepErrMissingSource},
		{"permission", &os.PathError{Op: "open", Path: "/a", Err: syscall.EACCES}, model.StepErrPermission},
		{"busy", &os.PathError{Op: "open", Path: "/a", Err: syscall.ETXTBSY}, model.StepErrInUse},
		{"space", fmt.Errorf("write: %w", syscall.ENOSPC), model.StepErrNoSpace},
		{"name too long", &os.PathError{Op: "open", Path: "/a", Err: syscall.ENAMETOOLONG}, model.StepErrPathTooLong},
		{"not empty", &os.PathError{Op: "remove", Path: "/a", Err: syscall.ENOTEMPTY}, model.StepErrNotEmpty},
		{"exists", &os.PathError{Op: "mkdir", Path: "/a", Err: syscall.EEXIST}, model.StepErrExists},
		{"other", errors.New("boom"), model.StepErrIO},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyError(tc.err))
		})
	}
}

func TestMockFSPassThrough(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	source := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(source, []byte("hello"), 0o644))

	fsys := &MockFS{}
	exdev := &os.LinkError{Op: "rename", Old: source, New: filepath.Join(root, "b.txt"), Err: syscall.EXDEV}
	fsys.On("Rename", source, filepath.Join(root, "b.txt")).Return(exdev).Once()
	fsys.On("Rename", mock.Anything, mock.Anything).Return(PassThrough)

	err := fsys.Rename(source, filepath.Join(root, "b.txt"))
	require.True(t, IsCrossDevice(err))

	require.NoError(t, fsys.Rename(source, filepath.Join(root, "c.txt")))
	exists, err := Exists(fsys, filepath.Join(root, "c.txt"))
	require.NoError(t, err)
	require.True(t, exists)

	info, err := fsys.Lstat(filepath.Join(root, "c.txt"))
	require.NoError(t, err)
	require.EqualValues(t, 5, info.Size())
	fsys.AssertExpectations(t)
}
