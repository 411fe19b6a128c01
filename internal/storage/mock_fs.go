package storage

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/stretchr/testify/mock"
)

// PassThrough returned from an expectation forwards the call to the host
// filesystem. It lets a catch-all expectation follow a specific failing one.
var PassThrough = errors.New("storage: pass through")

// MockFS is a partial mock: methods with a registered expectation go through
// testify, everything else hits the host filesystem. Tests use it to inject
// cross-device, permission and space errors into otherwise real trees.
type MockFS struct {
	mock.Mock
	OS
}

func (m *MockFS) expects(method string) bool {
	for _, call := range m.ExpectedCalls {
		if call.Method == method {
			return true
		}
	}
	return false
}

func (m *MockFS) Lstat(name string) (fs.FileInfo, error) {
	if !m.expects("Lstat") {
		return m.OS.Lstat(name)
	}
	args := m.Called(name)
	if errors.Is(args.Error(1), PassThrough) {
		return m.OS.Lstat(name)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(fs.FileInfo), args.Error(1)
}

func (m *MockFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !m.expects("ReadDir") {
		return m.OS.ReadDir(name)
	}
	args := m.Called(name)
	if errors.Is(args.Error(1), PassThrough) {
		return m.OS.ReadDir(name)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fs.DirEntry), args.Error(1)
}

func (m *MockFS) Open(name string) (*os.File, error) {
	if !m.expects("Open") {
		return m.OS.Open(name)
	}
	args := m.Called(name)
	if errors.Is(args.Error(1), PassThrough) {
		return m.OS.Open(name)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*os.File), args.Error(1)
}

func (m *MockFS) CreateTemp(dir string, pattern string) (*os.File, error) {
	if !m.expects("CreateTemp") {
		return m.OS.CreateTemp(dir, pattern)
	}
	args := m.Called(dir, pattern)
	if errors.Is(args.Error(1), PassThrough) {
		return m.OS.CreateTemp(dir, pattern)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*os.File), args.Error(1)
}

func (m *MockFS) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	if !m.expects("OpenFile") {
		return m.OS.OpenFile(name, flag, perm)
	}
	args := m.Called(name, flag, perm)
	if errors.Is(args.Error(1), PassThrough) {
		return m.OS.OpenFile(name, flag, perm)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*os.File), args.Error(1)
}

func (m *MockFS) MkdirAll(name string, perm fs.FileMode) error {
	if !m.expects("MkdirAll") {
		return m.OS.MkdirAll(name, perm)
	}
	if err := m.Called(name, perm).Error(0); !errors.Is(err, PassThrough) {
		return err
	}
	return m.OS.MkdirAll(name, perm)
}

func (m *MockFS) Rename(oldPath string, newPath string) error {
	if !m.expects("Rename") {
		return m.OS.Rename(oldPath, newPath)
	}
	if err := m.Called(oldPath, newPath).Error(0); !errors.Is(err, PassThrough) {
		return err
	}
	return m.OS.Rename(oldPath, newPath)
}

func (m *MockFS) Remove(name string) error {
	if !m.expects("Remove") {
		return m.OS.Remove(name)
	}
	if err := m.Called(name).Error(0); !errors.Is(err, PassThrough) {
		return err
	}
	return m.OS.Remove(name)
}

func (m *MockFS) RemoveAll(name string) error {
	if !m.expects("RemoveAll") {
		return m.OS.RemoveAll(name)
	}
	if err := m.Called(name).Error(0); !errors.Is(err, PassThrough) {
		return err
	}
	return m.OS.RemoveAll(name)
}

func (m *MockFS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	if !m.expects("Chtimes") {
		return m.OS.Chtimes(name, atime, mtime)
	}
	if err := m.Called(name, atime, mtime).Error(0); !errors.Is(err, PassThrough) {
		return err
	}
	return m.OS.Chtimes(name, atime, mtime)
}
