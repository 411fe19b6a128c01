package storage

import (
	"io/fs"
	"os"
	"time"
)

// FS is the filesystem surface driven by the planner, executor and trash.
// Paths are absolute host paths.
type FS interface {
	Lstat(name string) (fs.FileInfo, error)
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Open(name string) (*os.File, error)
	CreateTemp(dir string, pattern string) (*os.File, error)
	OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error)
	Mkdir(name string, perm fs.FileMode) error
	MkdirAll(name string, perm fs.FileMode) error
	Rename(oldPath string, newPath string) error
	Remove(name string) error
	RemoveAll(name string) error
	Readlink(name string) (string, error)
	Symlink(target string, name string) error
	Chmod(name string, mode fs.FileMode) error
	Chtimes(name string, atime time.Time, mtime time.Time) error
}

// OS implements FS on the host filesystem.
type OS struct{}

func (OS) Lstat(name string) (fs.FileInfo, error)     { return os.Lstat(name) }
func (OS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OS) Open(name string) (*os.File, error)         { return os.Open(name) }
func (OS) Mkdir(name string, perm fs.FileMode) error  { return os.Mkdir(name, perm) }
func (OS) Remove(name string) error                   { return os.Remove(name) }
func (OS) RemoveAll(name string) error                { return os.RemoveAll(name) }
func (OS) Readlink(name string) (string, error)       { return os.Readlink(name) }
func (OS) Symlink(target string, name string) error   { return os.Symlink(target, name) }
func (OS) Chmod(name string, mode fs.FileMode) error  { return os.Chmod(name, mode) }

func (OS) CreateTemp(dir string, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

func (OS) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (OS) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(name, perm)
}

func (OS) Rename(oldPath string, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Exists reports whether name is present without following a final symlink.
func Exists(fsys FS, name string) (bool, error) {
	_, err := fsys.Lstat(name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
