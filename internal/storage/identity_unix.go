//go:build unix

package storage

import (
	"io/fs"
	"syscall"
)

// Identity is the (device, inode) pair of a filesystem object.
type Identity struct {
	Dev uint64
	Ino uint64
}

func FileIdentity(info fs.FileInfo) (Identity, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, false
	}
	return Identity{Dev: uint64(stat.Dev), Ino: uint64(stat.Ino)}, true
}

// SameDevice reports whether both entries live on one filesystem.
func SameDevice(a fs.FileInfo, b fs.FileInfo) bool {
	left, okLeft := FileIdentity(a)
	right, okRight := FileIdentity(b)
	return okLeft && okRight && left.Dev == right.Dev
}
