//go:build !unix

package storage

import "io/fs"

type Identity struct {
	Dev uint64
	Ino uint64
}

// FileIdentity is unavailable off unix; cycle detection falls back to
// resolved paths.
func FileIdentity(fs.FileInfo) (Identity, bool) {
	return Identity{}, false
}

func SameDevice(fs.FileInfo, fs.FileInfo) bool {
	return false
}
