//go:build unix

package watcher

import (
	"os"

	"golang.org/x/sys/unix"
)

// isFileLocked probes for an exclusive lock without blocking. Any failure
// counts as locked.
func isFileLocked(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return true
	}
	_ = unix.Flock(fd, unix.LOCK_UN)
	return false
}
