//go:build !unix

package watcher

import "os"

// isFileLocked treats a file that cannot be opened for writing as locked.
func isFileLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return true
	}
	f.Close()
	return false
}
