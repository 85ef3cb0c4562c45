package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mrlokans/comicshelf/internal/metrics"
)

var writeLocks sync.Map // absolute path -> *sync.Mutex

// lockPath serializes write-back per archive path and returns the unlock func.
func lockPath(path string) func() {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	v, _ := writeLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// tempWriter wraps the temp file writer during a rewrite. Tests swap it to
// inject failures.
var tempWriter = func(w io.Writer) io.Writer { return w }

// replaceFile writes a new version of path through build into a temp file in
// the same directory, syncs it and renames it over path. On any error the temp
// file is removed and path is left as it was.
func replaceFile(path string, build func(w io.Writer) error) (err error) {
	defer func() {
		metrics.RecordWriteBack(err == nil)
	}()

	dir := filepath.Dir(path)
	info, statErr := os.Stat(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrWriteBack, err)
	}
	tmpPath := tmp.Name()
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				tmp.Close()
			}
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tempWriter(tmp))
	if err = build(bw); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteBack, path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush %s: %w", ErrWriteBack, path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", ErrWriteBack, path, err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrWriteBack, path, err)
	}
	if statErr == nil {
		_ = os.Chmod(tmpPath, info.Mode().Perm())
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename over %s: %w", ErrWriteBack, path, err)
	}
	return nil
}

// readOnlyWriteBack is the write-back error of formats that cannot be rewritten.
func readOnlyWriteBack(format, path string) error {
	metrics.RecordWriteBack(false)
	return fmt.Errorf("%w: %s archive %s: %w", ErrWriteBack, format, path, ErrReadOnlyFormat)
}
