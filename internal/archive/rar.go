package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"

	"github.com/mrlokans/comicshelf/internal/logging"
)

// rarIterator reads rar archives. The format has no random access, so the
// iterator keeps one forward stream and reopens it whenever an entry behind
// the stream position is requested. Entries are decoded into memory.
type rarIterator struct {
	cursor

	path      string
	opened    bool
	stream    *rardecode.ReadCloser
	streamPos int // container index of the last header returned by the stream
}

func newRarIterator() *rarIterator {
	return &rarIterator{cursor: cursor{pos: -1}, streamPos: -1}
}

func (r *rarIterator) Open(path string) error {
	r.closeStream()
	r.clear()
	r.err = nil
	r.path = path
	r.opened = false

	if err := r.openStream(); err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrArchiveRead, path, err)
	}
	r.opened = true
	return r.Reset()
}

func (r *rarIterator) openStream() error {
	r.closeStream()
	rc, err := rardecode.OpenReader(r.path)
	if err != nil {
		return err
	}
	r.stream = rc
	r.streamPos = -1
	return nil
}

func (r *rarIterator) Reset() error {
	if r.err != nil {
		return r.err
	}
	if !r.opened {
		return ErrClosed
	}

	// Listing consumes the stream, so it is reopened on both sides.
	if err := r.openStream(); err != nil {
		return r.fail(fmt.Errorf("%w: reopen %s: %w", ErrArchiveRead, r.path, err))
	}
	var entries []indexedEntry
	for i := 0; ; i++ {
		h, err := r.stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.fail(fmt.Errorf("%w: list %s: %w", ErrArchiveRead, r.path, err))
		}
		if h.IsDir || isDirName(h.Name) {
			continue
		}
		entries = append(entries, indexedEntry{
			Entry: Entry{Name: h.Name, Size: h.UnPackedSize},
			index: i,
		})
	}
	if err := r.openStream(); err != nil {
		return r.fail(fmt.Errorf("%w: reopen %s: %w", ErrArchiveRead, r.path, err))
	}

	if entries == nil {
		entries = []indexedEntry{}
	}
	r.load(entries)
	return nil
}

func (r *rarIterator) EntryReader() (io.ReadCloser, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.opened {
		return nil, ErrClosed
	}
	e, ok := r.current()
	if !ok {
		return nil, fmt.Errorf("%w: no current entry in %s", ErrEntryNotFound, r.path)
	}

	if r.stream == nil || e.index <= r.streamPos {
		if err := r.openStream(); err != nil {
			return nil, r.fail(fmt.Errorf("%w: reopen %s: %w", ErrArchiveRead, r.path, err))
		}
	}
	for r.streamPos < e.index {
		if _, err := r.stream.Next(); err != nil {
			r.closeStream()
			return nil, fmt.Errorf("%w: seek %s in %s: %w", ErrArchiveRead, e.Name, r.path, err)
		}
		r.streamPos++
	}

	data, err := io.ReadAll(r.stream)
	if err != nil {
		// The stream position is unknown after a decode failure.
		r.closeStream()
		return nil, fmt.Errorf("%w: entry %s in %s: %w", ErrArchiveRead, e.Name, r.path, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *rarIterator) EntryReaderByName(name string) (io.ReadCloser, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.opened {
		return nil, ErrClosed
	}
	if !r.seek(name) {
		return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, r.path)
	}
	return r.EntryReader()
}

func (r *rarIterator) SaveIntoArchive(path, _ string, _ []byte) error {
	return readOnlyWriteBack("rar", path)
}

func (r *rarIterator) SaveAllIntoArchive(path string, _ map[string][]byte) error {
	return readOnlyWriteBack("rar", path)
}

func (r *rarIterator) Close() error {
	r.closeStream()
	r.clear()
	r.opened = false
	r.err = nil
	return nil
}

func (r *rarIterator) closeStream() {
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			logging.L().Warn("Failed to close rar archive", logging.String("path", r.path), logging.Err(err))
		}
		r.stream = nil
	}
	r.streamPos = -1
}
