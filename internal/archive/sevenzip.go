package archive

import (
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"

	"github.com/mrlokans/comicshelf/internal/logging"
)

type sevenZipIterator struct {
	cursor

	path string
	rc   *sevenzip.ReadCloser
}

func newSevenZipIterator() *sevenZipIterator {
	return &sevenZipIterator{cursor: cursor{pos: -1}}
}

func (s *sevenZipIterator) Open(path string) error {
	s.closeReader()
	s.err = nil
	s.path = path
	return s.reload()
}

func (s *sevenZipIterator) Reset() error {
	if s.err != nil {
		return s.err
	}
	if s.rc == nil {
		return ErrClosed
	}
	if err := s.reload(); err != nil {
		return s.fail(err)
	}
	return nil
}

// reload reopens the container and rebuilds the sorted entry list.
func (s *sevenZipIterator) reload() error {
	s.closeReader()
	rc, err := sevenzip.OpenReader(s.path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrArchiveRead, s.path, err)
	}
	s.rc = rc

	entries := make([]indexedEntry, 0, len(rc.File))
	for i, f := range rc.File {
		if f.FileInfo().IsDir() || isDirName(f.Name) {
			continue
		}
		entries = append(entries, indexedEntry{
			Entry: Entry{Name: f.Name, Size: int64(f.UncompressedSize)}, //nolint:gosec
			index: i,
		})
	}
	s.load(entries)
	return nil
}

func (s *sevenZipIterator) EntryReader() (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.rc == nil {
		return nil, ErrClosed
	}
	e, ok := s.current()
	if !ok {
		return nil, fmt.Errorf("%w: no current entry in %s", ErrEntryNotFound, s.path)
	}
	r, err := s.rc.File[e.index].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s in %s: %w", ErrArchiveRead, e.Name, s.path, err)
	}
	return r, nil
}

func (s *sevenZipIterator) EntryReaderByName(name string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.rc == nil {
		return nil, ErrClosed
	}
	if !s.seek(name) {
		return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, s.path)
	}
	return s.EntryReader()
}

func (s *sevenZipIterator) SaveIntoArchive(path, _ string, _ []byte) error {
	return readOnlyWriteBack("7z", path)
}

func (s *sevenZipIterator) SaveAllIntoArchive(path string, _ map[string][]byte) error {
	return readOnlyWriteBack("7z", path)
}

func (s *sevenZipIterator) Close() error {
	s.closeReader()
	s.err = nil
	return nil
}

func (s *sevenZipIterator) closeReader() {
	if s.rc != nil {
		if err := s.rc.Close(); err != nil {
			logging.L().Warn("Failed to close 7z archive", logging.String("path", s.path), logging.Err(err))
		}
		s.rc = nil
	}
	s.clear()
}
