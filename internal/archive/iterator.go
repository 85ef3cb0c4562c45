// Package archive provides a codec-agnostic view over comic archives.
//
// A Registry maps the media type detected from a file's content to a Factory
// producing a fresh Iterator for every open. Iterators expose a sorted,
// forward-only cursor over the archive's file entries, streaming reads of the
// current entry and in-place content replacement (write-back).
//
//	reg := archive.DefaultRegistry()
//	it, err := reg.Iterator("/comics/One Piece/v01.cbz")
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//	for it.Next() {
//		fmt.Println(it.EntryName(), it.EntrySize())
//	}
//
// Iterators are not safe for concurrent use.
package archive

import (
	"io"
	"slices"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/mrlokans/comicshelf/internal/natural"
)

// Iterator is a cursor over the entries of one opened archive.
type Iterator interface {
	// Open acquires the archive at path and resets the cursor.
	Open(path string) error

	// Reset re-reads the entry list, drops directories, sorts the entries in
	// natural order and rewinds the cursor before the first entry.
	Reset() error

	// Next advances to the next entry. It returns false when the entries are
	// exhausted or the iterator failed; see Err.
	Next() bool

	// Err returns the terminal error, if any.
	Err() error

	// EntryName and EntrySize describe the current entry. They are only
	// meaningful after Next returned true.
	EntryName() string
	EntrySize() int64

	// EntryReader streams the current entry.
	EntryReader() (io.ReadCloser, error)

	// EntryReaderByName scans forward from the current position for an entry
	// with exactly this name.
	EntryReaderByName(name string) (io.ReadCloser, error)

	// SaveIntoArchive replaces (or adds) one entry in the archive at path.
	SaveIntoArchive(path, name string, content []byte) error

	// SaveAllIntoArchive replaces (or adds) several entries in one rewrite.
	SaveAllIntoArchive(path string, contents map[string][]byte) error

	// Close releases the archive. It is safe to call more than once.
	Close() error
}

// Factory produces a fresh, unopened Iterator. Factories hold no per-archive state.
type Factory func() Iterator

// Entry describes one file inside an archive.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Option configures iterators built by the default factories.
type Option func(*options)

type options struct {
	fallbackEncoding encoding.Encoding
}

// WithFallbackEncoding sets the filename encoding tried once when a named
// lookup misses in an archive whose names are not flagged as UTF-8.
func WithFallbackEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		o.fallbackEncoding = enc
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// indexedEntry links a sorted entry back to its position in the container.
type indexedEntry struct {
	Entry
	index int
}

// cursor is the sorted entry list and position shared by every backend.
type cursor struct {
	entries []indexedEntry
	pos     int
	err     error
}

func (c *cursor) load(entries []indexedEntry) {
	slices.SortStableFunc(entries, func(a, b indexedEntry) int {
		return natural.Compare(a.Name, b.Name)
	})
	c.entries = entries
	c.pos = -1
}

func (c *cursor) Next() bool {
	if c.err != nil || c.entries == nil {
		return false
	}
	if c.pos+1 >= len(c.entries) {
		c.pos = len(c.entries)
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) current() (indexedEntry, bool) {
	if c.pos < 0 || c.pos >= len(c.entries) {
		return indexedEntry{}, false
	}
	return c.entries[c.pos], true
}

func (c *cursor) EntryName() string {
	e, _ := c.current()
	return e.Name
}

func (c *cursor) EntrySize() int64 {
	e, _ := c.current()
	return e.Size
}

// seek moves the cursor forward, starting at the current entry, until an
// entry named name is found.
func (c *cursor) seek(name string) bool {
	if _, ok := c.current(); ok && c.entries[c.pos].Name == name {
		return true
	}
	for c.Next() {
		if c.entries[c.pos].Name == name {
			return true
		}
	}
	return false
}

// fail records a terminal error returned by every later call.
func (c *cursor) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

func (c *cursor) clear() {
	c.entries = nil
	c.pos = -1
}

func isDirName(name string) bool {
	return strings.HasSuffix(name, "/") || strings.HasSuffix(name, "\\")
}
