package archive

import (
	"fmt"
	"io"
	"path"
	"strings"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// IsImageEntry reports whether an entry name looks like a page image.
// Hidden files and macOS resource forks are skipped.
func IsImageEntry(name string) bool {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX/") {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(base))]
	return ok
}

// ImageContentType returns the content type for a page image entry name.
func ImageContentType(name string) string {
	if ct, ok := imageExtensions[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Pages resets it and returns its image entries in iteration order.
func Pages(it Iterator) ([]Entry, error) {
	if err := it.Reset(); err != nil {
		return nil, err
	}
	var pages []Entry
	for it.Next() {
		if IsImageEntry(it.EntryName()) {
			pages = append(pages, Entry{Name: it.EntryName(), Size: it.EntrySize()})
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// OpenPage positions it on the n-th (zero based) image entry and streams it.
func OpenPage(it Iterator, n int) (io.ReadCloser, Entry, error) {
	if n < 0 {
		return nil, Entry{}, fmt.Errorf("%w: page %d", ErrEntryNotFound, n)
	}
	if err := it.Reset(); err != nil {
		return nil, Entry{}, err
	}
	i := 0
	for it.Next() {
		if !IsImageEntry(it.EntryName()) {
			continue
		}
		if i == n {
			e := Entry{Name: it.EntryName(), Size: it.EntrySize()}
			r, err := it.EntryReader()
			return r, e, err
		}
		i++
	}
	if err := it.Err(); err != nil {
		return nil, Entry{}, err
	}
	return nil, Entry{}, fmt.Errorf("%w: page %d", ErrEntryNotFound, n)
}

// ReadEntry returns the full content of the entry called name, scanning from
// the start of the archive.
func ReadEntry(it Iterator, name string) ([]byte, error) {
	if err := it.Reset(); err != nil {
		return nil, err
	}
	r, err := it.EntryReaderByName(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
