package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"slices"
	"time"

	"golang.org/x/text/encoding"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/natural"
)

type zipIterator struct {
	cursor

	opts  options
	path  string
	rc    *zip.ReadCloser
	files []*zip.File

	// nameEncoding decodes entry names not flagged as UTF-8; nil keeps them as stored.
	nameEncoding  encoding.Encoding
	triedFallback bool
}

func newZipIterator(o options) *zipIterator {
	return &zipIterator{opts: o, cursor: cursor{pos: -1}}
}

func (z *zipIterator) Open(path string) error {
	z.closeReader()
	z.err = nil
	z.path = path
	return z.reload()
}

// Reset reopens the container, so entries written through another handle
// since Open are listed.
func (z *zipIterator) Reset() error {
	if z.err != nil {
		return z.err
	}
	if z.rc == nil {
		return ErrClosed
	}
	if err := z.reload(); err != nil {
		return z.fail(err)
	}
	return nil
}

func (z *zipIterator) reload() error {
	z.closeReader()
	rc, err := zip.OpenReader(z.path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrArchiveRead, z.path, err)
	}
	z.rc = rc

	z.files = rc.File
	entries := make([]indexedEntry, 0, len(z.files))
	for i, f := range z.files {
		name := z.decodeName(f)
		if f.FileInfo().IsDir() || isDirName(name) {
			continue
		}
		entries = append(entries, indexedEntry{
			Entry: Entry{Name: name, Size: int64(f.UncompressedSize64)},
			index: i,
		})
	}
	z.load(entries)
	return nil
}

func (z *zipIterator) decodeName(f *zip.File) string {
	if z.nameEncoding == nil || !f.NonUTF8 {
		return f.Name
	}
	name, err := z.nameEncoding.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return name
}

func (z *zipIterator) hasNonUTF8Names() bool {
	for _, f := range z.files {
		if f.NonUTF8 {
			return true
		}
	}
	return false
}

func (z *zipIterator) EntryReader() (io.ReadCloser, error) {
	if z.err != nil {
		return nil, z.err
	}
	if z.rc == nil {
		return nil, ErrClosed
	}
	e, ok := z.current()
	if !ok {
		return nil, fmt.Errorf("%w: no current entry in %s", ErrEntryNotFound, z.path)
	}
	r, err := z.files[e.index].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s in %s: %w", ErrArchiveRead, e.Name, z.path, err)
	}
	return r, nil
}

func (z *zipIterator) EntryReaderByName(name string) (io.ReadCloser, error) {
	if z.err != nil {
		return nil, z.err
	}
	if z.rc == nil {
		return nil, ErrClosed
	}
	if z.seek(name) {
		return z.EntryReader()
	}

	if z.opts.fallbackEncoding != nil && !z.triedFallback && z.hasNonUTF8Names() {
		z.triedFallback = true
		z.nameEncoding = z.opts.fallbackEncoding
		logging.L().Debug("Retrying zip entry lookup with fallback name encoding",
			logging.String("path", z.path), logging.String("entry", name))
		if err := z.Open(z.path); err != nil {
			return nil, z.fail(err)
		}
		if z.seek(name) {
			return z.EntryReader()
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, z.path)
}

func (z *zipIterator) SaveIntoArchive(path, name string, content []byte) error {
	return z.SaveAllIntoArchive(path, map[string][]byte{name: content})
}

func (z *zipIterator) SaveAllIntoArchive(path string, contents map[string][]byte) error {
	unlock := lockPath(path)
	defer unlock()

	// The read cursor on this handle is released before the archive is rebuilt.
	reopen := z.rc != nil && z.path == path
	z.closeReader()

	err := rewriteZip(path, contents, z.decodeName)
	if reopen {
		if openErr := z.Open(path); openErr != nil && err == nil {
			err = openErr
		}
	}
	return err
}

func (z *zipIterator) Close() error {
	z.closeReader()
	z.err = nil
	return nil
}

func (z *zipIterator) closeReader() {
	if z.rc != nil {
		if err := z.rc.Close(); err != nil {
			logging.L().Warn("Failed to close zip archive", logging.String("path", z.path), logging.Err(err))
		}
		z.rc = nil
	}
	z.files = nil
	z.clear()
}

// rewriteZip rebuilds the zip at path with contents replacing or adding entries.
// Untouched entries are copied without recompression.
func rewriteZip(path string, contents map[string][]byte, entryName func(*zip.File) string) error {
	src, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrWriteBack, path, err)
	}
	defer src.Close()

	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	slices.SortFunc(names, natural.Compare)

	return replaceFile(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)

		files := slices.Clone(src.File)
		slices.SortStableFunc(files, func(a, b *zip.File) int {
			return natural.Compare(entryName(a), entryName(b))
		})
		for _, f := range files {
			if _, replaced := contents[entryName(f)]; replaced {
				continue
			}
			if _, replaced := contents[f.Name]; replaced {
				continue
			}
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy entry %s: %w", f.Name, err)
			}
		}

		now := time.Now()
		for _, name := range names {
			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     name,
				Method:   zip.Deflate,
				Modified: now,
			})
			if err != nil {
				return fmt.Errorf("create entry %s: %w", name, err)
			}
			if _, err := fw.Write(contents[name]); err != nil {
				return fmt.Errorf("write entry %s: %w", name, err)
			}
		}

		return zw.Close()
	})
}
