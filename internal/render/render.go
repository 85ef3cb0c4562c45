// Package render opens paged documents (PDF, EPUB) whose pages are drawn
// rather than stored as images. Open documents are kept in one bounded
// document cache per kind.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"

	"github.com/mrlokans/comicshelf/internal/doccache"
	"github.com/mrlokans/comicshelf/internal/logging"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeEPUB = "application/epub+zip"
)

var (
	ErrUnsupported    = errors.New("media type is not renderable")
	ErrNoDocument     = errors.New("document could not be opened")
	ErrDocumentClosed = errors.New("document is closed")
	ErrPageOutOfRange = errors.New("page out of range")
)

// Source is a decoded paged document. *fitz.Document implements it.
type Source interface {
	NumPage() int
	Image(pageNumber int) (*image.RGBA, error)
	Close() error
}

// Opener decodes the document at path.
type Opener func(path string) (Source, error)

func openFitz(path string) (Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Document guards one Source. Close waits for an in-flight render, so a
// document evicted from the cache is never released under a reader.
type Document struct {
	mu     sync.Mutex
	path   string
	src    Source
	pages  int
	closed bool
}

func newDocument(path string, src Source) *Document {
	return &Document{path: path, src: src, pages: src.NumPage()}
}

func (d *Document) Path() string {
	return d.path
}

func (d *Document) PageCount() int {
	return d.pages
}

// RenderPage draws page n (zero based).
func (d *Document) RenderPage(n int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDocumentClosed
	}
	if n < 0 || n >= d.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, d.pages)
	}
	img, err := d.src.Image(n)
	if err != nil {
		return nil, fmt.Errorf("render page %d of %s: %w", n, d.path, err)
	}
	return img, nil
}

// Close releases the native document once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.src.Close()
}

type Options struct {
	MaxEntries int
	TTL        time.Duration
	// Opener overrides the document decoder.
	Opener Opener
}

// Factory picks the renderer for a media type and hands out cached documents.
type Factory struct {
	open   Opener
	caches map[string]*doccache.Cache[*Document]
}

func NewFactory(opts Options) *Factory {
	f := &Factory{
		open:   opts.Opener,
		caches: make(map[string]*doccache.Cache[*Document]),
	}
	if f.open == nil {
		f.open = openFitz
	}

	for mediaType, name := range map[string]string{MediaTypePDF: "pdf", MediaTypeEPUB: "epub"} {
		f.caches[mediaType] = doccache.New(doccache.Options[*Document]{
			Name:       name,
			MaxEntries: opts.MaxEntries,
			TTL:        opts.TTL,
			OnEvict:    releaseDocument,
		})
	}
	return f
}

func releaseDocument(path string, doc *Document) {
	if doc == nil {
		return
	}
	if err := doc.Close(); err != nil {
		logging.L().Warn("Failed to release document", logging.String("path", path), logging.Err(err))
	}
}

// Supports reports whether mediaType (or one of its aliases) is renderable.
func (f *Factory) Supports(mediaType string) bool {
	_, ok := f.cacheFor(mediaType)
	return ok
}

func (f *Factory) cacheFor(mediaType string) (*doccache.Cache[*Document], bool) {
	if c, ok := f.caches[mediaType]; ok {
		return c, true
	}
	if m := mimetype.Lookup(mediaType); m != nil {
		for key, c := range f.caches {
			if m.Is(key) {
				return c, true
			}
		}
	}
	return nil, false
}

// Detect returns the renderable media type of the file at path.
func (f *Factory) Detect(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect %s: %w", path, err)
	}
	for t := m; t != nil; t = t.Parent() {
		if _, ok := f.cacheFor(t.String()); ok {
			return t.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, m.String())
}

// Document returns the open document for path, decoding it on first use.
// A document that failed to open stays unavailable until it leaves the cache.
func (f *Factory) Document(path, mediaType string) (*Document, error) {
	c, ok := f.cacheFor(mediaType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}
	doc := c.Get(path, func(key string) (*Document, error) {
		src, err := f.open(key)
		if err != nil {
			return nil, err
		}
		return newDocument(key, src), nil
	})
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDocument, path)
	}
	return doc, nil
}

// RenderPage renders page n of the document at path.
func (f *Factory) RenderPage(path, mediaType string, n int) (image.Image, error) {
	doc, err := f.Document(path, mediaType)
	if err != nil {
		return nil, err
	}
	img, err := doc.RenderPage(n)
	if errors.Is(err, ErrDocumentClosed) {
		// Evicted between lookup and render; the next lookup reopens it.
		doc, err = f.Document(path, mediaType)
		if err != nil {
			return nil, err
		}
		return doc.RenderPage(n)
	}
	return img, err
}

// Forget drops path from the caches, closing its document.
func (f *Factory) Forget(path string) {
	for _, c := range f.caches {
		c.Remove(path)
	}
}

// Run sweeps idle documents until ctx is done.
func (f *Factory) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range f.caches {
		wg.Add(1)
		go func(c *doccache.Cache[*Document]) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}
	wg.Wait()
}

// Purge closes every cached document.
func (f *Factory) Purge() {
	for _, c := range f.caches {
		c.Purge()
	}
}

// OpenDocuments returns the number of documents currently held open.
func (f *Factory) OpenDocuments() int {
	n := 0
	for _, c := range f.caches {
		n += c.Len()
	}
	return n
}
