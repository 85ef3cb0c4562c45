// Package reader serves chapter pages regardless of how the chapter is
// stored: image entries inside an archive, or pages rendered from a PDF or
// EPUB document.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/mrlokans/comicshelf/internal/archive"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/render"
)

// ErrUnknownChapter is returned when a chapter hash is not in the catalog.
var ErrUnknownChapter = errors.New("unknown chapter")

// ChapterLookup resolves chapters by their content hash.
type ChapterLookup interface {
	ChapterByHash(hash string) (*entities.Chapter, error)
}

// Page is an opened page stream. Body must be closed.
type Page struct {
	Body        io.ReadCloser
	Name        string
	ContentType string
	Size        int64
}

// Ext returns the page's file extension including the dot.
func (p *Page) Ext() string {
	return strings.ToLower(path.Ext(p.Name))
}

type Reader struct {
	archives *archive.Registry
	docs     *render.Factory
	chapters ChapterLookup
}

func New(archives *archive.Registry, docs *render.Factory, chapters ChapterLookup) *Reader {
	return &Reader{archives: archives, docs: docs, chapters: chapters}
}

// Classify resolves the media type the reader would use for the file at
// filePath. Renderable documents win over archives, so an EPUB is not read as
// a plain zip.
func (r *Reader) Classify(filePath string) (string, error) {
	if mediaType, err := r.docs.Detect(filePath); err == nil {
		return mediaType, nil
	}
	_, mediaType, err := r.archives.Lookup(filePath)
	if err != nil {
		return "", err
	}
	return mediaType, nil
}

// PageCount counts the pages of the file at filePath.
func (r *Reader) PageCount(filePath, mediaType string) (int, error) {
	if r.docs.Supports(mediaType) {
		doc, err := r.docs.Document(filePath, mediaType)
		if err != nil {
			return 0, err
		}
		return doc.PageCount(), nil
	}

	it, err := r.archives.Iterator(filePath)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	pages, err := archive.Pages(it)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// OpenPage opens page n (zero based) of chapter.
func (r *Reader) OpenPage(chapter *entities.Chapter, n int) (*Page, error) {
	if r.docs.Supports(chapter.MediaType) {
		return r.renderPage(chapter, n)
	}

	it, err := r.archives.Iterator(chapter.Path)
	if err != nil {
		return nil, err
	}
	body, entry, err := archive.OpenPage(it, n)
	if err != nil {
		it.Close()
		return nil, err
	}
	return &Page{
		Body:        &iteratorReader{ReadCloser: body, it: it},
		Name:        entry.Name,
		ContentType: archive.ImageContentType(entry.Name),
		Size:        entry.Size,
	}, nil
}

func (r *Reader) renderPage(chapter *entities.Chapter, n int) (*Page, error) {
	img, err := r.docs.RenderPage(chapter.Path, chapter.MediaType, n)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page %d of %s: %w", n, chapter.Path, err)
	}
	return &Page{
		Body:        io.NopCloser(&buf),
		Name:        fmt.Sprintf("%04d.png", n+1),
		ContentType: "image/png",
		Size:        int64(buf.Len()),
	}, nil
}

// FirstPage opens the first page of the chapter identified by hash.
func (r *Reader) FirstPage(ctx context.Context, chapterHash string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	chapter, err := r.chapters.ChapterByHash(chapterHash)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrUnknownChapter, chapterHash, err)
	}
	page, err := r.OpenPage(chapter, 0)
	if err != nil {
		return nil, "", err
	}
	return page.Body, page.Ext(), nil
}

// iteratorReader closes the owning iterator together with the entry stream.
type iteratorReader struct {
	io.ReadCloser
	it archive.Iterator
}

func (r *iteratorReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.it.Close(); err == nil {
		err = cerr
	}
	return err
}
