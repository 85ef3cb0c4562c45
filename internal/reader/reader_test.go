package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/comicshelf/internal/archive"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/render"
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeChapter(t *testing.T, path string, pages map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, data := range pages {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

type fakeSource struct{ pages int }

func (f *fakeSource) NumPage() int { return f.pages }
func (f *fakeSource) Image(n int) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}
func (f *fakeSource) Close() error { return nil }

type fakeCatalog struct {
	chapters map[string]*entities.Chapter
	series   map[string]*entities.Series
	first    map[uint]*entities.Chapter
}

var errMissing = errors.New("missing")

func (f *fakeCatalog) ChapterByHash(hash string) (*entities.Chapter, error) {
	if c, ok := f.chapters[hash]; ok {
		return c, nil
	}
	return nil, errMissing
}

func (f *fakeCatalog) SeriesByHash(hash string) (*entities.Series, error) {
	if s, ok := f.series[hash]; ok {
		return s, nil
	}
	return nil, errMissing
}

func (f *fakeCatalog) FirstChapter(seriesID uint) (*entities.Chapter, error) {
	if c, ok := f.first[seriesID]; ok {
		return c, nil
	}
	return nil, errMissing
}

func newReader(t *testing.T, catalog *fakeCatalog) *Reader {
	t.Helper()
	docs := render.NewFactory(render.Options{Opener: func(string) (render.Source, error) {
		return &fakeSource{pages: 3}, nil
	}})
	t.Cleanup(docs.Purge)
	return New(archive.DefaultRegistry(), docs, catalog)
}

func TestReader_ArchivePages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v01.cbz")
	writeChapter(t, path, map[string][]byte{
		"page10.png":    pngBytes(t, color.White),
		"page2.png":     pngBytes(t, color.Black),
		"ComicInfo.xml": []byte("<ComicInfo/>"),
	})

	r := newReader(t, &fakeCatalog{})

	mediaType, err := r.Classify(path)
	require.NoError(t, err)
	assert.Equal(t, archive.MediaTypeZip, mediaType)

	count, err := r.PageCount(path, mediaType)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	chapter := &entities.Chapter{Path: path, MediaType: mediaType}
	page, err := r.OpenPage(chapter, 0)
	require.NoError(t, err)
	assert.Equal(t, "page2.png", page.Name)
	assert.Equal(t, "image/png", page.ContentType)
	assert.Equal(t, ".png", page.Ext())
	data, err := io.ReadAll(page.Body)
	require.NoError(t, err)
	require.NoError(t, page.Body.Close())
	assert.Equal(t, pngBytes(t, color.Black), data)

	_, err = r.OpenPage(chapter, 5)
	assert.ErrorIs(t, err, archive.ErrEntryNotFound)
}

func TestReader_RenderedPages(t *testing.T) {
	r := newReader(t, &fakeCatalog{})
	chapter := &entities.Chapter{Path: "/lib/book.pdf", MediaType: render.MediaTypePDF}

	count, err := r.PageCount(chapter.Path, chapter.MediaType)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, err := r.OpenPage(chapter, 1)
	require.NoError(t, err)
	defer page.Body.Close()
	assert.Equal(t, "image/png", page.ContentType)
	assert.Equal(t, "0002.png", page.Name)
	_, err = png.Decode(page.Body)
	assert.NoError(t, err)

	_, err = r.OpenPage(chapter, 3)
	assert.ErrorIs(t, err, render.ErrPageOutOfRange)
}

func TestReader_FirstPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v01.cbz")
	writeChapter(t, path, map[string][]byte{"001.png": pngBytes(t, color.White)})

	catalog := &fakeCatalog{chapters: map[string]*entities.Chapter{
		"ch-1": {Path: path, MediaType: archive.MediaTypeZip},
	}}
	r := newReader(t, catalog)

	body, ext, err := r.FirstPage(context.Background(), "ch-1")
	require.NoError(t, err)
	assert.Equal(t, ".png", ext)
	require.NoError(t, body.Close())

	_, _, err = r.FirstPage(context.Background(), "ch-missing")
	assert.ErrorIs(t, err, ErrUnknownChapter)
}

func TestSeriesCovers(t *testing.T) {
	seriesDir := t.TempDir()
	chapterPath := filepath.Join(seriesDir, "v01.cbz")
	writeChapter(t, chapterPath, map[string][]byte{"001.png": pngBytes(t, color.White)})

	catalog := &fakeCatalog{
		chapters: map[string]*entities.Chapter{"ch-1": {Hash: "ch-1", Path: chapterPath, MediaType: archive.MediaTypeZip}},
		series:   map[string]*entities.Series{"s1": {ID: 1, Folder: seriesDir}},
		first:    map[uint]*entities.Chapter{1: {Hash: "ch-1", Path: chapterPath, MediaType: archive.MediaTypeZip}},
	}
	r := newReader(t, catalog)
	cache, err := imagecache.New(t.TempDir(), imagecache.Options{})
	require.NoError(t, err)
	covers := NewSeriesCovers(catalog, r)
	cache.SetSources(r, covers)

	t.Run("first chapter page", func(t *testing.T) {
		require.NoError(t, cache.SaveImageIntoCache(context.Background(), "s1"))
		assert.True(t, cache.IsInCache("s1", imagecache.VariantThumbnail))
	})

	t.Run("cover file in folder", func(t *testing.T) {
		require.NoError(t, cache.Clear())
		require.NoError(t, os.WriteFile(filepath.Join(seriesDir, "Cover.PNG"), pngBytes(t, color.Black), 0o644))
		require.NoError(t, cache.SaveImageIntoCache(context.Background(), "s1"))
		assert.True(t, cache.IsInCache("s1", imagecache.VariantThumbnail))
	})

	t.Run("unknown series", func(t *testing.T) {
		err := cache.SaveImageIntoCache(context.Background(), "nope")
		assert.ErrorIs(t, err, imagecache.ErrNoCoverFound)
	})

	t.Run("chapter hash", func(t *testing.T) {
		require.NoError(t, cache.SaveImageIntoCache(context.Background(), "ch-1"))
		assert.True(t, cache.IsInCache("ch-1", imagecache.VariantThumbnail))
	})
}
