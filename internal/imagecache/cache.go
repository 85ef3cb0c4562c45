// Package imagecache stores page originals and thumbnails on disk under
// <root>/original and <root>/thumbnail. Presence is derived from the file
// path alone; nothing is evicted automatically.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the webp decoder for page images

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metrics"
)

type Variant string

const (
	VariantOriginal  Variant = "original"
	VariantThumbnail Variant = "thumbnail"
)

// ChapterHashPrefix marks hashes that identify a chapter rather than a series.
const ChapterHashPrefix = "ch-"

const (
	DefaultThumbnailWidth  = 230
	DefaultThumbnailHeight = 320
	DefaultFormat          = "png"
)

var ErrNoCoverFound = errors.New("no cover found")

// PageSource opens the first page of a chapter.
type PageSource interface {
	FirstPage(ctx context.Context, chapterHash string) (io.ReadCloser, string, error)
}

// BookCoverSaver produces the cover for a non-chapter hash.
type BookCoverSaver interface {
	SaveBookCover(ctx context.Context, cache *Cache, hash string) error
}

type Options struct {
	Width  int
	Height int
	// Format is the default thumbnail extension (png, jpg).
	Format string
}

// Cache handles local caching of chapter and series images.
type Cache struct {
	root   string
	width  int
	height int
	format string

	pages PageSource
	books BookCoverSaver
}

// New creates the cache directories under root.
func New(root string, opts Options) (*Cache, error) {
	c := &Cache{
		root:   root,
		width:  opts.Width,
		height: opts.Height,
		format: strings.TrimPrefix(strings.ToLower(opts.Format), "."),
	}
	if c.width <= 0 {
		c.width = DefaultThumbnailWidth
	}
	if c.height <= 0 {
		c.height = DefaultThumbnailHeight
	}
	if _, err := imaging.FormatFromExtension(c.format); err != nil {
		c.format = DefaultFormat
	}
	if err := c.ensureDirs(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetSources wires the collaborators used by SaveImageIntoCache.
func (c *Cache) SetSources(pages PageSource, books BookCoverSaver) {
	c.pages = pages
	c.books = books
}

func (c *Cache) ensureDirs() error {
	for _, v := range []Variant{VariantOriginal, VariantThumbnail} {
		if err := os.MkdirAll(filepath.Join(c.root, string(v)), 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	return nil
}

func (c *Cache) Root() string {
	return c.root
}

// Path returns where the image for hash would be stored. Thumbnails use the
// configured format; originals keep whatever extension they were saved with.
func (c *Cache) Path(hash string, variant Variant) string {
	if variant == VariantOriginal {
		if matches, _ := filepath.Glob(filepath.Join(c.root, string(variant), globEscape(hash)+".*")); len(matches) > 0 {
			return matches[0]
		}
	}
	return c.pathWithExt(hash, variant, c.format)
}

func (c *Cache) pathWithExt(hash string, variant Variant, ext string) string {
	return filepath.Join(c.root, string(variant), hash+"."+strings.TrimPrefix(ext, "."))
}

func (c *Cache) IsInCache(hash string, variant Variant) bool {
	_, err := os.Stat(c.Path(hash, variant))
	return err == nil
}

// ImageBytes reads a cached image. Misses are not regenerated here.
func (c *Cache) ImageBytes(hash string, variant Variant) ([]byte, error) {
	data, err := os.ReadFile(c.Path(hash, variant))
	if err != nil {
		metrics.RecordImageCacheRead(string(variant), false)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNoCoverFound, variant, hash)
		}
		return nil, err
	}
	metrics.RecordImageCacheRead(string(variant), true)
	return data, nil
}

// SaveImageIntoCache generates the thumbnail for hash. Chapter hashes use the
// chapter's first page; any other hash goes to the book cover saver.
func (c *Cache) SaveImageIntoCache(ctx context.Context, hash string) error {
	if !strings.HasPrefix(hash, ChapterHashPrefix) {
		if c.books == nil {
			return fmt.Errorf("%w: no cover saver for %s", ErrNoCoverFound, hash)
		}
		return c.books.SaveBookCover(ctx, c, hash)
	}
	if c.pages == nil {
		return fmt.Errorf("%w: no page source for %s", ErrNoCoverFound, hash)
	}

	page, ext, err := c.pages.FirstPage(ctx, hash)
	if err != nil {
		return fmt.Errorf("open first page of %s: %w", hash, err)
	}
	defer page.Close()

	tmp, err := os.CreateTemp(c.root, "page_tmp_*"+ext)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, page); err != nil {
		return fmt.Errorf("copy first page of %s: %w", hash, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err = c.SaveToFile(tmp, hash, c.format)
	return err
}

// Saved is the result of SaveToFile.
type Saved struct {
	ThumbnailPath string
	// Original is the decoded source image.
	Original image.Image
}

// SaveToFile decodes r, writes a thumbnail for hash with the given extension
// and returns it together with the decoded original.
func (c *Cache) SaveToFile(r io.Reader, hash, ext string) (*Saved, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = c.format
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("thumbnail format %q: %w", ext, err)
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image for %s: %w", hash, err)
	}
	thumb := imaging.Fill(img, c.width, c.height, imaging.Center, imaging.Lanczos)

	dest := c.pathWithExt(hash, VariantThumbnail, ext)
	err = c.writeAtomic(dest, func(w io.Writer) error {
		return imaging.Encode(w, thumb, format)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordThumbnailGenerated()
	logging.L().Debug("Saved thumbnail", logging.String("hash", hash), logging.String("path", dest))
	return &Saved{ThumbnailPath: dest, Original: img}, nil
}

// SaveOriginal stores the unmodified image bytes for hash.
func (c *Cache) SaveOriginal(hash, ext string, r io.Reader) (string, error) {
	dest := c.pathWithExt(hash, VariantOriginal, strings.ToLower(ext))
	err := c.writeAtomic(dest, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// Remove deletes every cached variant for hash.
func (c *Cache) Remove(hash string) error {
	for _, v := range []Variant{VariantOriginal, VariantThumbnail} {
		matches, err := filepath.Glob(filepath.Join(c.root, string(v), globEscape(hash)+".*"))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

// Clear removes every cached image.
func (c *Cache) Clear() error {
	for _, v := range []Variant{VariantOriginal, VariantThumbnail} {
		if err := os.RemoveAll(filepath.Join(c.root, string(v))); err != nil {
			return fmt.Errorf("clear %s cache: %w", v, err)
		}
	}
	return c.ensureDirs()
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place.
func (c *Cache) writeAtomic(dest string, write func(w io.Writer) error) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "img_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	if err := write(tmpFile); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
