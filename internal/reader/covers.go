package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/logging"
)

// coverNames are checked, in order, inside a series folder.
var coverNames = []string{"cover.jpg", "cover.jpeg", "cover.png", "cover.webp", "folder.jpg", "folder.png"}

// SeriesLookup resolves series and their first chapter.
type SeriesLookup interface {
	SeriesByHash(hash string) (*entities.Series, error)
	FirstChapter(seriesID uint) (*entities.Chapter, error)
}

// SeriesCovers produces series thumbnails: a cover image stored next to the
// chapters if present, otherwise the first page of the first chapter.
type SeriesCovers struct {
	series SeriesLookup
	pages  imagecache.PageSource
}

func NewSeriesCovers(series SeriesLookup, pages imagecache.PageSource) *SeriesCovers {
	return &SeriesCovers{series: series, pages: pages}
}

func (s *SeriesCovers) SaveBookCover(ctx context.Context, cache *imagecache.Cache, hash string) error {
	series, err := s.series.SeriesByHash(hash)
	if err != nil {
		return fmt.Errorf("%w: series %s: %w", imagecache.ErrNoCoverFound, hash, err)
	}

	if coverPath, ok := findCoverFile(series.Folder); ok {
		err := saveCoverFile(cache, coverPath, hash)
		if err == nil {
			return nil
		}
		logging.L().Warn("Ignoring unreadable series cover", logging.String("path", coverPath), logging.Err(err))
	}

	chapter, err := s.series.FirstChapter(series.ID)
	if err != nil {
		return fmt.Errorf("%w: series %s has no chapters: %w", imagecache.ErrNoCoverFound, hash, err)
	}
	page, _, err := s.pages.FirstPage(ctx, chapter.Hash)
	if err != nil {
		return errors.Join(imagecache.ErrNoCoverFound, err)
	}
	defer page.Close()

	_, err = cache.SaveToFile(page, hash, "")
	return err
}

func findCoverFile(folder string) (string, bool) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", false
	}
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[strings.ToLower(e.Name())] = e.Name()
		}
	}
	for _, candidate := range coverNames {
		if name, ok := names[candidate]; ok {
			return filepath.Join(folder, name), true
		}
	}
	return "", false
}

func saveCoverFile(cache *imagecache.Cache, coverPath, hash string) error {
	f, err := os.Open(coverPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = cache.SaveToFile(f, hash, "")
	return err
}
