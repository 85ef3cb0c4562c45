package imagecache

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/logging"
)

// CoverCatalog lists the items to warm and stores their accent colors.
type CoverCatalog interface {
	AllChapters() ([]entities.Chapter, error)
	AllSeries() ([]entities.Series, error)
	UpdateChapterAccent(id uint, color string) error
	UpdateSeriesAccent(id uint, color string) error
}

// ProgressReporter reports job progress updates.
type ProgressReporter interface {
	StartJob(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteJob(succeeded bool, errorMsg string) error
}

// WarmResult summarizes a bulk cover caching run.
type WarmResult struct {
	Total     int `json:"total"`
	Generated int `json:"generated"`
	Colored   int `json:"colored"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Warmer generates missing thumbnails for every chapter and series and
// extracts their accent colors.
type Warmer struct {
	cache    *Cache
	catalog  CoverCatalog
	progress ProgressReporter
}

func NewWarmer(cache *Cache, catalog CoverCatalog) *Warmer {
	return &Warmer{cache: cache, catalog: catalog}
}

// SetProgressReporter sets the progress reporter (optional).
func (w *Warmer) SetProgressReporter(reporter ProgressReporter) {
	w.progress = reporter
}

type warmItem struct {
	hash   string
	accent string
	label  string
	store  func(color string) error
}

// WarmAll processes chapters first, then series, so series covers that fall
// back to a chapter page find it already decoded on disk.
func (w *Warmer) WarmAll(ctx context.Context) (*WarmResult, error) {
	chapters, err := w.catalog.AllChapters()
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	series, err := w.catalog.AllSeries()
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	items := make([]warmItem, 0, len(chapters)+len(series))
	for _, ch := range chapters {
		id := ch.ID
		items = append(items, warmItem{hash: ch.Hash, accent: ch.AccentColor, label: ch.Path,
			store: func(color string) error { return w.catalog.UpdateChapterAccent(id, color) }})
	}
	for _, s := range series {
		id := s.ID
		items = append(items, warmItem{hash: s.Hash, accent: s.AccentColor, label: s.Folder,
			store: func(color string) error { return w.catalog.UpdateSeriesAccent(id, color) }})
	}

	result := &WarmResult{Total: len(items)}
	if w.progress != nil {
		if err := w.progress.StartJob(len(items)); err != nil {
			return nil, fmt.Errorf("start job progress: %w", err)
		}
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			if w.progress != nil {
				_ = w.progress.CompleteJob(false, "operation cancelled")
			}
			return result, err
		}
		if w.progress != nil {
			_ = w.progress.UpdateProgress(i, result.Generated, result.Failed, result.Skipped, item.label)
		}
		w.warm(ctx, item, result)
	}

	if w.progress != nil {
		errorMsg := ""
		if result.Failed > 0 {
			errorMsg = fmt.Sprintf("%d covers failed", result.Failed)
		}
		_ = w.progress.UpdateProgress(len(items), result.Generated, result.Failed, result.Skipped, "")
		_ = w.progress.CompleteJob(result.Failed == 0, errorMsg)
	}

	logging.L().Info("Cover caching finished",
		logging.Int("total", result.Total),
		logging.Int("generated", result.Generated),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (w *Warmer) warm(ctx context.Context, item warmItem, result *WarmResult) {
	generated := false
	if !w.cache.IsInCache(item.hash, VariantThumbnail) {
		if err := w.cache.SaveImageIntoCache(ctx, item.hash); err != nil {
			result.Failed++
			logging.L().Warn("Failed to cache cover", logging.String("item", item.label), logging.Err(err))
			return
		}
		generated = true
		result.Generated++
	}

	if item.accent != "" {
		if !generated {
			result.Skipped++
		}
		return
	}
	color, err := w.accentFor(item.hash)
	if err != nil {
		logging.L().Debug("No accent color", logging.String("item", item.label), logging.Err(err))
		return
	}
	if err := item.store(color); err != nil {
		logging.L().Warn("Failed to store accent color", logging.String("item", item.label), logging.Err(err))
		return
	}
	result.Colored++
}

func (w *Warmer) accentFor(hash string) (string, error) {
	data, err := w.cache.ImageBytes(hash, VariantThumbnail)
	if err != nil {
		return "", err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return AccentColor(img), nil
}
