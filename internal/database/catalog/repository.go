// Package catalog provides database operations for series and chapters.
//
// # Usage
//
//	repo := catalog.NewRepository(db)
//	chapters, err := repo.ChaptersForSeries(seriesID)
package catalog

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/comicshelf/internal/entities"
)

// Repository handles all catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// --- Series ---

func (r *Repository) SeriesByID(id uint) (*entities.Series, error) {
	var series entities.Series
	if err := r.db.First(&series, id).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

func (r *Repository) SeriesByHash(hash string) (*entities.Series, error) {
	var series entities.Series
	if err := r.db.Where("hash = ?", hash).First(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

func (r *Repository) SeriesByFolder(folder string) (*entities.Series, error) {
	var series entities.Series
	if err := r.db.Where("folder = ?", folder).First(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// ListSeries returns a page of series ordered by title, optionally filtered
// by a title substring, together with the total match count.
func (r *Repository) ListSeries(search string, limit, offset int) ([]entities.Series, int64, error) {
	search = strings.TrimSpace(search)
	filtered := func() *gorm.DB {
		query := r.db.Model(&entities.Series{})
		if search != "" {
			query = query.Where(clause.Like{Column: clause.Column{Name: "title"}, Value: "%" + search + "%"})
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var series []entities.Series
	err := filtered().Order("title ASC").Limit(limit).Offset(offset).Find(&series).Error
	return series, total, err
}

func (r *Repository) AllSeries() ([]entities.Series, error) {
	var series []entities.Series
	err := r.db.Order("title ASC").Find(&series).Error
	return series, err
}

// UpsertSeries saves series, reusing the row for its folder when one exists.
func (r *Repository) UpsertSeries(series *entities.Series) error {
	var existing entities.Series
	err := r.db.Where("folder = ?", series.Folder).First(&existing).Error
	switch {
	case err == nil:
		series.ID = existing.ID
		series.CreatedAt = existing.CreatedAt
		if series.AccentColor == "" {
			series.AccentColor = existing.AccentColor
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return r.db.Omit("Chapters").Save(series).Error
}

// RefreshChaptersCount recomputes the chapter count of a series.
func (r *Repository) RefreshChaptersCount(seriesID uint) (int, error) {
	var n int64
	if err := r.db.Model(&entities.Chapter{}).Where("series_id = ?", seriesID).Count(&n).Error; err != nil {
		return 0, err
	}
	err := r.db.Model(&entities.Series{}).Where("id = ?", seriesID).Update("chapters_count", n).Error
	return int(n), err
}

// DeleteSeries removes a series and its chapters.
func (r *Repository) DeleteSeries(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("series_id = ?", id).Delete(&entities.Chapter{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Series{}, id).Error
	})
}

// DeleteEmptySeries removes series left without chapters.
func (r *Repository) DeleteEmptySeries() (int64, error) {
	result := r.db.Where("id NOT IN (?)", r.db.Model(&entities.Chapter{}).Distinct("series_id")).
		Delete(&entities.Series{})
	return result.RowsAffected, result.Error
}

func (r *Repository) UpdateSeriesAccent(id uint, color string) error {
	return r.db.Model(&entities.Series{}).Where("id = ?", id).Update("accent_color", color).Error
}

// --- Chapters ---

func (r *Repository) ChapterByID(id uint) (*entities.Chapter, error) {
	var chapter entities.Chapter
	if err := r.db.First(&chapter, id).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *Repository) ChapterByHash(hash string) (*entities.Chapter, error) {
	var chapter entities.Chapter
	if err := r.db.Where("hash = ?", hash).First(&chapter).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *Repository) ChapterByPath(path string) (*entities.Chapter, error) {
	var chapter entities.Chapter
	if err := r.db.Where("path = ?", path).First(&chapter).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ChaptersForSeries returns the chapters of a series in reading order.
func (r *Repository) ChaptersForSeries(seriesID uint) ([]entities.Chapter, error) {
	var chapters []entities.Chapter
	err := r.db.Where("series_id = ?", seriesID).Order("number ASC, path ASC").Find(&chapters).Error
	return chapters, err
}

// FirstChapter returns the first chapter of a series in reading order.
func (r *Repository) FirstChapter(seriesID uint) (*entities.Chapter, error) {
	var chapter entities.Chapter
	err := r.db.Where("series_id = ?", seriesID).Order("number ASC, path ASC").First(&chapter).Error
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ChaptersUnder returns every chapter stored below folder.
func (r *Repository) ChaptersUnder(folder string) ([]entities.Chapter, error) {
	prefix := strings.TrimSuffix(folder, "/") + "/"
	var chapters []entities.Chapter
	// Exact, case-sensitive prefix match.
	err := r.db.Where("substr(path, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix).
		Order("path ASC").Find(&chapters).Error
	return chapters, err
}

func (r *Repository) AllChapters() ([]entities.Chapter, error) {
	var chapters []entities.Chapter
	err := r.db.Order("path ASC").Find(&chapters).Error
	return chapters, err
}

// UpsertChapter saves chapter, reusing the row for its path when one exists.
func (r *Repository) UpsertChapter(chapter *entities.Chapter) error {
	var existing entities.Chapter
	err := r.db.Where("path = ?", chapter.Path).First(&existing).Error
	switch {
	case err == nil:
		chapter.ID = existing.ID
		chapter.CreatedAt = existing.CreatedAt
		if chapter.AccentColor == "" {
			chapter.AccentColor = existing.AccentColor
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return r.db.Save(chapter).Error
}

func (r *Repository) UpdateChapterAccent(id uint, color string) error {
	return r.db.Model(&entities.Chapter{}).Where("id = ?", id).Update("accent_color", color).Error
}

// UpdateChapterMetadata stores title and number read from embedded metadata.
func (r *Repository) UpdateChapterMetadata(id uint, title string, number float64) error {
	return r.db.Model(&entities.Chapter{}).Where("id = ?", id).Updates(map[string]any{
		"title":  title,
		"number": number,
	}).Error
}

// UpdateChapterFile records the size and mtime of a rewritten chapter file.
func (r *Repository) UpdateChapterFile(id uint, size int64, modTime time.Time) error {
	return r.db.Model(&entities.Chapter{}).Where("id = ?", id).Updates(map[string]any{
		"size":     size,
		"mod_time": modTime,
	}).Error
}

func (r *Repository) DeleteChapter(id uint) error {
	return r.db.Delete(&entities.Chapter{}, id).Error
}
