package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mrlokans/comicshelf/internal/archive"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/logging"
)

// Catalog defines the chapter storage the updater reads and writes.
type Catalog interface {
	AllChapters() ([]entities.Chapter, error)
	SeriesByID(id uint) (*entities.Series, error)
	UpdateChapterMetadata(id uint, title string, number float64) error
	UpdateChapterFile(id uint, size int64, modTime time.Time) error
}

// Acknowledger is told about files the updater rewrote, so they are not
// reported as external changes.
type Acknowledger interface {
	Acknowledge(paths ...string)
}

// ProgressReporter reports job progress updates.
type ProgressReporter interface {
	StartJob(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteJob(succeeded bool, errorMsg string) error
}

// Result contains the summary of a metadata update run.
type Result struct {
	Total     int      `json:"total"`
	Updated   int      `json:"updated"`
	Rewritten int      `json:"rewritten"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Updater syncs chapter titles and numbers with embedded ComicInfo.xml and
// writes a normalized document back into zip chapters.
type Updater struct {
	catalog  Catalog
	archives *archive.Registry
	ack      Acknowledger
	progress ProgressReporter

	// WriteBack enables rewriting ComicInfo.xml inside zip chapters.
	WriteBack bool
}

func NewUpdater(catalog Catalog, archives *archive.Registry) *Updater {
	return &Updater{catalog: catalog, archives: archives, WriteBack: true}
}

// SetAcknowledger sets the receiver of rewritten paths (optional).
func (u *Updater) SetAcknowledger(ack Acknowledger) {
	u.ack = ack
}

// SetProgressReporter sets the progress reporter for bulk runs (optional).
func (u *Updater) SetProgressReporter(reporter ProgressReporter) {
	u.progress = reporter
}

// UpdateAll processes every archive chapter in the catalog.
func (u *Updater) UpdateAll(ctx context.Context) (*Result, error) {
	chapters, err := u.catalog.AllChapters()
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	result := &Result{Total: len(chapters)}
	if u.progress != nil {
		if err := u.progress.StartJob(len(chapters)); err != nil {
			return nil, fmt.Errorf("start job progress: %w", err)
		}
	}

	seriesTitles := make(map[uint]string)
	for i := range chapters {
		chapter := &chapters[i]
		if err := ctx.Err(); err != nil {
			if u.progress != nil {
				_ = u.progress.CompleteJob(false, "operation cancelled")
			}
			return result, err
		}
		if u.progress != nil {
			_ = u.progress.UpdateProgress(i, result.Updated, result.Failed, result.Skipped, chapter.Path)
		}

		if !u.archives.Supports(chapter.MediaType) {
			result.Skipped++
			continue
		}

		changed, err := u.updateChapter(chapter, u.seriesTitle(seriesTitles, chapter.SeriesID), result)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", chapter.Path, err))
			logging.L().Warn("Metadata update failed", logging.String("path", chapter.Path), logging.Err(err))
		case changed:
			result.Updated++
		default:
			result.Skipped++
		}
	}

	if u.progress != nil {
		errorMsg := ""
		if len(result.Errors) > 0 {
			errorMsg = fmt.Sprintf("%d errors occurred", len(result.Errors))
		}
		_ = u.progress.UpdateProgress(len(chapters), result.Updated, result.Failed, result.Skipped, "")
		_ = u.progress.CompleteJob(result.Failed == 0, errorMsg)
	}

	logging.L().Info("Metadata update finished",
		logging.Int("total", result.Total),
		logging.Int("updated", result.Updated),
		logging.Int("rewritten", result.Rewritten),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (u *Updater) seriesTitle(cache map[uint]string, id uint) string {
	if title, ok := cache[id]; ok {
		return title
	}
	title := ""
	if s, err := u.catalog.SeriesByID(id); err == nil {
		title = s.Title
	}
	cache[id] = title
	return title
}

// updateChapter reads the chapter's ComicInfo, stores its title and number
// and rewrites the entry when the normalized document differs.
func (u *Updater) updateChapter(chapter *entities.Chapter, seriesTitle string, result *Result) (bool, error) {
	it, err := u.archives.Iterator(chapter.Path)
	if err != nil {
		return false, err
	}
	defer it.Close()

	var original []byte
	info := &ComicInfo{}
	data, err := archive.ReadEntry(it, EntryName)
	switch {
	case err == nil:
		original = data
		if info, err = Parse(data); err != nil {
			return false, err
		}
	case !errors.Is(err, archive.ErrEntryNotFound):
		return false, err
	}

	title, number := chapter.Title, chapter.Number
	if info.Title != "" {
		title = info.Title
	}
	if n, ok := info.ParsedNumber(); ok {
		number = n
	}

	changed := false
	if title != chapter.Title || number != chapter.Number {
		if err := u.catalog.UpdateChapterMetadata(chapter.ID, title, number); err != nil {
			return false, fmt.Errorf("store metadata: %w", err)
		}
		chapter.Title, chapter.Number = title, number
		changed = true
	}

	if !u.WriteBack || chapter.MediaType != archive.MediaTypeZip {
		return changed, nil
	}

	normalize(info, chapter, seriesTitle)
	normalized, err := info.Marshal()
	if err != nil {
		return changed, err
	}
	if bytes.Equal(normalized, original) {
		return changed, nil
	}

	if err := it.SaveIntoArchive(chapter.Path, EntryName, normalized); err != nil {
		return changed, err
	}
	if err := u.recordRewrite(chapter); err != nil {
		return changed, err
	}
	result.Rewritten++
	return true, nil
}

func (u *Updater) recordRewrite(chapter *entities.Chapter) error {
	fi, err := os.Stat(chapter.Path)
	if err != nil {
		return fmt.Errorf("stat rewritten chapter: %w", err)
	}
	modTime := fi.ModTime().Truncate(time.Microsecond)
	if err := u.catalog.UpdateChapterFile(chapter.ID, fi.Size(), modTime); err != nil {
		return fmt.Errorf("store rewritten file: %w", err)
	}
	if u.ack != nil {
		u.ack.Acknowledge(chapter.Path)
	}
	return nil
}

func normalize(info *ComicInfo, chapter *entities.Chapter, seriesTitle string) {
	if info.Title == "" {
		info.Title = chapter.Title
	}
	if info.Series == "" {
		info.Series = seriesTitle
	}
	if _, ok := info.ParsedNumber(); !ok && chapter.Number > 0 {
		info.Number = FormatNumber(chapter.Number)
	}
	if chapter.PageCount > 0 {
		info.PageCount = chapter.PageCount
	}
}
