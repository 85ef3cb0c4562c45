package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/natural"
)

// chapterExtensions are the file extensions considered during a walk. The
// media type itself is always resolved from content.
var chapterExtensions = map[string]bool{
	".cbz": true, ".zip": true,
	".cbr": true, ".rar": true,
	".cb7": true, ".7z": true,
	".pdf": true, ".epub": true,
}

// IsChapterFile reports whether a file name is a chapter candidate.
func IsChapterFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return chapterExtensions[strings.ToLower(filepath.Ext(base))]
}

// Catalog is the storage the pipeline writes to.
type Catalog interface {
	UpsertSeries(series *entities.Series) error
	RefreshChaptersCount(seriesID uint) (int, error)
	DeleteEmptySeries() (int64, error)
	ChapterByPath(path string) (*entities.Chapter, error)
	ChaptersUnder(folder string) ([]entities.Chapter, error)
	AllChapters() ([]entities.Chapter, error)
	UpsertChapter(chapter *entities.Chapter) error
	DeleteChapter(id uint) error
}

// Classifier resolves a chapter file's media type and page count.
type Classifier interface {
	Classify(path string) (string, error)
	PageCount(path, mediaType string) (int, error)
}

// Progress receives per-file progress during a scan.
type Progress func(processed, total int, current string)

// Result summarizes one scan.
type Result struct {
	Folders           int `json:"folders"`
	Series            int `json:"series"`
	ChaptersAdded     int `json:"chapters_added"`
	ChaptersUpdated   int `json:"chapters_updated"`
	ChaptersUnchanged int `json:"chapters_unchanged"`
	ChaptersRemoved   int `json:"chapters_removed"`
	SeriesRemoved     int `json:"series_removed"`
	Failed            int `json:"failed"`
	// FoldersMissing counts library roots that could not be found. Their
	// chapters are kept until the folder is back or removed from the library.
	FoldersMissing    int `json:"folders_missing"`
}

var errFolderMissing = errors.New("library folder is missing")

// Pipeline handles the import workflow:
// walk → group by series directory → classify → upsert → prune.
type Pipeline struct {
	catalog  Catalog
	classify Classifier

	// OnRemoved runs for every chapter dropped from the catalog.
	OnRemoved func(chapter entities.Chapter)
	// OnUpdated runs for every chapter whose file content changed.
	OnUpdated func(chapter entities.Chapter)
}

func NewPipeline(catalog Catalog, classify Classifier) *Pipeline {
	return &Pipeline{catalog: catalog, classify: classify}
}

type candidate struct {
	path    string
	dir     string
	size    int64
	modTime time.Time
}

// ChapterHash is the catalog hash of a chapter file.
func ChapterHash(path string) string {
	return "ch-" + library.HashPath(path)
}

// Scan indexes folders. With full set every chapter is re-read; otherwise
// unchanged files are skipped. Cancellation is checked between files.
func (p *Pipeline) Scan(ctx context.Context, folders []library.Folder, full bool, progress Progress) (Result, error) {
	start := time.Now()
	result := Result{Folders: len(folders)}

	var files []candidate
	var missing []library.Folder
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		found, err := walkFolder(ctx, folder.Path)
		if errors.Is(err, errFolderMissing) {
			logging.L().Warn("Library folder is missing, keeping its chapters", logging.String("path", folder.Path))
			missing = append(missing, folder)
			continue
		}
		if err != nil {
			return result, err
		}
		files = append(files, found...)
	}
	result.FoldersMissing = len(missing)

	seen := make(map[string]bool, len(files))
	seriesByDir := make(map[string]*entities.Series)
	touched := make(map[uint]bool)

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if progress != nil {
			progress(i, len(files), file.path)
		}
		seen[file.path] = true

		folder, _ := owningFolder(folders, file.path)
		series, err := p.seriesFor(seriesByDir, folder, file.dir)
		if err != nil {
			return result, fmt.Errorf("save series %s: %w", file.dir, err)
		}

		outcome, err := p.indexChapter(series, file, full)
		if err != nil {
			result.Failed++
			logging.L().Warn("Failed to index chapter", logging.String("path", file.path), logging.Err(err))
			continue
		}
		switch outcome {
		case outcomeAdded:
			result.ChaptersAdded++
			touched[series.ID] = true
		case outcomeUpdated:
			result.ChaptersUpdated++
			touched[series.ID] = true
		case outcomeUnchanged:
			result.ChaptersUnchanged++
		}
	}
	if progress != nil {
		progress(len(files), len(files), "")
	}
	result.Series = len(seriesByDir)

	removed, err := p.prune(folders, missing, seen, full)
	if err != nil {
		return result, err
	}
	for _, ch := range removed {
		touched[ch.SeriesID] = true
	}
	result.ChaptersRemoved = len(removed)

	for id := range touched {
		if _, err := p.catalog.RefreshChaptersCount(id); err != nil {
			return result, fmt.Errorf("refresh chapter count: %w", err)
		}
	}
	n, err := p.catalog.DeleteEmptySeries()
	if err != nil {
		return result, fmt.Errorf("delete empty series: %w", err)
	}
	result.SeriesRemoved = int(n)

	logging.L().Info("Library scan finished",
		logging.Any("result", result),
		logging.Bool("full", full),
		logging.Duration("took", time.Since(start)),
	)
	return result, nil
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeAdded
	outcomeUpdated
)

func (p *Pipeline) indexChapter(series *entities.Series, file candidate, full bool) (outcome, error) {
	existing, err := p.catalog.ChapterByPath(file.path)
	if err != nil {
		existing = nil
	}
	if existing != nil && !full && existing.SeriesID == series.ID && existing.Unchanged(file.size, file.modTime) {
		return outcomeUnchanged, nil
	}

	mediaType, err := p.classify.Classify(file.path)
	if err != nil {
		return outcomeUnchanged, err
	}
	pages, err := p.classify.PageCount(file.path, mediaType)
	if err != nil {
		return outcomeUnchanged, err
	}

	chapter := &entities.Chapter{
		SeriesID:  series.ID,
		Hash:      ChapterHash(file.path),
		Path:      file.path,
		Folder:    file.dir,
		MediaType: mediaType,
		Size:      file.size,
		ModTime:   file.modTime,
		PageCount: pages,
		Number:    ChapterNumber(file.path),
		Title:     ChapterTitle(file.path),
	}
	if existing != nil && existing.Unchanged(file.size, file.modTime) {
		// Keep embedded-metadata values for a file that did not change.
		chapter.Title = existing.Title
		chapter.Number = existing.Number
	}
	if err := p.catalog.UpsertChapter(chapter); err != nil {
		return outcomeUnchanged, err
	}

	if existing == nil {
		return outcomeAdded, nil
	}
	if !existing.Unchanged(file.size, file.modTime) && p.OnUpdated != nil {
		p.OnUpdated(*chapter)
	}
	return outcomeUpdated, nil
}

func (p *Pipeline) seriesFor(cache map[string]*entities.Series, folder library.Folder, dir string) (*entities.Series, error) {
	if s, ok := cache[dir]; ok {
		return s, nil
	}
	s := &entities.Series{
		Hash:        library.HashPath(dir),
		LibraryHash: folder.Hash,
		Folder:      dir,
		Title:       filepath.Base(dir),
	}
	if err := p.catalog.UpsertSeries(s); err != nil {
		return nil, err
	}
	cache[dir] = s
	return s, nil
}

// prune deletes chapters under the scanned folders that were not seen. A
// full scan also drops chapters outside every library folder. Chapters under
// a missing folder are never pruned.
func (p *Pipeline) prune(folders, missing []library.Folder, seen map[string]bool, full bool) ([]entities.Chapter, error) {
	var indexed []entities.Chapter
	if full {
		all, err := p.catalog.AllChapters()
		if err != nil {
			return nil, fmt.Errorf("list chapters: %w", err)
		}
		indexed = all
	} else {
		for _, folder := range folders {
			if slices.Contains(missing, folder) {
				continue
			}
			under, err := p.catalog.ChaptersUnder(folder.Path)
			if err != nil {
				return nil, fmt.Errorf("list chapters under %s: %w", folder.Path, err)
			}
			indexed = append(indexed, under...)
		}
	}

	var removed []entities.Chapter
	for _, ch := range indexed {
		if seen[ch.Path] {
			continue
		}
		if _, offline := owningFolder(missing, ch.Path); offline {
			continue
		}
		if err := p.catalog.DeleteChapter(ch.ID); err != nil {
			return removed, fmt.Errorf("delete chapter %s: %w", ch.Path, err)
		}
		removed = append(removed, ch)
		if p.OnRemoved != nil {
			p.OnRemoved(ch)
		}
		logging.L().Debug("Removed vanished chapter", logging.String("path", ch.Path))
	}
	return removed, nil
}

// Forget removes every chapter under folder from the catalog, for a folder
// that left the library.
func (p *Pipeline) Forget(folder library.Folder) (Result, error) {
	chapters, err := p.catalog.ChaptersUnder(folder.Path)
	if err != nil {
		return Result{}, fmt.Errorf("list chapters under %s: %w", folder.Path, err)
	}
	result := Result{Folders: 1}
	for _, ch := range chapters {
		if err := p.catalog.DeleteChapter(ch.ID); err != nil {
			return result, fmt.Errorf("delete chapter %s: %w", ch.Path, err)
		}
		result.ChaptersRemoved++
		if p.OnRemoved != nil {
			p.OnRemoved(ch)
		}
	}
	n, err := p.catalog.DeleteEmptySeries()
	if err != nil {
		return result, fmt.Errorf("delete empty series: %w", err)
	}
	result.SeriesRemoved = int(n)

	logging.L().Info("Library folder forgotten",
		logging.String("path", folder.Path),
		logging.Int("chapters", result.ChaptersRemoved),
		logging.Int("series", result.SeriesRemoved),
	)
	return result, nil
}

func walkFolder(ctx context.Context, root string) ([]candidate, error) {
	var files []candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.L().Warn("Skipping unreadable path", logging.String("path", path), logging.Err(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsChapterFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, candidate{
			path:    path,
			dir:     filepath.Dir(path),
			size:    info.Size(),
			modTime: info.ModTime().Truncate(time.Microsecond),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errFolderMissing, root)
		}
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sortCandidates(files)
	return files, nil
}

func sortCandidates(files []candidate) {
	slices.SortFunc(files, func(a, b candidate) int { return natural.Compare(a.path, b.path) })
}

func owningFolder(folders []library.Folder, path string) (library.Folder, bool) {
	for _, f := range folders {
		if rel, err := filepath.Rel(f.Path, path); err == nil && !strings.HasPrefix(rel, "..") {
			return f, true
		}
	}
	return library.Folder{}, false
}
