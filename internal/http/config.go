package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/comicshelf/internal/database"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/ingest"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/reader"
	"github.com/mrlokans/comicshelf/internal/servicelock"
	"github.com/mrlokans/comicshelf/internal/watcher"
)

// CatalogStore reads indexed series and chapters.
type CatalogStore interface {
	ListSeries(search string, limit, offset int) ([]entities.Series, int64, error)
	SeriesByID(id uint) (*entities.Series, error)
	ChaptersForSeries(seriesID uint) ([]entities.Chapter, error)
	ChapterByID(id uint) (*entities.Chapter, error)
}

// PageOpener streams single chapter pages.
type PageOpener interface {
	OpenPage(chapter *entities.Chapter, n int) (*reader.Page, error)
}

// ThumbnailCache serves and regenerates cached thumbnails.
type ThumbnailCache interface {
	IsInCache(hash string, variant imagecache.Variant) bool
	SaveImageIntoCache(ctx context.Context, hash string) error
	ImageBytes(hash string, variant imagecache.Variant) ([]byte, error)
	Clear() error
}

// StatsCounter counts catalog rows.
type StatsCounter interface {
	Count(model any) (int64, error)
	CountLike(model any, field, pattern string) (int64, error)
}

// LibraryManager edits the set of library folders.
type LibraryManager interface {
	Folders() []library.Folder
	AddFolder(path string) (library.Folder, error)
	RemoveFolder(hash string) (library.Folder, error)
}

// FolderForgetter drops the catalog entries of a removed folder.
type FolderForgetter interface {
	Forget(folder library.Folder) (ingest.Result, error)
}

// JobQueue enqueues exclusive jobs.
type JobQueue interface {
	Enqueue(jobType entities.JobType, full bool) (string, error)
}

// JobProgressReader returns the last recorded progress of one job type.
type JobProgressReader interface {
	GetProgress() (*entities.JobProgress, error)
}

// TaskStatusReader looks up queued tasks by id.
type TaskStatusReader interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// WatcherControl toggles the folder watcher at runtime.
type WatcherControl interface {
	Enabled() bool
	SetEnabled(enabled bool)
	Restart()
	State() watcher.State
	Pending() []watcher.Event
}

// DocumentCounter reports how many rendered documents are held open.
type DocumentCounter interface {
	OpenDocuments() int
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	GetTime(key string) (time.Time, bool)
	GetBool(key string, def bool) bool
	SetBool(key string, value bool) error
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Catalog  CatalogStore
	Stats    StatsCounter

	// Page and thumbnail serving
	Pages      PageOpener
	Thumbnails ThumbnailCache
	Documents  DocumentCounter

	// Library management
	Library   LibraryManager
	Forgetter FolderForgetter
	Lock      *servicelock.Lock

	// Exclusive jobs (optional)
	Jobs        JobQueue
	JobProgress map[entities.JobType]JobProgressReader
	TaskStatus  TaskStatusReader

	// Watcher settings (optional)
	Watcher  WatcherControl
	Settings SettingsStore

	// Used while ignore_modify has never been saved
	WatcherIgnoreModifyDefault bool

	// Reject library edits and job requests
	ReadOnly bool

	// Application info
	Version string
}
