package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/comicshelf/internal/database"
	"github.com/mrlokans/comicshelf/internal/database/catalog"
	"github.com/mrlokans/comicshelf/internal/database/jobs"
	"github.com/mrlokans/comicshelf/internal/database/settings"
	"github.com/mrlokans/comicshelf/internal/http"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/ingest"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/metadata"
	"github.com/mrlokans/comicshelf/internal/reader"
	"github.com/mrlokans/comicshelf/internal/render"
	"github.com/mrlokans/comicshelf/internal/scheduler"
	"github.com/mrlokans/comicshelf/internal/servicelock"
	"github.com/mrlokans/comicshelf/internal/tasks"
	"github.com/mrlokans/comicshelf/internal/watcher"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Catalog implementations
var _ http.CatalogStore = (*catalog.Repository)(nil)
var _ ingest.Catalog = (*catalog.Repository)(nil)
var _ metadata.Catalog = (*catalog.Repository)(nil)
var _ imagecache.CoverCatalog = (*catalog.Repository)(nil)
var _ reader.ChapterLookup = (*catalog.Repository)(nil)
var _ reader.SeriesLookup = (*catalog.Repository)(nil)

var _ http.StatsCounter = (*database.Database)(nil)

// Settings implementations
var _ http.SettingsStore = (*settings.Repository)(nil)
var _ tasks.SettingsWriter = (*settings.Repository)(nil)

// =============================================================================
// Reading Pipeline
// =============================================================================

var _ http.PageOpener = (*reader.Reader)(nil)
var _ ingest.Classifier = (*reader.Reader)(nil)
var _ imagecache.PageSource = (*reader.Reader)(nil)
var _ imagecache.BookCoverSaver = (*reader.SeriesCovers)(nil)

var _ http.ThumbnailCache = (*imagecache.Cache)(nil)
var _ http.DocumentCounter = (*render.Factory)(nil)

// =============================================================================
// Library and Ingest
// =============================================================================

var _ http.LibraryManager = (*library.Library)(nil)
var _ http.FolderForgetter = (*ingest.Pipeline)(nil)
var _ tasks.LibraryScanner = (*ingest.Pipeline)(nil)

// =============================================================================
// Background Work
// =============================================================================

// Job queue implementations
var _ http.JobQueue = (*tasks.Jobs)(nil)
var _ watcher.RescanRequester = (*tasks.Jobs)(nil)
var _ scheduler.RescanRequester = (*tasks.Jobs)(nil)
var _ http.TaskStatusReader = (*tasks.Client)(nil)

// Watcher implementations
var _ http.WatcherControl = (*watcher.Watcher)(nil)
var _ metadata.Acknowledger = (*watcher.Watcher)(nil)
var _ watcher.Listener = (*watcher.RescanListener)(nil)

// Lock state
var _ watcher.LockState = (*servicelock.Lock)(nil)
var _ scheduler.LockState = (*servicelock.Lock)(nil)

// =============================================================================
// Progress Tracking
// =============================================================================

// ProgressReporter implementations
var _ tasks.JobTracker = (*jobs.Repository)(nil)
var _ metadata.ProgressReporter = (*jobs.Repository)(nil)
var _ imagecache.ProgressReporter = (*jobs.Repository)(nil)
var _ http.JobProgressReader = (*jobs.Repository)(nil)
