// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help contributors find
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - CatalogStore: Read-only series and chapter listing (internal/http/config.go)
//   - ingest.Catalog: Series and chapter upserts during scans (internal/ingest/pipeline.go)
//   - metadata.Catalog: Chapter metadata write-back (internal/metadata/updater.go)
//   - CoverCatalog: Accent colors for cached covers (internal/imagecache/warmer.go)
//   - SettingsStore: Runtime settings such as the watcher toggle (internal/http/config.go)
//
// ## Reading Interfaces
//
//   - archive.Iterator: Cursor over the entries of one archive (internal/archive/iterator.go)
//   - render.Source: Decoded paged document such as PDF or EPUB (internal/render/render.go)
//   - PageSource: First page of a chapter for thumbnails (internal/imagecache/cache.go)
//   - PageOpener: Single page streaming over HTTP (internal/http/config.go)
//
// ## Background Work Interfaces
//
//   - RescanRequester: Queues a library rescan (internal/watcher/rescan.go, internal/scheduler/rescan.go)
//   - watcher.Listener: Receives debounced folder changes (internal/watcher/watcher.go)
//   - JobTracker / ProgressReporter: Persistent job progress (internal/tasks/jobs.go)
//
// # Adding a New Archive Format
//
// To read chapters from a new container format:
//
//  1. Implement archive.Iterator in internal/archive/
//
//     type tarIterator struct {
//         entries []Entry
//         pos     int
//     }
//
//     func (it *tarIterator) Open(path string) error
//     func (it *tarIterator) Reset() error
//     func (it *tarIterator) Next() bool
//
//  2. Register it under its media type:
//
//     r.Register("application/x-tar", func() Iterator { return newTarIterator() })
//
//  3. Add the extension to ingest.IsChapterFile so scans and the watcher pick it up
//
// # Adding a New Database Domain
//
// To add a new data domain (e.g., reading history):
//
//  1. Create sub-package: internal/database/history/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Add the entity to the AutoMigrate list in database.NewDatabase
//
//  4. Add compile-time check to checks.go
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
