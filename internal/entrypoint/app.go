package entrypoint

import (
	"fmt"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/mrlokans/comicshelf/internal/archive"
	"github.com/mrlokans/comicshelf/internal/config"
	"github.com/mrlokans/comicshelf/internal/database"
	"github.com/mrlokans/comicshelf/internal/database/catalog"
	"github.com/mrlokans/comicshelf/internal/database/jobs"
	"github.com/mrlokans/comicshelf/internal/database/settings"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/ingest"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metadata"
	"github.com/mrlokans/comicshelf/internal/reader"
	"github.com/mrlokans/comicshelf/internal/render"
)

// App holds the components shared by the server and the one-shot commands.
type App struct {
	DB       *database.Database
	Catalog  *catalog.Repository
	Settings *settings.Repository
	Progress map[entities.JobType]*jobs.Repository

	Library  *library.Library
	Archives *archive.Registry
	Docs     *render.Factory
	Reader   *reader.Reader
	Images   *imagecache.Cache

	Pipeline *ingest.Pipeline
	Updater  *metadata.Updater
	Warmer   *imagecache.Warmer
}

// Build opens the database and the library and wires the catalog pipeline.
func Build(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	lib, err := library.Open(library.NewStore(cfg.Library.FoldersConfigPath), nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load library folders: %w", err)
	}

	images, err := imagecache.New(cfg.Library.CacheDir, imagecache.Options{
		Width:  cfg.Thumbnail.Width,
		Height: cfg.Thumbnail.Height,
		Format: cfg.Thumbnail.Format,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize image cache: %w", err)
	}

	app := &App{
		DB:       db,
		Catalog:  catalog.NewRepository(db.DB),
		Settings: settings.NewRepository(db.DB),
		Progress: make(map[entities.JobType]*jobs.Repository, len(entities.JobTypes)),
		Library:  lib,
		Archives: archive.DefaultRegistry(archiveOptions(cfg.Library.ArchiveFallbackEncoding)...),
		Docs: render.NewFactory(render.Options{
			MaxEntries: cfg.DocumentCache.MaxEntries,
			TTL:        cfg.DocumentCache.TTL,
		}),
		Images: images,
	}
	for _, jobType := range entities.JobTypes {
		app.Progress[jobType] = jobs.NewRepository(db.DB, jobType)
	}

	app.Reader = reader.New(app.Archives, app.Docs, app.Catalog)
	images.SetSources(app.Reader, reader.NewSeriesCovers(app.Catalog, app.Reader))

	app.Pipeline = ingest.NewPipeline(app.Catalog, app.Reader)
	app.Pipeline.OnRemoved = app.dropCached
	app.Pipeline.OnUpdated = app.dropCached

	app.Updater = metadata.NewUpdater(app.Catalog, app.Archives)
	app.Updater.SetProgressReporter(app.Progress[entities.JobTypeUpdateMetadata])

	app.Warmer = imagecache.NewWarmer(images, app.Catalog)
	app.Warmer.SetProgressReporter(app.Progress[entities.JobTypeCacheCovers])

	return app, nil
}

// dropCached discards the thumbnails and open document of a chapter whose
// file changed or disappeared.
func (a *App) dropCached(chapter entities.Chapter) {
	if err := a.Images.Remove(chapter.Hash); err != nil {
		logging.L().Warn("Failed to drop cached images",
			logging.String("chapter", chapter.Path), logging.Err(err))
	}
	a.Docs.Forget(chapter.Path)
}

// Close purges open documents and closes the database.
func (a *App) Close() error {
	a.Docs.Purge()
	return a.DB.Close()
}

func archiveOptions(encodingName string) []archive.Option {
	if encodingName == "" {
		return nil
	}
	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		logging.L().Warn("Unknown archive fallback encoding, ignoring",
			logging.String("encoding", encodingName), logging.Err(err))
		return nil
	}
	return []archive.Option{archive.WithFallbackEncoding(enc)}
}
