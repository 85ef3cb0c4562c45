package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metrics"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional dependencies left nil in cfg disable their routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(logging.GinMiddleware())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.Use(NewReadOnlyMiddleware(cfg.ReadOnly).Handler())

	health := NewHealthController(cfg.Database, cfg.Library, cfg.Lock, cfg.Version)
	if cfg.Watcher != nil {
		health.WithWatcher(cfg.Watcher)
	}
	if cfg.Documents != nil {
		health.WithDocuments(cfg.Documents)
	}

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	// Catalog endpoints
	if cfg.Catalog != nil {
		catalogController := NewCatalogController(cfg.Catalog, cfg.Pages)
		api.GET("/series", catalogController.ListSeries)
		api.GET("/series/:id", catalogController.GetSeries)
		api.GET("/series/:id/chapters", catalogController.ListChapters)
		api.GET("/chapters/:id", catalogController.GetChapter)
		if cfg.Pages != nil {
			api.GET("/chapters/:id/pages/:page", catalogController.GetPage)
		}
	}

	// Thumbnail endpoints
	if cfg.Catalog != nil && cfg.Thumbnails != nil {
		thumbnailsController := NewThumbnailsController(cfg.Thumbnails, cfg.Catalog, cfg.Lock)
		api.GET("/series/:id/thumbnail", thumbnailsController.SeriesThumbnail)
		api.GET("/chapters/:id/thumbnail", thumbnailsController.ChapterThumbnail)
		api.DELETE("/cache/images", thumbnailsController.ClearCache)
	}

	if cfg.Stats != nil {
		statsController := NewStatsController(cfg.Stats, cfg.Settings)
		api.GET("/stats", statsController.GetStats)
	}

	// Library management endpoints
	if cfg.Library != nil {
		libraryController := NewLibraryController(cfg.Library, cfg.Forgetter, cfg.Jobs, cfg.Lock)
		api.GET("/library/folders", libraryController.ListFolders)
		api.POST("/library/folders", libraryController.AddFolder)
		api.DELETE("/library/folders/:hash", libraryController.RemoveFolder)
		api.POST("/library/scan", libraryController.Scan)
	}

	// Watcher settings endpoints
	if cfg.Watcher != nil && cfg.Settings != nil {
		settingsController := NewSettingsController(cfg.Watcher, cfg.Settings, cfg.WatcherIgnoreModifyDefault)
		api.GET("/settings/watcher", settingsController.GetWatcher)
		api.PUT("/settings/watcher", settingsController.UpdateWatcher)
	}

	// Job endpoints
	if cfg.Jobs != nil {
		jobsController := NewJobsController(cfg.Jobs, cfg.JobProgress, cfg.TaskStatus, cfg.Lock)
		api.GET("/jobs/:type/status", jobsController.Status)
		api.POST("/jobs/:type/run", jobsController.Run)
		if cfg.TaskStatus != nil {
			api.GET("/tasks/:id", jobsController.TaskStatus)
		}
	}

	return router
}
