package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/config"
	"github.com/mrlokans/comicshelf/internal/entities"
	http_controllers "github.com/mrlokans/comicshelf/internal/http"
	"github.com/mrlokans/comicshelf/internal/ingest"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/scheduler"
	"github.com/mrlokans/comicshelf/internal/tasks"
	"github.com/mrlokans/comicshelf/internal/watcher"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		logging.L().Info("Starting server", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Fatal("listen", logging.Err(err))
		}
	}()

	// Wait for SIGINT or SIGTERM, then shut down within the configured timeout.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.L().Info("Shutting down server", logging.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener so in-flight jobs can finish.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.L().Error("Server shutdown", logging.Err(err))
	}

	logging.L().Info("Server exiting")
}

func Run(cfg *config.Config, version string) {
	logging.L().Info("Starting comicshelf", logging.String("version", version))

	app, err := Build(cfg)
	if err != nil {
		logging.L().Fatal("Failed to initialize", logging.Err(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.L().Error("Error closing database", logging.Err(err))
		}
	}()

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	// Idle document sweeper
	go app.Docs.Run(bgCtx)

	lock := app.Library.ServiceLock()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var jobQueue *tasks.Jobs
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ScanTimeout:       cfg.Tasks.ScanTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			logging.L().Fatal("Failed to initialize task queue", logging.Err(err))
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logging.L().Error("Error closing task client", logging.Err(err))
			}
		}()

		taskClient.Register(
			tasks.NewScanLibraryQueue(tasks.ScanLibraryDeps{
				Library:  app.Library,
				Scanner:  app.Pipeline,
				Progress: app.Progress[entities.JobTypeScanLibrary],
				Settings: app.Settings,
			}),
			tasks.NewUpdateMetadataQueue(lock, app.Updater),
			tasks.NewCacheCoversQueue(lock, app.Warmer),
		)
		jobQueue = tasks.NewJobs(taskClient)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	} else {
		logging.L().Warn("Task queue disabled: scans, metadata updates and the watcher are unavailable")
	}

	// Folder watcher
	var folderWatcher *watcher.Watcher
	if jobQueue != nil {
		folderWatcher = watcher.New(watcher.Options{
			Folders: app.Library.Paths,
			Listener: &watcher.RescanListener{
				Lock:      lock,
				Requester: jobQueue,
				IgnoreModify: func() bool {
					return app.Settings.GetBool(entities.SettingKeyWatcherIgnoreModify, cfg.Watcher.IgnoreModify)
				},
			},
			PollInterval: cfg.Watcher.PollInterval,
			Debounce:     cfg.Watcher.Debounce,
			Include:      ingest.IsChapterFile,
		})
		folderWatcher.SetEnabled(app.Settings.GetBool(entities.SettingKeyWatcherEnabled, cfg.Watcher.Enabled))
		app.Updater.SetAcknowledger(folderWatcher)
		app.Library.OnFoldersChanged(func([]library.Folder) {
			folderWatcher.Restart()
		})
		go folderWatcher.Run(bgCtx)

		if _, err := jobQueue.Enqueue(entities.JobTypeScanLibrary, false); err != nil {
			logging.L().Error("Failed to queue startup scan", logging.Err(err))
		}
	}

	// Scheduled full rescan
	var rescanScheduler *scheduler.RescanScheduler
	if cfg.Rescan.Enabled && jobQueue != nil {
		rescanScheduler = scheduler.NewRescanScheduler(jobQueue, lock, cfg.Rescan.Schedule)
		if err := rescanScheduler.Start(bgCtx); err != nil {
			logging.L().Error("Failed to start rescan scheduler", logging.Err(err))
			rescanScheduler = nil
		}
	}

	progress := make(map[entities.JobType]http_controllers.JobProgressReader, len(app.Progress))
	for jobType, repo := range app.Progress {
		progress[jobType] = repo
	}

	routerCfg := http_controllers.RouterConfig{
		Database:                   app.DB,
		Catalog:                    app.Catalog,
		Stats:                      app.DB,
		Pages:                      app.Reader,
		Thumbnails:                 app.Images,
		Documents:                  app.Docs,
		Library:                    app.Library,
		Forgetter:                  app.Pipeline,
		Lock:                       lock,
		JobProgress:                progress,
		Settings:                   app.Settings,
		WatcherIgnoreModifyDefault: cfg.Watcher.IgnoreModify,
		ReadOnly:                   cfg.HTTP.ReadOnly,
		Version:                    version,
	}
	// Typed nils would pass the router's nil checks.
	if jobQueue != nil {
		routerCfg.Jobs = jobQueue
		routerCfg.TaskStatus = taskClient
	}
	if folderWatcher != nil {
		routerCfg.Watcher = folderWatcher
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		cancelBackground()
		if rescanScheduler != nil {
			rescanScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		app.Docs.Purge()
		if err := logging.Sync(); err != nil {
			logging.L().Debug("Log sync", logging.Err(err))
		}
	}

	Serve(router, cfg, onShutdown)
}
