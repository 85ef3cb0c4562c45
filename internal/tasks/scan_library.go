package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/ingest"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// LibraryScanner indexes library folders.
type LibraryScanner interface {
	Scan(ctx context.Context, folders []library.Folder, full bool, progress ingest.Progress) (ingest.Result, error)
}

// SettingsWriter records scan bookkeeping.
type SettingsWriter interface {
	SetTime(key string, t time.Time) error
}

// ScanLibraryTask imports the library. Full re-reads every chapter file.
type ScanLibraryTask struct {
	Full bool `json:"full"`
}

// Config returns the queue configuration for library scans.
func (t ScanLibraryTask) Config() backlite.QueueConfig {
	return currentConfig().queueConfig(entities.JobTypeScanLibrary)
}

// ScanLibraryDeps groups what the scan processor needs.
type ScanLibraryDeps struct {
	Library  *library.Library
	Scanner  LibraryScanner
	Progress JobTracker
	Settings SettingsWriter
}

// ScanLibraryProcessor creates a processor function for ScanLibraryTask.
func ScanLibraryProcessor(deps ScanLibraryDeps) backlite.QueueProcessor[ScanLibraryTask] {
	return func(ctx context.Context, task ScanLibraryTask) error {
		if deps.Library == nil || deps.Scanner == nil {
			return fmt.Errorf("library scanner not configured")
		}
		return runExclusive(ctx, deps.Library.ServiceLock(), servicelock.Import, entities.JobTypeScanLibrary,
			func(ctx context.Context) error {
				return scanLibrary(ctx, deps, task.Full)
			})
	}
}

func scanLibrary(ctx context.Context, deps ScanLibraryDeps, full bool) error {
	if deps.Progress != nil {
		if err := deps.Progress.StartJob(0); err != nil {
			return fmt.Errorf("start job progress: %w", err)
		}
	}

	var progress ingest.Progress
	if deps.Progress != nil {
		totalSet := false
		progress = func(processed, total int, current string) {
			if !totalSet {
				_ = deps.Progress.SetTotal(total)
				totalSet = true
			}
			_ = deps.Progress.UpdateProgress(processed, processed, 0, 0, current)
		}
	}

	result, err := deps.Scanner.Scan(ctx, deps.Library.Folders(), full, progress)
	if err != nil {
		if deps.Progress != nil {
			_ = deps.Progress.CompleteJob(false, err.Error())
		}
		return err
	}

	if deps.Progress != nil {
		msg := ""
		if result.Failed > 0 {
			msg = fmt.Sprintf("%d chapters failed", result.Failed)
		}
		_ = deps.Progress.CompleteJob(true, msg)
	}
	if deps.Settings != nil {
		_ = deps.Settings.SetTime(entities.SettingKeyLastScanAt, time.Now())
	}

	logging.L().Info("Library scan complete",
		logging.Bool("full", full),
		logging.Int("added", result.ChaptersAdded),
		logging.Int("updated", result.ChaptersUpdated),
		logging.Int("removed", result.ChaptersRemoved),
		logging.Int("failed", result.Failed),
	)
	return nil
}

// NewScanLibraryQueue creates a backlite queue for library scans.
func NewScanLibraryQueue(deps ScanLibraryDeps) backlite.Queue {
	return backlite.NewQueue(ScanLibraryProcessor(deps))
}
