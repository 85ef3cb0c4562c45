package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metrics"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// JobTracker records the progress of one exclusive job type.
type JobTracker interface {
	StartJob(totalItems int) error
	SetTotal(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteJob(succeeded bool, errorMsg string) error
}

// runExclusive runs fn while holding the service lock for kind.
func runExclusive(ctx context.Context, lock *servicelock.Lock, kind servicelock.Kind, jobType entities.JobType, fn func(ctx context.Context) error) error {
	release, err := lock.TryAcquire(kind)
	if err != nil {
		logging.L().Info("Job postponed, service is locked",
			logging.String("job", string(jobType)), logging.Err(err))
		return err
	}
	defer release()

	start := time.Now()
	err = fn(ctx)
	metrics.RecordJobRun(string(jobType), time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("%s: %w", jobType, err)
	}
	return nil
}

// Jobs enqueues the exclusive jobs.
type Jobs struct {
	client *Client
}

func NewJobs(client *Client) *Jobs {
	return &Jobs{client: client}
}

// TaskFor returns the task that runs jobType.
func TaskFor(jobType entities.JobType, full bool) (backlite.Task, error) {
	switch jobType {
	case entities.JobTypeScanLibrary:
		return ScanLibraryTask{Full: full}, nil
	case entities.JobTypeUpdateMetadata:
		return UpdateMetadataTask{}, nil
	case entities.JobTypeCacheCovers:
		return CacheCoversTask{}, nil
	default:
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
}

// Enqueue schedules jobType and returns the task id.
func (j *Jobs) Enqueue(jobType entities.JobType, full bool) (string, error) {
	task, err := TaskFor(jobType, full)
	if err != nil {
		return "", err
	}
	ids, err := j.client.Add(task).Save()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	logging.L().Info("Job enqueued", logging.String("job", string(jobType)), logging.Bool("full", full))
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// RequestRescan queues a library scan.
func (j *Jobs) RequestRescan(_ context.Context, full bool) error {
	_, err := j.Enqueue(entities.JobTypeScanLibrary, full)
	return err
}
