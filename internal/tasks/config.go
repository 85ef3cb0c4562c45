package tasks

import (
	"sync/atomic"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/comicshelf/internal/entities"
)

// Config holds configuration for the task queue and the exclusive jobs it runs.
type Config struct {
	// Workers is the number of concurrent task workers. Exclusive jobs never
	// overlap, so extra workers only pick up postponed jobs sooner.
	Workers int

	// MaxRetries is how often a job is retried after it failed or found the
	// service lock taken. Zero disables retries.
	MaxRetries int
	RetryDelay time.Duration

	// TaskTimeout caps metadata updates and cover caching.
	TaskTimeout time.Duration
	// ScanTimeout caps library scans.
	ScanTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to queue.
	ReleaseAfter    time.Duration
	CleanupInterval time.Duration

	// RetentionDuration is how long finished tasks stay visible to status lookups.
	RetentionDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        time.Minute,
		TaskTimeout:       time.Hour,
		ScanTimeout:       2 * time.Hour,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// withDefaults replaces unset or invalid fields with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = d.ScanTimeout
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = d.ReleaseAfter
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.RetentionDuration <= 0 {
		c.RetentionDuration = d.RetentionDuration
	}
	return c
}

// queueConfig builds the backlite configuration of one exclusive job queue.
// Failed task payloads are kept for inspection; successful ones are dropped.
func (c Config) queueConfig(jobType entities.JobType) backlite.QueueConfig {
	timeout := c.TaskTimeout
	if jobType == entities.JobTypeScanLibrary {
		timeout = c.ScanTimeout
	}
	return backlite.QueueConfig{
		Name:        string(jobType),
		MaxAttempts: c.MaxRetries + 1,
		Backoff:     c.RetryDelay,
		Timeout:     timeout,
		Retention: &backlite.Retention{
			Duration:   c.RetentionDuration,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// backlite asks each task type for its queue configuration without any
// client at hand, so NewClient publishes the active settings here.
var activeConfig atomic.Pointer[Config]

func currentConfig() Config {
	if c := activeConfig.Load(); c != nil {
		return *c
	}
	return DefaultConfig()
}
