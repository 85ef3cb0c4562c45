package tasks

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// CacheCoversTask generates every missing thumbnail and accent color.
type CacheCoversTask struct{}

// Config returns the queue configuration for bulk cover caching.
func (t CacheCoversTask) Config() backlite.QueueConfig {
	return currentConfig().queueConfig(entities.JobTypeCacheCovers)
}

// CacheCoversProcessor creates a processor function for CacheCoversTask.
func CacheCoversProcessor(lock *servicelock.Lock, warmer *imagecache.Warmer) backlite.QueueProcessor[CacheCoversTask] {
	return func(ctx context.Context, task CacheCoversTask) error {
		if warmer == nil {
			return fmt.Errorf("cover warmer not configured")
		}
		return runExclusive(ctx, lock, servicelock.CoverCaching, entities.JobTypeCacheCovers,
			func(ctx context.Context) error {
				_, err := warmer.WarmAll(ctx)
				return err
			})
	}
}

// NewCacheCoversQueue creates a backlite queue for bulk cover caching.
func NewCacheCoversQueue(lock *servicelock.Lock, warmer *imagecache.Warmer) backlite.Queue {
	return backlite.NewQueue(CacheCoversProcessor(lock, warmer))
}
