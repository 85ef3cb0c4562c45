package tasks

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/metadata"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// UpdateMetadataTask syncs chapter metadata with embedded ComicInfo.xml.
type UpdateMetadataTask struct{}

// Config returns the queue configuration for metadata updates.
func (t UpdateMetadataTask) Config() backlite.QueueConfig {
	return currentConfig().queueConfig(entities.JobTypeUpdateMetadata)
}

// UpdateMetadataProcessor creates a processor function for UpdateMetadataTask.
func UpdateMetadataProcessor(lock *servicelock.Lock, updater *metadata.Updater) backlite.QueueProcessor[UpdateMetadataTask] {
	return func(ctx context.Context, task UpdateMetadataTask) error {
		if updater == nil {
			return fmt.Errorf("metadata updater not configured")
		}
		return runExclusive(ctx, lock, servicelock.MetadataUpdate, entities.JobTypeUpdateMetadata,
			func(ctx context.Context) error {
				_, err := updater.UpdateAll(ctx)
				return err
			})
	}
}

// NewUpdateMetadataQueue creates a backlite queue for metadata updates.
func NewUpdateMetadataQueue(lock *servicelock.Lock, updater *metadata.Updater) backlite.Queue {
	return backlite.NewQueue(UpdateMetadataProcessor(lock, updater))
}
