// Package jobs provides database operations for exclusive job progress.
//
// Each job type owns one progress row that is reset whenever the job starts.
//
// # Usage
//
//	repo := jobs.NewRepository(db, entities.JobTypeScanLibrary)
//	err := repo.StartJob(100)
package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/comicshelf/internal/entities"
)

// staleAfter is how long a running job may go without updates before it is
// considered interrupted.
const staleAfter = 10 * time.Minute

// Repository handles progress rows for one job type.
type Repository struct {
	db      *gorm.DB
	jobType entities.JobType
}

func NewRepository(db *gorm.DB, jobType entities.JobType) *Repository {
	return &Repository{db: db, jobType: jobType}
}

func (r *Repository) JobType() entities.JobType {
	return r.jobType
}

// GetProgress retrieves the progress row for the job type.
func (r *Repository) GetProgress() (*entities.JobProgress, error) {
	var progress entities.JobProgress
	err := r.db.Where("job_type = ?", r.jobType).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// StartJob creates or resets the progress row.
func (r *Repository) StartJob(totalItems int) error {
	var progress entities.JobProgress
	result := r.db.Where("job_type = ?", r.jobType).First(&progress)

	now := time.Now()
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		progress = entities.JobProgress{
			JobType:    r.jobType,
			Status:     entities.JobStatusRunning,
			TotalItems: totalItems,
			StartedAt:  now,
			UpdatedAt:  now,
		}
		return r.db.Create(&progress).Error
	} else if result.Error != nil {
		return result.Error
	}

	progress.Status = entities.JobStatusRunning
	progress.TotalItems = totalItems
	progress.Processed = 0
	progress.Succeeded = 0
	progress.Failed = 0
	progress.Skipped = 0
	progress.CurrentItem = ""
	progress.Error = ""
	progress.StartedAt = now
	progress.UpdatedAt = now
	progress.CompletedAt = nil

	return r.db.Save(&progress).Error
}

// SetTotal updates the item count once it is known.
func (r *Repository) SetTotal(totalItems int) error {
	return r.db.Model(&entities.JobProgress{}).
		Where("job_type = ?", r.jobType).
		Updates(map[string]any{"total_items": totalItems, "updated_at": time.Now()}).Error
}

// UpdateProgress updates the counters of a running job.
func (r *Repository) UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error {
	return r.db.Model(&entities.JobProgress{}).
		Where("job_type = ?", r.jobType).
		Updates(map[string]any{
			"processed":    processed,
			"succeeded":    succeeded,
			"failed":       failed,
			"skipped":      skipped,
			"current_item": currentItem,
			"updated_at":   time.Now(),
		}).Error
}

// CompleteJob marks the job as completed or failed.
func (r *Repository) CompleteJob(succeeded bool, errorMsg string) error {
	now := time.Now()
	status := entities.JobStatusCompleted
	if !succeeded {
		status = entities.JobStatusFailed
	}

	updates := map[string]any{
		"status":       status,
		"current_item": "",
		"updated_at":   now,
		"completed_at": now,
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	return r.db.Model(&entities.JobProgress{}).
		Where("job_type = ?", r.jobType).
		Updates(updates).Error
}

// IsJobRunning reports whether the job is in progress. A running row that has
// not been updated for a while is marked failed.
func (r *Repository) IsJobRunning() (bool, error) {
	var progress entities.JobProgress
	err := r.db.Where("job_type = ? AND status = ?", r.jobType, entities.JobStatusRunning).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if progress.UpdatedAt.Before(time.Now().Add(-staleAfter)) {
		_ = r.CompleteJob(false, "job was interrupted")
		return false, nil
	}
	return true, nil
}
