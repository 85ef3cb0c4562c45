package entities

import (
	"time"
)

type JobType string

const (
	JobTypeScanLibrary    JobType = "scan_library"
	JobTypeUpdateMetadata JobType = "update_metadata"
	JobTypeCacheCovers    JobType = "cache_covers"
)

// JobTypes lists every exclusive job.
var JobTypes = []JobType{JobTypeScanLibrary, JobTypeUpdateMetadata, JobTypeCacheCovers}

func (t JobType) Valid() bool {
	for _, known := range JobTypes {
		if t == known {
			return true
		}
	}
	return false
}

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

type JobProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobType     JobType    `gorm:"size:50;uniqueIndex" json:"job_type"`
	Status      JobStatus  `gorm:"size:20" json:"status"`
	TotalItems  int        `json:"total_items"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	CurrentItem string     `gorm:"size:2048" json:"current_item,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (JobProgress) TableName() string {
	return "job_progress"
}
