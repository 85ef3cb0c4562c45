package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"gorm.io/gorm"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// JobsController handles exclusive job status and manual runs.
type JobsController struct {
	queue    JobQueue
	progress map[entities.JobType]JobProgressReader
	tasks    TaskStatusReader
	lock     *servicelock.Lock
}

func NewJobsController(queue JobQueue, progress map[entities.JobType]JobProgressReader, tasks TaskStatusReader, lock *servicelock.Lock) *JobsController {
	return &JobsController{queue: queue, progress: progress, tasks: tasks, lock: lock}
}

// JobStatusResponse combines the last recorded progress with the lock state.
type JobStatusResponse struct {
	Type     entities.JobType      `json:"type"`
	Running  bool                  `json:"running"`
	Progress *entities.JobProgress `json:"progress,omitempty"`
	Lock     servicelock.Status    `json:"lock"`
}

// RunJobRequest is the optional request body for running a job.
type RunJobRequest struct {
	// Full only applies to scan_library.
	Full bool `json:"full" form:"full"`
}

func (jc *JobsController) jobType(c *gin.Context) (entities.JobType, bool) {
	jobType := entities.JobType(c.Param("type"))
	if !jobType.Valid() {
		respondBadRequest(c, "unknown job type: "+string(jobType))
		return "", false
	}
	return jobType, true
}

// Status handles GET /api/jobs/:type/status
func (jc *JobsController) Status(c *gin.Context) {
	jobType, ok := jc.jobType(c)
	if !ok {
		return
	}

	resp := JobStatusResponse{Type: jobType}
	if jc.lock != nil {
		resp.Lock = jc.lock.Status()
	}
	if reader, ok := jc.progress[jobType]; ok {
		progress, err := reader.GetProgress()
		switch {
		case err == nil:
			resp.Progress = progress
			resp.Running = progress.Status == entities.JobStatusRunning
		case !errors.Is(err, gorm.ErrRecordNotFound):
			respondInternalError(c, err, "get job progress")
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Run handles POST /api/jobs/:type/run
// Returns 423 while any exclusive job holds the service lock.
func (jc *JobsController) Run(c *gin.Context) {
	jobType, ok := jc.jobType(c)
	if !ok {
		return
	}

	var req RunJobRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBind(&req)
	}

	if jc.lock != nil {
		if err := jc.lock.Check(); err != nil {
			respondLocked(c, err, jc.lock)
			return
		}
	}

	taskID, err := jc.queue.Enqueue(jobType, req.Full)
	if err != nil {
		respondInternalError(c, err, "enqueue "+string(jobType))
		return
	}
	respondAccepted(c, "task enqueued", gin.H{"task_id": taskID, "type": jobType})
}

// TaskStatus handles GET /api/tasks/:id
// Returns the queue status of a specific task.
func (jc *JobsController) TaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := jc.tasks.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "get task status")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
