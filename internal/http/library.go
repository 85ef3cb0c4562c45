package http

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// LibraryController manages library folders and manual scans.
type LibraryController struct {
	library   LibraryManager
	forgetter FolderForgetter
	jobs      JobQueue
	lock      *servicelock.Lock
}

func NewLibraryController(lib LibraryManager, forgetter FolderForgetter, jobs JobQueue, lock *servicelock.Lock) *LibraryController {
	return &LibraryController{library: lib, forgetter: forgetter, jobs: jobs, lock: lock}
}

// AddFolderRequest is the request body for adding a library folder.
type AddFolderRequest struct {
	Path string `json:"path" form:"path" binding:"required"`
}

// ScanRequest is the optional request body for a manual scan.
type ScanRequest struct {
	Full bool `json:"full" form:"full"`
}

// ListFolders handles GET /api/library/folders
func (lc *LibraryController) ListFolders(c *gin.Context) {
	folders := lc.library.Folders()
	c.JSON(http.StatusOK, gin.H{"data": folders, "total": len(folders)})
}

// AddFolder handles POST /api/library/folders and queues an incremental scan
// of the new folder.
func (lc *LibraryController) AddFolder(c *gin.Context) {
	var req AddFolderRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		respondBadRequest(c, "path is required")
		return
	}
	if !lc.checkUnlocked(c) {
		return
	}

	folder, err := lc.library.AddFolder(strings.TrimSpace(req.Path))
	switch {
	case errors.Is(err, library.ErrFolderExists), errors.Is(err, library.ErrFolderOverlaps):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "folder_conflict"})
		return
	case errors.Is(err, library.ErrNotADirectory), errors.Is(err, fs.ErrNotExist):
		respondBadRequest(c, err.Error())
		return
	case err != nil:
		respondInternalError(c, err, "add library folder")
		return
	}

	if lc.jobs != nil {
		if _, err := lc.jobs.Enqueue(entities.JobTypeScanLibrary, false); err != nil {
			logging.L().Warn("Failed to queue scan for new folder", logging.String("path", folder.Path), logging.Err(err))
		}
	}
	respondCreated(c, folder)
}

// RemoveFolder handles DELETE /api/library/folders/:hash and drops the
// folder's series and chapters from the catalog.
func (lc *LibraryController) RemoveFolder(c *gin.Context) {
	// Held until the catalog is pruned, so no scan re-indexes the folder in between.
	release, ok := lc.acquire(c, servicelock.Import)
	if !ok {
		return
	}
	defer release()

	folder, err := lc.library.RemoveFolder(c.Param("hash"))
	if err != nil {
		respondDomainError(c, err, "remove library folder")
		return
	}

	data := gin.H{"folder": folder}
	if lc.forgetter != nil {
		result, err := lc.forgetter.Forget(folder)
		if err != nil {
			respondInternalError(c, err, "forget library folder")
			return
		}
		data["chapters_removed"] = result.ChaptersRemoved
		data["series_removed"] = result.SeriesRemoved
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "library folder removed", Data: data})
}

// Scan handles POST /api/library/scan
// Returns 423 while another exclusive job holds the service lock.
func (lc *LibraryController) Scan(c *gin.Context) {
	if lc.jobs == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is not running")
		return
	}
	var req ScanRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBind(&req)
	}
	if c.Query("full") == "true" {
		req.Full = true
	}
	if !lc.checkUnlocked(c) {
		return
	}

	taskID, err := lc.jobs.Enqueue(entities.JobTypeScanLibrary, req.Full)
	if err != nil {
		respondInternalError(c, err, "enqueue library scan")
		return
	}
	respondAccepted(c, "library scan queued", gin.H{"task_id": taskID, "full": req.Full})
}

func (lc *LibraryController) checkUnlocked(c *gin.Context) bool {
	if lc.lock == nil {
		return true
	}
	if err := lc.lock.Check(); err != nil {
		respondLocked(c, err, lc.lock)
		return false
	}
	return true
}

// acquire takes the service lock for kind or responds 423.
func (lc *LibraryController) acquire(c *gin.Context, kind servicelock.Kind) (func(), bool) {
	if lc.lock == nil {
		return func() {}, true
	}
	release, err := lc.lock.TryAcquire(kind)
	if err != nil {
		respondLocked(c, err, lc.lock)
		return nil, false
	}
	return release, true
}
