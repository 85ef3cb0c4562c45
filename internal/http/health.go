package http

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/database"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

type HealthResponse struct {
	Status  string             `json:"status"`
	Time    string             `json:"time"`
	Version string             `json:"version,omitempty"`
	Checks  map[string]string  `json:"checks"`
	Lock    servicelock.Status `json:"lock"`
}

const (
	healthHealthy   = "healthy"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"
)

type HealthController struct {
	db      *database.Database
	library LibraryManager
	watcher WatcherControl
	docs    DocumentCounter
	lock    *servicelock.Lock
	version string
}

func NewHealthController(db *database.Database, library LibraryManager, lock *servicelock.Lock, version string) *HealthController {
	return &HealthController{
		db:      db,
		library: library,
		lock:    lock,
		version: version,
	}
}

// WithWatcher adds the folder watcher state to the report.
func (h *HealthController) WithWatcher(w WatcherControl) *HealthController {
	h.watcher = w
	return h
}

// WithDocuments adds the open document count to the report.
func (h *HealthController) WithDocuments(d DocumentCounter) *HealthController {
	h.docs = d
	return h
}

// Status reports 503 when the database is unreachable. A library folder
// that vanished (an unmounted share, say) only degrades the status.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := healthHealthy

	// Check database connectivity
	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			status = healthUnhealthy
		} else if err := sqlDB.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = healthUnhealthy
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.library != nil {
		folders := h.library.Folders()
		checks["library_folders"] = strconv.Itoa(len(folders))
		missing := 0
		for _, folder := range folders {
			if info, err := os.Stat(folder.Path); err != nil || !info.IsDir() {
				missing++
			}
		}
		if missing > 0 {
			checks["missing_folders"] = strconv.Itoa(missing)
			if status == healthHealthy {
				status = healthDegraded
			}
		}
	}

	if h.watcher != nil {
		if h.watcher.Enabled() {
			checks["watcher"] = h.watcher.State().String()
		} else {
			checks["watcher"] = "disabled"
		}
	}

	if h.docs != nil {
		checks["open_documents"] = strconv.Itoa(h.docs.OpenDocuments())
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}
	if h.lock != nil {
		health.Lock = h.lock.Status()
	}

	statusCode := http.StatusOK
	if status == healthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
