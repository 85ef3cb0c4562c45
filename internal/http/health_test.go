package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/comicshelf/internal/database"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

func setupHealthTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func getHealth(t *testing.T, controller *HealthController) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	router := gin.New()
	router.GET("/health", controller.Status)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when database is connected", func(t *testing.T) {
		db := setupHealthTestDB(t)
		w, response := getHealth(t, NewHealthController(db, nil, nil, "1.0.0"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Contains(t, response.Time, "T")
	})

	t.Run("returns healthy when database is nil", func(t *testing.T) {
		w, response := getHealth(t, NewHealthController(nil, nil, nil, "1.0.0"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "not configured", response.Checks["database"])
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db := setupHealthTestDB(t)
		db.Close()

		w, response := getHealth(t, NewHealthController(db, nil, nil, "1.0.0"))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error")
	})

	t.Run("reports library folders and lock holder", func(t *testing.T) {
		lib := newTestLibrary(t)
		_, err := lib.AddFolder(t.TempDir())
		require.NoError(t, err)

		lock := servicelock.New()
		release, err := lock.TryAcquire(servicelock.Import)
		require.NoError(t, err)
		defer release()

		_, response := getHealth(t, NewHealthController(nil, lib, lock, ""))

		assert.Equal(t, "1", response.Checks["library_folders"])
		assert.True(t, response.Lock.Locked)
		assert.Equal(t, servicelock.Import.String(), response.Lock.Kind)
	})

	t.Run("missing library folder degrades without failing", func(t *testing.T) {
		lib := newTestLibrary(t)
		gone := filepath.Join(t.TempDir(), "share")
		require.NoError(t, os.Mkdir(gone, 0o755))
		_, err := lib.AddFolder(gone)
		require.NoError(t, err)
		require.NoError(t, os.Remove(gone))

		w, response := getHealth(t, NewHealthController(nil, lib, nil, ""))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "degraded", response.Status)
		assert.Equal(t, "1", response.Checks["missing_folders"])
	})

	t.Run("reports watcher state", func(t *testing.T) {
		fw := &fakeWatcher{enabled: true}
		_, response := getHealth(t, NewHealthController(nil, nil, nil, "").WithWatcher(fw))
		assert.Equal(t, "idle", response.Checks["watcher"])

		fw.enabled = false
		_, response = getHealth(t, NewHealthController(nil, nil, nil, "").WithWatcher(fw))
		assert.Equal(t, "disabled", response.Checks["watcher"])
	})

	t.Run("reports open documents", func(t *testing.T) {
		_, response := getHealth(t, NewHealthController(nil, nil, nil, "").WithDocuments(openDocuments(3)))
		assert.Equal(t, "3", response.Checks["open_documents"])

		_, response = getHealth(t, NewHealthController(nil, nil, nil, ""))
		assert.NotContains(t, response.Checks, "open_documents")
	})
}

type openDocuments int

func (n openDocuments) OpenDocuments() int { return int(n) }
