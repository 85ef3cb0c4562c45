package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/mrlokans/comicshelf/internal/archive"
	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/render"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseIDParam_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "123"}}

	id, ok := parseIDParam(c, "id")

	assert.True(t, ok)
	assert.Equal(t, uint(123), id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam_Invalid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	id, ok := parseIDParam(c, "id")

	assert.False(t, ok)
	assert.Equal(t, uint(0), id)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid id")
}

func TestParseIDParam_Negative(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "-1"}}

	id, ok := parseIDParam(c, "id")

	assert.False(t, ok)
	assert.Equal(t, uint(0), id)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOK     bool
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", true, defaultPageLimit, 0},
		{"explicit", "?limit=10&offset=20", true, 10, 20},
		{"clamped", "?limit=100000", true, maxPageLimit, 0},
		{"zero limit", "?limit=0", false, 0, 0},
		{"negative offset", "?offset=-5", false, 0, 0},
		{"garbage", "?limit=ten", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)

			limit, offset, ok := parsePagination(c)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantLimit, limit)
				assert.Equal(t, tt.wantOffset, offset)
			} else {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestPaginated(t *testing.T) {
	resp := paginated([]int{1, 2}, 5, 2, 2)

	assert.True(t, resp.HasMore)
	assert.Equal(t, 3, resp.TotalPages)

	resp = paginated([]int{5}, 5, 2, 4)
	assert.False(t, resp.HasMore)
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"service locked", &servicelock.LockedError{Holder: servicelock.Import}, http.StatusLocked},
		{"unsupported archive", fmt.Errorf("open: %w", archive.ErrUnsupportedMediaType), http.StatusUnsupportedMediaType},
		{"unsupported document", render.ErrUnsupported, http.StatusUnsupportedMediaType},
		{"missing entry", fmt.Errorf("page 9: %w", archive.ErrEntryNotFound), http.StatusNotFound},
		{"page out of range", render.ErrPageOutOfRange, http.StatusNotFound},
		{"no cover", imagecache.ErrNoCoverFound, http.StatusNotFound},
		{"missing record", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"write-back", fmt.Errorf("%w: disk full", archive.ErrWriteBack), http.StatusInternalServerError},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)

			respondDomainError(c, tt.err, "test")

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRespondInternalError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	respondInternalError(c, errors.New("secret path /srv/x"), "test")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}
