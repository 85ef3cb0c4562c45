package http

import (
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/imagecache"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// ThumbnailsController serves series and chapter thumbnails, generating
// them on a cache miss.
type ThumbnailsController struct {
	cache   ThumbnailCache
	catalog CatalogStore
	lock    *servicelock.Lock
}

func NewThumbnailsController(cache ThumbnailCache, catalog CatalogStore, lock *servicelock.Lock) *ThumbnailsController {
	return &ThumbnailsController{cache: cache, catalog: catalog, lock: lock}
}

// SeriesThumbnail handles GET /api/series/:id/thumbnail
func (tc *ThumbnailsController) SeriesThumbnail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	series, err := tc.catalog.SeriesByID(id)
	if err != nil {
		respondDomainError(c, err, "get series")
		return
	}
	tc.serve(c, series.Hash)
}

// ChapterThumbnail handles GET /api/chapters/:id/thumbnail
func (tc *ThumbnailsController) ChapterThumbnail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chapter, err := tc.catalog.ChapterByID(id)
	if err != nil {
		respondDomainError(c, err, "get chapter")
		return
	}
	tc.serve(c, chapter.Hash)
}

func (tc *ThumbnailsController) serve(c *gin.Context, hash string) {
	if !tc.cache.IsInCache(hash, imagecache.VariantThumbnail) {
		if err := tc.cache.SaveImageIntoCache(c.Request.Context(), hash); err != nil {
			respondDomainError(c, err, "generate thumbnail")
			return
		}
	}
	data, err := tc.cache.ImageBytes(hash, imagecache.VariantThumbnail)
	if err != nil {
		respondDomainError(c, err, "read thumbnail")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

// ClearCache handles DELETE /api/cache/images
// Refused while cover caching or any other exclusive job is running.
func (tc *ThumbnailsController) ClearCache(c *gin.Context) {
	if tc.lock != nil {
		if err := tc.lock.Check(); err != nil {
			respondLocked(c, err, tc.lock)
			return
		}
	}
	if err := tc.cache.Clear(); err != nil {
		respondInternalError(c, err, "clear image cache")
		return
	}
	respondSuccess(c, "image cache cleared")
}
