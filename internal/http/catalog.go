package http

import (
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CatalogController serves indexed series, chapters and pages.
type CatalogController struct {
	catalog CatalogStore
	pages   PageOpener
}

func NewCatalogController(catalog CatalogStore, pages PageOpener) *CatalogController {
	return &CatalogController{catalog: catalog, pages: pages}
}

// ListSeries handles GET /api/series?search=&limit=&offset=
func (cc *CatalogController) ListSeries(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}
	series, total, err := cc.catalog.ListSeries(c.Query("search"), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list series")
		return
	}
	c.JSON(http.StatusOK, paginated(series, total, limit, offset))
}

// GetSeries handles GET /api/series/:id
func (cc *CatalogController) GetSeries(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	series, err := cc.catalog.SeriesByID(id)
	if err != nil {
		respondDomainError(c, err, "get series")
		return
	}
	c.JSON(http.StatusOK, series)
}

// ListChapters handles GET /api/series/:id/chapters
func (cc *CatalogController) ListChapters(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := cc.catalog.SeriesByID(id); err != nil {
		respondDomainError(c, err, "get series")
		return
	}
	chapters, err := cc.catalog.ChaptersForSeries(id)
	if err != nil {
		respondInternalError(c, err, "list chapters")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chapters, "total": len(chapters)})
}

// GetChapter handles GET /api/chapters/:id
func (cc *CatalogController) GetChapter(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	chapter, err := cc.catalog.ChapterByID(id)
	if err != nil {
		respondDomainError(c, err, "get chapter")
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// GetPage handles GET /api/chapters/:id/pages/:page and streams one page
// image. Pages are numbered from 1.
func (cc *CatalogController) GetPage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("page"))
	if err != nil || n < 1 {
		respondBadRequest(c, "invalid page")
		return
	}

	chapter, err := cc.catalog.ChapterByID(id)
	if err != nil {
		respondDomainError(c, err, "get chapter")
		return
	}
	if chapter.PageCount > 0 && n > chapter.PageCount {
		respondNotFound(c, "page")
		return
	}

	page, err := cc.pages.OpenPage(chapter, n-1)
	if err != nil {
		respondDomainError(c, err, "open page")
		return
	}
	defer page.Body.Close()

	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, page.Size, page.ContentType, page.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": path.Base(page.Name)}),
	})
}
