package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/comicshelf/internal/entities"
)

// formatPatterns maps chapter formats to media type LIKE patterns.
var formatPatterns = map[string]string{
	"zip":  "application/zip",
	"7z":   "application/x-7z-compressed",
	"rar":  "application/x-rar%",
	"pdf":  "application/pdf",
	"epub": "application/epub+zip",
}

// LibraryStats is the response of GET /api/stats.
type LibraryStats struct {
	Series     int64            `json:"series"`
	Chapters   int64            `json:"chapters"`
	Formats    map[string]int64 `json:"formats"`
	LastScanAt string           `json:"last_scan_at,omitempty"`
}

type StatsController struct {
	stats    StatsCounter
	settings SettingsStore
}

func NewStatsController(stats StatsCounter, settings SettingsStore) *StatsController {
	return &StatsController{stats: stats, settings: settings}
}

// GetStats handles GET /api/stats
func (sc *StatsController) GetStats(c *gin.Context) {
	var resp LibraryStats
	var err error

	if resp.Series, err = sc.stats.Count(&entities.Series{}); err != nil {
		respondInternalError(c, err, "count series")
		return
	}
	if resp.Chapters, err = sc.stats.Count(&entities.Chapter{}); err != nil {
		respondInternalError(c, err, "count chapters")
		return
	}

	resp.Formats = make(map[string]int64, len(formatPatterns))
	for format, pattern := range formatPatterns {
		n, err := sc.stats.CountLike(&entities.Chapter{}, "media_type", pattern)
		if err != nil {
			respondInternalError(c, err, "count "+format+" chapters")
			return
		}
		resp.Formats[format] = n
	}

	if sc.settings != nil {
		if at, ok := sc.settings.GetTime(entities.SettingKeyLastScanAt); ok {
			resp.LastScanAt = at.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, resp)
}
