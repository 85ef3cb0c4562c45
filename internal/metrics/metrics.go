// Package metrics provides Prometheus metrics for the comicshelf server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Document cache metrics, labelled by cache name (pdf, epub)
	documentCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_document_cache_requests_total",
			Help: "Document cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	documentCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_document_cache_evictions_total",
			Help: "Documents released by the document cache",
		},
		[]string{"cache", "reason"},
	)

	documentCacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "comicshelf_document_cache_entries",
			Help: "Number of documents currently held open",
		},
		[]string{"cache"},
	)

	// Image cache metrics
	imageCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_image_cache_requests_total",
			Help: "Image cache reads by variant and result",
		},
		[]string{"variant", "result"},
	)

	thumbnailsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comicshelf_thumbnails_generated_total",
			Help: "Thumbnails written to the image cache",
		},
	)

	// Watcher metrics
	watcherDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_watcher_dispatches_total",
			Help: "Change sets handed to the watcher listener by outcome",
		},
		[]string{"outcome"},
	)

	watcherPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comicshelf_watcher_pending_changes",
			Help: "Changes waiting for the next dispatch",
		},
	)

	// Archive metrics
	archiveWriteBacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_archive_writebacks_total",
			Help: "Archive write-back attempts by result",
		},
		[]string{"result"},
	)

	// Job metrics
	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicshelf_job_runs_total",
			Help: "Exclusive background job runs by kind and result",
		},
		[]string{"kind", "result"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comicshelf_job_duration_seconds",
			Help:    "Exclusive background job duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"kind"},
	)
)

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDocumentCacheHit records a document cache hit.
func RecordDocumentCacheHit(cache string) {
	documentCacheRequests.WithLabelValues(cache, "hit").Inc()
}

// RecordDocumentCacheMiss records a document cache miss (a load).
func RecordDocumentCacheMiss(cache string) {
	documentCacheRequests.WithLabelValues(cache, "miss").Inc()
}

// RecordDocumentEviction records a released document.
func RecordDocumentEviction(cache, reason string) {
	documentCacheEvictions.WithLabelValues(cache, reason).Inc()
}

// SetDocumentCacheSize sets the open document gauge.
func SetDocumentCacheSize(cache string, n int) {
	documentCacheSize.WithLabelValues(cache).Set(float64(n))
}

// RecordImageCacheRead records an image cache lookup.
func RecordImageCacheRead(variant string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	imageCacheRequests.WithLabelValues(variant, result).Inc()
}

// RecordThumbnailGenerated counts a freshly written thumbnail.
func RecordThumbnailGenerated() {
	thumbnailsGenerated.Inc()
}

// RecordWatcherDispatch records a dispatch outcome (rescan, locked, dropped).
func RecordWatcherDispatch(outcome string) {
	watcherDispatches.WithLabelValues(outcome).Inc()
}

// SetWatcherPending sets the pending change gauge.
func SetWatcherPending(n int) {
	watcherPending.Set(float64(n))
}

// RecordWriteBack records an archive write-back result.
func RecordWriteBack(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	archiveWriteBacks.WithLabelValues(result).Inc()
}

// RecordJobRun records a finished background job.
func RecordJobRun(kind string, seconds float64, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	jobRuns.WithLabelValues(kind, result).Inc()
	jobDuration.WithLabelValues(kind).Observe(seconds)
}
