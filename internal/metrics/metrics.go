package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_http_requests_total",
			Help: "Total number of HTTP requests served by the renderer binding",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_engine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_websocket_clients",
			Help: "Number of connected state-change subscribers",
		},
	)
)

// Load scheduler metrics
var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_fetches_total",
			Help: "Total number of fetches dispatched to the fetch collaborator",
		},
		[]string{"kind", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_engine_fetch_duration_seconds",
			Help:    "Fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	FetchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_fetches_in_flight",
			Help: "Number of fetches currently outstanding",
		},
	)

	FetchPeakInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_fetch_peak_in_flight",
			Help: "Highest number of simultaneously outstanding fetches in the current session",
		},
	)

	LoadQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_load_queue_depth",
			Help: "Number of load requests waiting for a concurrency slot",
		},
	)

	FetchDedupTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_fetch_dedup_total",
			Help: "Requests attached to an outstanding fetch for the same source key",
		},
	)
)

// Resource cache and handle metrics
var (
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_cache_entries",
			Help: "Number of entries in the resource cache",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_cache_lookups_total",
			Help: "Resource cache lookups by result",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	HandlesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_handles_live",
			Help: "Number of binary handles that have not been released",
		},
	)

	HandleReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_handle_releases_total",
			Help: "Number of binary handles physically released",
		},
	)
)

// Thumbnail pipeline metrics
var (
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_thumbnails_total",
			Help: "Thumbnail generations by status",
		},
		[]string{"status"},
	)

	ThumbnailPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_engine_thumbnail_phase_duration_seconds",
			Help:    "Thumbnail generation duration by phase",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"phase"}, // "decode", "resize", "encode"
	)

	ThumbnailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_thumbnail_queue_depth",
			Help: "Number of thumbnail jobs waiting for a worker",
		},
	)

	ThumbnailPollerTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_thumbnail_poller_ticks_total",
			Help: "Background poller ticks by outcome",
		},
		[]string{"outcome"}, // "scanned", "throttled"
	)
)

// Variant, metadata and navigation metrics
var (
	VariantSwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_variant_swaps_total",
			Help: "Variant swaps by outcome",
		},
		[]string{"outcome"}, // "cached", "fetched", "timeout", "error"
	)

	ExifExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_exif_extractions_total",
			Help: "EXIF extractions by status",
		},
		[]string{"status"}, // "success", "absent", "error"
	)

	NavigationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_navigation_total",
			Help: "Navigation operations by action",
		},
		[]string{"action"},
	)

	ViewportResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_viewport_resets_total",
			Help: "Viewport resets by cause",
		},
		[]string{"cause"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_viewer_engine_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by volume and operation type",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation type",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_filesystem_retry_attempts_total",
			Help: "Retry attempts after a stale NFS file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_viewer_engine_memory_paused",
			Help: "Whether thumbnail work is paused for memory pressure (1 = paused)",
		},
	)

	MemoryWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_memory_waits_total",
			Help: "Thumbnail generations that waited for memory pressure to clear",
		},
	)
)

// Directory scanner metrics
var (
	ScannerImagesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_scanner_images_found_total",
			Help: "Images discovered by directory listing or watching",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_watcher_events_total",
			Help: "Filesystem watcher events by operation",
		},
		[]string{"op"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_viewer_engine_watcher_errors_total",
			Help: "Filesystem watcher errors",
		},
	)
)
