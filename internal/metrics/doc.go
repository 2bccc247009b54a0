// Package metrics provides Prometheus instrumentation for the viewer engine.
//
// All metrics are prefixed with "media_viewer_engine_" and registered on the
// default registry through promauto, so importing the package is enough to
// export them.
//
// # Metric Categories
//
// ## Load Scheduler
//
//   - FetchesTotal: fetches by reference kind and status
//   - FetchDuration: fetch latency by reference kind
//   - FetchesInFlight / FetchPeakInFlight: overlapping fetches right now / ever
//   - LoadQueueDepth: requests waiting for a concurrency slot
//   - FetchDedupTotal: requests attached to an outstanding fetch instead of
//     starting a new one
//
// ## Resource Cache and Handles
//
//   - CacheEntries, CacheLookups{result}: cache population and hit/miss
//   - HandlesLive, HandleReleases: live binary handles and physical frees
//
// ## Thumbnail Pipeline
//
//   - ThumbnailsTotal{status}, ThumbnailPhaseDuration{phase},
//     ThumbnailQueueDepth, ThumbnailPollerTicks{outcome}
//
// ## Variants, Metadata, Navigation
//
//   - VariantSwapsTotal{outcome}, ExifExtractionsTotal{status},
//     NavigationTotal{action}, ViewportResetsTotal{cause}
//
// ## HTTP, Filesystem and Memory
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - Filesystem retry counters used by the local file collaborator
//   - MemoryUsageRatio, MemoryPaused, MemoryWaits used by thumbnail backpressure
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
