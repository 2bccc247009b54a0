package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, kind := range []string{"id", "path", "materialized"} {
		for _, status := range []string{"success", "error", "canceled"} {
			FetchesTotal.WithLabelValues(kind, status)
		}
		FetchDuration.WithLabelValues(kind)
	}

	for _, result := range []string{"hit", "miss"} {
		CacheLookups.WithLabelValues(result)
	}

	for _, status := range []string{"success", "error", "error_decode", "error_released", "error_timeout"} {
		ThumbnailsTotal.WithLabelValues(status)
	}
	for _, phase := range []string{"decode", "resize", "encode"} {
		ThumbnailPhaseDuration.WithLabelValues(phase)
	}
	for _, outcome := range []string{"scanned", "throttled"} {
		ThumbnailPollerTicks.WithLabelValues(outcome)
	}

	for _, outcome := range []string{"cached", "fetched", "timeout", "error"} {
		VariantSwapsTotal.WithLabelValues(outcome)
	}
	for _, status := range []string{"success", "absent", "error"} {
		ExifExtractionsTotal.WithLabelValues(status)
	}
	for _, action := range []string{"next", "previous", "goto", "autoplay"} {
		NavigationTotal.WithLabelValues(action)
	}
	for _, cause := range []string{"navigation", "wheel", "double_click", "explicit"} {
		ViewportResetsTotal.WithLabelValues(cause)
	}

	for _, op := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(op)
	}

	volumes := []string{"media", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "read", "readdir"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
