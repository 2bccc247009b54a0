package workers

import (
	"os"
	"runtime"
	"strconv"
)

const (
	// FetchWorkersEnv overrides the load scheduler's ceiling.
	FetchWorkersEnv = "FETCH_WORKERS"
	// ThumbnailWorkersEnv overrides the thumbnail pipeline's ceiling.
	ThumbnailWorkersEnv = "THUMBNAIL_WORKERS"
)

// Count returns a worker count of multiplier * GOMAXPROCS, capped at limit
// (0 = no cap) and never below 1. A positive integer in the environment
// variable named by override replaces the computed value.
func Count(multiplier float64, limit int, override string) int {
	if override != "" {
		if value := os.Getenv(override); value != "" {
			if count, err := strconv.Atoi(value); err == nil && count > 0 {
				if limit > 0 && count > limit {
					return limit
				}
				return count
			}
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForFetch returns the fetch ceiling (2 per CPU, I/O-bound).
func ForFetch(limit int) int {
	return Count(2.0, limit, FetchWorkersEnv)
}

// ForThumbnails returns the thumbnail ceiling (1 per CPU, CPU-bound).
func ForThumbnails(limit int) int {
	return Count(1.0, limit, ThumbnailWorkersEnv)
}
