/*
Package workers sizes the engine's two concurrency ceilings from the CPUs
actually available to the process.

The load scheduler's ceiling bounds overlapping fetches. Fetches are
I/O-bound, so it uses two slots per available CPU:

	limit := workers.ForFetch(48)

The thumbnail pipeline's ceiling bounds overlapping decode/resample/encode
jobs. These are CPU-bound and must stay well below the fetch ceiling so
that thumbnail work never starves image loads:

	limit := workers.ForThumbnails(4)

Both read GOMAXPROCS rather than runtime.NumCPU(), so container CPU limits
are respected (Go 1.19+ sets GOMAXPROCS from the cgroup quota).

# Environment Variable Override

FETCH_WORKERS and THUMBNAIL_WORKERS override the computed values; the
limit passed by the caller still caps the override.
*/
package workers
