// Package thumbnail produces small raster derivatives of loaded images
// without touching the load path.
//
// A [Pipeline] is fed by polling, not by load callbacks: every Interval it
// asks its Source for slots whose image is loaded, queues the ones it has
// not seen, and runs at most Limit generations at a time. Thumbnail work can
// therefore fall arbitrarily far behind without delaying a single fetch.
//
// Each slot ends in exactly one of two states, done with a thumbnail handle
// or failed with the error that stopped it. Failed slots are not retried.
// While the memory monitor reports pressure the poller skips its scan.
package thumbnail
