// Package memory keeps the viewer's decoded-image working set inside the
// container's memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the Kubernetes Downward API
// (MEMORY_LIMIT, MEMORY_RATIO) unless GOMEMLIMIT is already set. Call it
// early in main before large allocations:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// [Monitor] samples heap usage on an interval and exposes two backpressure
// signals. The thumbnail pipeline checks [Monitor.ShouldThrottle] before
// each poll and skips the tick while usage sits above the high water mark.
// Above the critical mark the monitor forces a GC and [Monitor.WaitIfPaused]
// blocks until usage falls back below the high mark.
//
// Image payloads, pre-decoded variants and generated thumbnails all live in
// the Go heap, so the ratio should leave room for libvips allocations made
// through CGO:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
package memory
