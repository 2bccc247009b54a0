// Package scheduler drains load requests into a fetch collaborator under a
// fixed concurrency ceiling and installs results in the session cache.
//
// Each request names a reference, the slot that wants it and a priority
// (lower is sooner). Requests are identified by the reference's source key:
//
//   - a cached key is answered synchronously, before Enqueue returns
//   - a key that is queued or fetching gains another waiter; a waiter with a
//     sooner priority moves the queued fetch forward
//   - any other key is queued and dispatched once fewer than Limit fetches
//     are running
//
// When a fetch succeeds its handle is put in the cache and every waiter
// receives the same entry. A request that arrives while those waiters are
// being notified joins them rather than reading the cache, so no caller can
// see a cached key whose waiters have not yet been told. A failed fetch
// leaves no trace: the next request for the key fetches again.
//
// Done callbacks run on scheduler goroutines, outside the scheduler's lock.
// They may call Enqueue but must not call Close.
package scheduler
