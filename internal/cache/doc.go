// Package cache owns the materialized image bytes of a viewing session.
//
// A [Handle] wraps one payload together with its view token, the
// renderer-visible string ("/blob/<uuid>") a host uses to display it.
// Handles are reference counted: the [Cache] holds one reference for the
// life of the session and every slot or worker that uses the bytes holds
// another. The bytes are dropped and the token unregistered exactly once,
// when the last reference is released.
//
// The [Registry] maps tokens back to live handles so the HTTP blob
// endpoint can serve them. The Cache maps source keys to entries. Entries
// are never replaced or evicted; [Cache.Teardown] drops them all when the
// session ends.
package cache
