// Package session is the caller-facing surface of the viewer engine.
//
// A [Session] owns one load scheduler, resource cache, thumbnail pipeline,
// variant manager and viewport engine. Open installs an ordered list of
// references as slots and starts loading them; navigation, autoplay,
// variant toggles and viewport input then act on the current slot. Hosts
// read state back with the pull accessors (CurrentViewToken,
// ViewportState, Slots, Snapshot) and are told when to re-read through
// OnStateChanged.
//
// Callbacks from the scheduler and the thumbnail pipeline run on their own
// goroutines. The session serialises them behind one mutex and never calls
// into the scheduler while holding it, since the scheduler answers cache
// hits synchronously.
package session
