// Package handlers binds a viewer session to HTTP so that any renderer
// (a browser page, a native shell, a test) can drive it.
//
// Routes:
//
//	GET  /blob/{token}                 handle bytes for a view token
//	GET  /api/session                  full session snapshot
//	GET  /api/progress                 slot counts by load state
//	GET  /api/slots/{slot}             one slot
//	POST /api/slots/{slot}/variant     toggle compressed/original
//	POST /api/navigate                 next, previous, first, last, goto
//	POST /api/references               append references
//	PUT  /api/container                container size
//	PUT  /api/natural                  natural size measured by the host
//	POST /api/viewport                 pointer, wheel or key-zoom input
//	POST /api/viewport/reset           reset to fit
//	POST /api/key                      keyboard key or intent
//	POST /api/autoplay                 start or stop autoplay
//	GET  /api/events                   websocket state-change feed
//
// plus /healthz, /livez, /readyz, /version and, when enabled, /metrics.
//
// The view token of a loaded slot is itself a /blob/ path, so a renderer
// can use it directly as an image source.
package handlers
