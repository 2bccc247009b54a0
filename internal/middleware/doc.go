// Package middleware provides the HTTP middleware of the renderer binding
// server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression for JSON session snapshots
//
// Every wrapper passes http.Hijacker through so websocket upgrades on
// /api/events keep working behind the full chain.
package middleware
