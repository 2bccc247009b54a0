// Package startup handles configuration loading and startup/shutdown
// logging for the media-viewer-engine binaries.
//
// # Configuration
//
// [LoadConfig] reads environment variables, after loading a .env file
// from the working directory when one exists (variables already set in
// the environment take precedence). Supported variables:
//
//   - MEDIA_DIR: local directory serving by-path references
//   - REMOTE_URL, REMOTE_TOKEN: remote server for by-id (and, without
//     MEDIA_DIR or S3, by-path) references
//   - S3_BUCKET, S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY_ID,
//     S3_SECRET_ACCESS_KEY, S3_PATH_STYLE, S3_PREFIX: S3-compatible
//     bucket serving by-path references
//   - PORT: renderer binding port (default: 8080)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - FETCH_WORKERS: load scheduler ceiling (default: 2 per CPU, max 48)
//   - FETCH_TIMEOUT: per-fetch timeout (default: 60s)
//   - FETCH_RATE_LIMIT: fetch starts per second, 0 for unlimited
//   - THUMBNAIL_WORKERS: thumbnail ceiling (default: 1 per CPU, max 4)
//   - THUMBNAIL_INTERVAL: thumbnail poll interval (default: 250ms)
//   - THUMBNAIL_SIZE: thumbnail bounding box in pixels (default: 200)
//   - VARIANT_SWAP_TIMEOUT: pre-decode wait on variant toggle (default: 2s)
//   - EXIF_DELAY: delay before reading metadata (default: 300ms)
//   - AUTOPLAY_INTERVAL: autoplay period (default: 5s)
//   - MAX_ZOOM: zoom ceiling (default: 10)
//   - LOG_LEVEL, LOG_BLOBS, LOG_HEALTH_CHECKS: logging controls
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// [Config.SessionConfig] turns the loaded values into a session.Config.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [PrintBanner], [LogSystemInfo]: process start
//   - [LogMemoryConfig], [LogFetchers]: environment-derived setup
//   - [LogHTTPRoutes]: registered routes (debug level)
//   - [LogServerStarted]: endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStep], [LogShutdownComplete]
package startup
