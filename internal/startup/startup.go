package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-viewer-engine/internal/fetch"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/memory"
	"media-viewer-engine/internal/session"
	"media-viewer-engine/internal/thumbnail"
	"media-viewer-engine/internal/workers"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaDir string

	RemoteURL   string
	RemoteToken string

	S3 fetch.S3Config

	Port            string
	MetricsEnabled  bool
	LogBlobs        bool
	LogHealthChecks bool

	FetchWorkers      int
	FetchTimeout      time.Duration
	FetchRateLimit    float64
	ThumbnailWorkers  int
	ThumbnailInterval time.Duration
	ThumbnailSize     int
	ThumbnailTimeout  time.Duration

	VariantSwapTimeout time.Duration
	ExifDelay          time.Duration
	AutoplayInterval   time.Duration
	MaxZoom            float64
}

// LoadConfig reads configuration from the environment, after loading a
// .env file from the working directory when one exists.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom is LoadConfig with an explicit .env path. A missing file
// is not an error; variables already set in the environment win.
func LoadConfigFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err == nil {
			logging.Debug("Loaded environment from %s", envFile)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		MediaDir:    getEnv("MEDIA_DIR", ""),
		RemoteURL:   getEnv("REMOTE_URL", ""),
		RemoteToken: getEnv("REMOTE_TOKEN", ""),
		S3: fetch.S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_PATH_STYLE", false),
			Prefix:          getEnv("S3_PREFIX", ""),
		},
		Port:               getEnv("PORT", "8080"),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		LogBlobs:           getEnvBool("LOG_BLOBS", false),
		LogHealthChecks:    getEnvBool("LOG_HEALTH_CHECKS", true),
		FetchWorkers:       workers.ForFetch(48),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		FetchRateLimit:     getEnvFloat("FETCH_RATE_LIMIT", 0),
		ThumbnailWorkers:   workers.ForThumbnails(thumbnail.DefaultLimit),
		ThumbnailInterval:  getEnvDuration("THUMBNAIL_INTERVAL", thumbnail.DefaultInterval),
		ThumbnailSize:      getEnvInt("THUMBNAIL_SIZE", 200),
		ThumbnailTimeout:   getEnvDuration("THUMBNAIL_TIMEOUT", thumbnail.DefaultTimeout),
		VariantSwapTimeout: getEnvDuration("VARIANT_SWAP_TIMEOUT", 2*time.Second),
		ExifDelay:          getEnvDuration("EXIF_DELAY", 300*time.Millisecond),
		AutoplayInterval:   getEnvDuration("AUTOPLAY_INTERVAL", 5*time.Second),
		MaxZoom:            getEnvFloat("MAX_ZOOM", 10),
	}

	if config.MediaDir != "" {
		abs, err := filepath.Abs(config.MediaDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
		}
		config.MediaDir = abs
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logging.Info("  MEDIA_DIR:             %s", orNone(config.MediaDir))
	logging.Info("  REMOTE_URL:            %s", orNone(config.RemoteURL))
	logging.Info("  S3_BUCKET:             %s", orNone(config.S3.Bucket))
	logging.Info("  PORT:                  %s", config.Port)
	logging.Info("  METRICS_ENABLED:       %v", config.MetricsEnabled)
	logging.Info("  FETCH_WORKERS:         %d", config.FetchWorkers)
	logging.Info("  FETCH_TIMEOUT:         %v", config.FetchTimeout)
	logging.Info("  FETCH_RATE_LIMIT:      %v", config.FetchRateLimit)
	logging.Info("  THUMBNAIL_WORKERS:     %d", config.ThumbnailWorkers)
	logging.Info("  THUMBNAIL_INTERVAL:    %v", config.ThumbnailInterval)
	logging.Info("  THUMBNAIL_SIZE:        %d", config.ThumbnailSize)
	logging.Info("  THUMBNAIL_TIMEOUT:     %v", config.ThumbnailTimeout)
	logging.Info("  VARIANT_SWAP_TIMEOUT:  %v", config.VariantSwapTimeout)
	logging.Info("  EXIF_DELAY:            %v", config.ExifDelay)
	logging.Info("  AUTOPLAY_INTERVAL:     %v", config.AutoplayInterval)
	logging.Info("  MAX_ZOOM:              %v", config.MaxZoom)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	return config, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.ThumbnailSize <= 0 {
		return fmt.Errorf("THUMBNAIL_SIZE must be positive, got %d", c.ThumbnailSize)
	}
	if c.MaxZoom < 1 {
		return fmt.Errorf("MAX_ZOOM must be at least 1, got %v", c.MaxZoom)
	}
	if c.FetchRateLimit < 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT must not be negative, got %v", c.FetchRateLimit)
	}
	if c.RemoteURL != "" && !strings.HasPrefix(c.RemoteURL, "http://") && !strings.HasPrefix(c.RemoteURL, "https://") {
		return fmt.Errorf("REMOTE_URL must be an http(s) URL, got %q", c.RemoteURL)
	}
	return nil
}

// SessionConfig maps the environment onto session tunables. monitor may be
// nil.
func (c *Config) SessionConfig(monitor *memory.Monitor) session.Config {
	cfg := session.DefaultConfig()
	cfg.Scheduler.Limit = c.FetchWorkers
	cfg.Scheduler.FetchTimeout = c.FetchTimeout
	cfg.ThumbnailLimit = c.ThumbnailWorkers
	cfg.ThumbnailInterval = c.ThumbnailInterval
	cfg.ThumbnailSize = c.ThumbnailSize
	cfg.ThumbnailTimeout = c.ThumbnailTimeout
	cfg.Monitor = monitor
	cfg.Viewport.MaxZoom = c.MaxZoom
	cfg.SwapTimeout = c.VariantSwapTimeout
	cfg.ExifDelay = c.ExifDelay
	cfg.AutoplayInterval = c.AutoplayInterval
	return cfg
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// LogFetchers logs which fetch collaborators are available.
func LogFetchers(c *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("FETCH COLLABORATORS")
	logging.Info("------------------------------------------------------------")
	logging.Info("  By-id (remote):     %s", enabledString(c.RemoteURL != ""))
	switch {
	case c.S3.Bucket != "":
		logging.Info("  By-path:            s3://%s/%s", c.S3.Bucket, c.S3.Prefix)
	case c.MediaDir != "":
		logging.Info("  By-path:            %s", c.MediaDir)
	case c.RemoteURL != "":
		logging.Info("  By-path:            %s", c.RemoteURL)
	default:
		logging.Info("  By-path:            DISABLED")
	}
	logging.Info("  Materialized:       ENABLED")
	if c.FetchRateLimit > 0 {
		logging.Info("  Rate limit:         %.1f/s", c.FetchRateLimit)
	}
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(mc memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if !mc.Configured {
		logging.Info("  GOMEMLIMIT: not configured (set MEMORY_LIMIT to enable)")
		logging.Info("  Thumbnail backpressure: DISABLED")
		return
	}
	logging.Info("  Source:           %s", mc.Source)
	if mc.ContainerLimit > 0 {
		logging.Info("  Container limit:  %s", memory.FormatBytes(mc.ContainerLimit))
		logging.Info("  Ratio:            %.0f%%", mc.Ratio*100)
	}
	logging.Info("  GOMEMLIMIT:       %s", memory.FormatBytes(mc.GoMemLimit))
	logging.Info("  Thumbnail backpressure: ENABLED")
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs registered routes at debug level, grouped by prefix.
func LogHTTPRoutes(router *mux.Router, logBlobs, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logBlobs {
		logging.Info("    Blob logging: ON")
	} else {
		logging.Info("    Blob logging: OFF (set LOG_BLOBS=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	Slots           int
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Session slots:   %d", config.Slots)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Session:       http://localhost:%s/api/session", config.Port)
	logging.Info("    Events:        ws://localhost:%s/api/events", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// PrintBanner writes the startup banner and build information.
func PrintBanner() {
	banner := `
------------------------------------------------------------
  media-viewer-engine
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

// LogSystemInfo logs CPU and runtime details.
func LogSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
	}
	logging.Info("")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
