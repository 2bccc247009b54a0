package media

import (
	"fmt"
	"sync"
	"time"

	"media-viewer-engine/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsMu        sync.Mutex
	vipsAvailable bool
)

// vipsLogLevel maps the application log level to the quietest libvips
// level that still surfaces what the operator asked for.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips. Until it is called Thumbnailer uses the pure Go
// path only. Calling it twice is harmless.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		return
	}

	vips.LoggingSettings(vipsLogHandler, vipsLogLevel(logging.GetLevel()))
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips has run.
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// thumbnailWithVips shrinks during decode, which keeps large JPEGs from
// ever being materialized at full resolution.
func thumbnailWithVips(data []byte, width, height, quality int) ([]byte, error) {
	start := time.Now()
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		observePhase("decode", start)
		return nil, fmt.Errorf("%w: vips: %v", ErrDecode, err)
	}
	defer ref.Close()

	err = ref.AutoRotate()
	observePhase("decode", start)
	if err != nil {
		return nil, fmt.Errorf("vips rotate failed: %w", err)
	}

	start = time.Now()
	err = ref.Thumbnail(width, height, vips.InterestingNone)
	observePhase("resize", start)
	if err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	start = time.Now()
	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	observePhase("encode", start)
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}
