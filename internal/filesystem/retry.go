package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"media-viewer-engine/internal/logging"
)

// VolumeResolver maps file paths to volume labels for metrics, by longest
// matching absolute prefix. The CLI registers the media directory as
// "media".
type VolumeResolver struct {
	// mounts is sorted by path length descending for longest-prefix matching
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing slash (e.g., "/media/")
	name string // volume label (e.g., "media")
}

// NewVolumeResolver creates a resolver from a map of volume name → absolute path.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		if !strings.HasSuffix(absPath, "/") {
			absPath += "/"
		}
		mounts = append(mounts, volumeMount{path: absPath, name: name})
	}

	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume name for a given file path.
// Returns "unknown" if the path doesn't match any configured volume.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	for _, mount := range vr.mounts {
		if strings.HasPrefix(absPath+"/", mount.path) {
			return mount.name
		}
	}

	return "unknown"
}

var (
	resolverMu      sync.RWMutex
	defaultResolver *VolumeResolver
)

// SetDefaultVolumeResolver sets the resolver used when a RetryConfig has
// none.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	resolverMu.Lock()
	defaultResolver = vr
	resolverMu.Unlock()
}

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package-level resolver for this operation.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	resolverMu.RLock()
	vr := defaultResolver
	resolverMu.RUnlock()
	return vr.Resolve(path)
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// withRetry runs fn until it succeeds, fails with a non-ESTALE error, the
// retry budget is spent or ctx ends during a backoff. Every attempt is
// reported to the observer.
func withRetry[T any](ctx context.Context, op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	volume := config.resolveVolume(path)
	obs := currentObserver()
	backoff := config.InitialBackoff

	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		start := time.Now()
		result, err := fn()
		obs.ObserveOperation(volume, op, time.Since(start).Seconds(), err)

		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				obs.ObserveRetrySuccess(op, volume)
			}
			return result, nil
		}

		lastErr = err
		if !isNFSStaleError(err) {
			return zero, err
		}
		obs.ObserveStaleError(op, volume)
		if attempt >= config.MaxRetries {
			break
		}

		obs.ObserveRetryAttempt(op, volume)
		logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
			op, path, backoff, attempt+1, config.MaxRetries)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			obs.ObserveRetryFailure(op, volume)
			return zero, fmt.Errorf("%s %s: %w (last error: %v)", op, path, ctx.Err(), lastErr)
		case <-timer.C:
		}

		backoff *= 2
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	obs.ObserveRetryFailure(op, volume)
	return zero, lastErr
}

// StatWithRetry performs os.Stat, retrying stale file handles until ctx ends.
func StatWithRetry(ctx context.Context, path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry(ctx, "stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// ReadFileWithRetry performs os.ReadFile, retrying stale file handles until
// ctx ends.
func ReadFileWithRetry(ctx context.Context, path string, config RetryConfig) ([]byte, error) {
	return withRetry(ctx, "read", path, config, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

// ReadDirWithRetry performs os.ReadDir, retrying stale file handles until
// ctx ends.
func ReadDirWithRetry(ctx context.Context, path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry(ctx, "readdir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}
