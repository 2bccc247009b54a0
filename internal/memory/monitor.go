package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// LimitBytes is the soft limit (0 = use GOMEMLIMIT, or disable)
	LimitBytes int64

	// HighWaterMark is the usage ratio at which thumbnail polling backs off
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio at which work pauses entirely
	CriticalWaterMark float64

	// CheckInterval is how often usage is sampled
	CheckInterval time.Duration

	// Sample reports current heap usage in bytes. Defaults to
	// runtime.MemStats.Alloc.
	Sample func() uint64
}

// DefaultConfig returns sensible defaults for memory management
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Monitor tracks memory usage and provides backpressure signals
type Monitor struct {
	config   Config
	limit    int64
	stopOnce sync.Once
	stopChan chan struct{}

	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a memory monitor. With no limit available from the
// config or GOMEMLIMIT the monitor never throttles.
func NewMonitor(config Config) *Monitor {
	if config.Sample == nil {
		config.Sample = heapAlloc
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

// Start begins sampling in the background.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases any WaitIfPaused callers. Safe to call
// more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopChan:
			return
		}
	}
}

// Check samples usage once and updates the pause state.
func (m *Monitor) Check() {
	if m.limit == 0 {
		return
	}
	alloc := m.config.Sample()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing image work", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming image work", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.pauseChan)
		m.pauseChan = make(chan struct{})
	}
}

// WaitIfPaused blocks while usage is critical. It returns false if ctx
// ends or the monitor is stopped while waiting. A nil monitor never waits.
func (m *Monitor) WaitIfPaused(ctx context.Context) bool {
	if m == nil {
		return ctx.Err() == nil
	}
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return ctx.Err() == nil
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	metrics.MemoryWaits.Inc()
	select {
	case <-pauseChan:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	case <-m.stopChan:
		return false
	}
}

// ShouldThrottle reports whether usage is above the high water mark.
// A nil monitor never throttles.
func (m *Monitor) ShouldThrottle() bool {
	if m == nil || m.limit == 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) >= float64(m.limit)*m.config.HighWaterMark
}

// IsPaused reports whether usage crossed the critical mark and has not yet
// recovered.
func (m *Monitor) IsPaused() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// Usage returns the last sampled usage as a ratio of the limit, or 0 when
// no limit is configured.
func (m *Monitor) Usage() float64 {
	if m == nil || m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
