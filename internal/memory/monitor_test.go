package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(sample *atomic.Uint64) *Monitor {
	cfg := DefaultConfig()
	cfg.LimitBytes = 1000
	cfg.Sample = sample.Load
	return NewMonitor(cfg)
}

func TestMonitorThrottleAndPause(t *testing.T) {
	var used atomic.Uint64
	m := newTestMonitor(&used)
	defer m.Stop()

	used.Store(100)
	m.Check()
	if m.ShouldThrottle() || m.IsPaused() {
		t.Fatal("low usage should neither throttle nor pause")
	}

	used.Store(750)
	m.Check()
	if !m.ShouldThrottle() {
		t.Error("usage above high water mark should throttle")
	}
	if m.IsPaused() {
		t.Error("usage below critical mark should not pause")
	}

	used.Store(900)
	m.Check()
	if !m.IsPaused() {
		t.Fatal("usage above critical mark should pause")
	}

	released := make(chan bool, 1)
	go func() { released <- m.WaitIfPaused(context.Background()) }()

	// Between the marks the pause holds.
	used.Store(800)
	m.Check()
	select {
	case <-released:
		t.Fatal("WaitIfPaused returned before recovery")
	case <-time.After(20 * time.Millisecond):
	}

	used.Store(100)
	m.Check()
	select {
	case ok := <-released:
		if !ok {
			t.Error("WaitIfPaused = false after recovery, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after recovery")
	}

	if got := m.Usage(); got != 0.1 {
		t.Errorf("Usage = %v, want 0.1", got)
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	var used atomic.Uint64
	m := newTestMonitor(&used)

	used.Store(950)
	m.Check()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused(context.Background()) }()

	m.Stop()
	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused = true after Stop, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not release waiter")
	}
}

func TestWaitIfPausedHonoursContext(t *testing.T) {
	var used atomic.Uint64
	m := newTestMonitor(&used)
	defer m.Stop()

	used.Store(950)
	m.Check()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused(ctx) }()
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused = true after cancel, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not release waiter")
	}
	if !m.IsPaused() {
		t.Error("cancelling a waiter must not clear the pause")
	}
}

func TestNilMonitorNeverThrottles(t *testing.T) {
	var m *Monitor
	if m.ShouldThrottle() || m.IsPaused() {
		t.Error("nil monitor throttled")
	}
	if m.Usage() != 0 {
		t.Errorf("nil monitor Usage = %v", m.Usage())
	}
	if !m.WaitIfPaused(context.Background()) {
		t.Error("nil monitor WaitIfPaused = false")
	}
}
