package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"CPU-bound", 1.0, 0, 1, availableCPU},
		{"I/O-bound", 2.0, 0, 1, availableCPU * 2},
		{"capped by limit", 2.0, 2, 1, 2},
		{"zero multiplier", 0.0, 0, 1, 1},
		{"negative multiplier", -1.0, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit, "")
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want [%d, %d]", tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
		fallback bool
	}{
		{name: "valid override", envValue: "8", expected: 8},
		{name: "override capped by limit", envValue: "64", limit: 48, expected: 48},
		{name: "override below limit", envValue: "5", limit: 10, expected: 5},
		{name: "non-numeric", envValue: "lots", fallback: true},
		{name: "zero", envValue: "0", fallback: true},
		{name: "negative", envValue: "-5", fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(FetchWorkersEnv, tt.envValue)

			got := Count(1.0, tt.limit, FetchWorkersEnv)
			if tt.fallback {
				if got < 1 {
					t.Errorf("fallback count should be at least 1, got %d", got)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("Count with %s=%s = %d, want %d", FetchWorkersEnv, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestForFetchAndThumbnails(t *testing.T) {
	t.Setenv(FetchWorkersEnv, "")
	t.Setenv(ThumbnailWorkersEnv, "")

	fetch := ForFetch(48)
	thumbs := ForThumbnails(4)

	if fetch < 1 || fetch > 48 {
		t.Errorf("ForFetch(48) = %d, want [1, 48]", fetch)
	}
	if thumbs < 1 || thumbs > 4 {
		t.Errorf("ForThumbnails(4) = %d, want [1, 4]", thumbs)
	}
}

func TestOverridesAreIndependent(t *testing.T) {
	t.Setenv(FetchWorkersEnv, "30")
	t.Setenv(ThumbnailWorkersEnv, "2")

	if got := ForFetch(48); got != 30 {
		t.Errorf("ForFetch = %d, want 30", got)
	}
	if got := ForThumbnails(4); got != 2 {
		t.Errorf("ForThumbnails = %d, want 2", got)
	}
}
