package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("Expected MemoryLimitBytes to be 0, got %d", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %v should be below CriticalWaterMark %v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval to be 5s, got %v", cfg.CheckInterval)
	}
}

// restoreMemoryLimit resets GOMEMLIMIT after a test changes it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	orig := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(orig) })
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		configured bool
		source     string
		goMemLimit int64
		ratio      float64
	}{
		{
			name:   "nothing set",
			env:    map[string]string{},
			source: "none",
		},
		{
			name:       "memory limit with default ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000"},
			configured: true,
			source:     "MEMORY_LIMIT",
			goMemLimit: 850000000,
			ratio:      DefaultMemoryRatio,
		},
		{
			name:       "custom ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "0.5"},
			configured: true,
			source:     "MEMORY_LIMIT",
			goMemLimit: 500000000,
			ratio:      0.5,
		},
		{
			name:       "ratio out of range",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "1.5"},
			configured: true,
			source:     "MEMORY_LIMIT",
			goMemLimit: 850000000,
			ratio:      DefaultMemoryRatio,
		},
		{
			name:   "invalid limit",
			env:    map[string]string{"MEMORY_LIMIT": "lots"},
			source: "none",
		},
		{
			name:   "negative limit",
			env:    map[string]string{"MEMORY_LIMIT": "-5"},
			source: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", "")
			t.Setenv("MEMORY_RATIO", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got := ConfigureFromEnv()
			if got.Configured != tt.configured || got.Source != tt.source {
				t.Errorf("got configured=%v source=%q, want %v %q", got.Configured, got.Source, tt.configured, tt.source)
			}
			if got.GoMemLimit != tt.goMemLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.goMemLimit)
			}
			if got.Ratio != tt.ratio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.ratio)
			}
		})
	}
}

func TestChunkSize(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		fallback int
		want     int
	}{
		{"no limit", 0, 1000, 1000},
		{"tiny limit clamps up", 1 << 20, 1000, MinChunkSize},
		{"512MiB", 512 << 20, 1000, 3276},
		{"huge limit clamps down", 64 << 30, 1000, MaxChunkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChunkSize(tt.limit, tt.fallback); got != tt.want {
				t.Errorf("ChunkSize(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{512 << 20, "512 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
