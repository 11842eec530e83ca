package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "SYNC_WORKERS"

// Count returns the number of workers for a task with the given
// CPU multiplier, derived from GOMAXPROCS so container CPU limits apply.
// The limit caps the result; 0 means no cap. SYNC_WORKERS, when set to a
// positive integer, replaces the computed value (still capped by limit).
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
// Change detection is stat-heavy and uses this.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
// Detection with image probing decodes files and uses this.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
