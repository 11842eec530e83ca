// Package memory keeps a sync inside its container's memory budget.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before large allocations. It sets
// GOMEMLIMIT from the container limit, which Go does not detect on its own:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container memory limit in bytes, usually passed with the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between 0.0
//     and 1.0. Default 0.85; the rest covers SQLite's page cache and stacks.
//
// Downward API example:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Chunk sizing
//
// A sync holds one chunk of detections in memory at a time. [ChunkSize]
// derives a chunk size from the heap limit when SYNC_CHUNK_SIZE is not set,
// so large libraries on small containers process in smaller chunks.
//
// # Backpressure
//
// [Monitor] samples heap usage. Above the critical water mark it pauses sync
// work; [Monitor.Wait] blocks the next chunk until usage drops below the
// high water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//	idx.SetMemoryMonitor(monitor)
package memory
