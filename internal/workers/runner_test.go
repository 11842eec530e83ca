package workers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunProcessesEveryItemInOrder(t *testing.T) {
	items := make([]int, 57)
	for i := range items {
		items[i] = i
	}

	var got []int
	var chunks int
	stats := Run(context.Background(), items, Options{Concurrency: 4, ChunkSize: 10},
		func(_ context.Context, n int) (int, error) {
			return n * 2, nil
		},
		func(results []Result[int]) {
			chunks++
			for _, r := range results {
				if r.Err != nil {
					t.Errorf("item %d: unexpected error %v", r.Index, r.Err)
				}
				if r.Value != items[r.Index]*2 {
					t.Errorf("item %d: value = %d, want %d", r.Index, r.Value, items[r.Index]*2)
				}
				got = append(got, r.Index)
			}
		})

	if stats.Completed != len(items) || stats.Failed != 0 {
		t.Errorf("stats = %+v, want %d completed", stats, len(items))
	}
	if chunks != 6 {
		t.Errorf("sink called %d times, want 6", chunks)
	}
	for i, idx := range got {
		if idx != i {
			t.Fatalf("result %d has index %d, want input order", i, idx)
		}
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		items       int
		chunk       int
	}{
		{"single worker", 1, 20, 5},
		{"four workers", 4, 100, 25},
		{"more workers than items", 16, 3, 10},
		{"chunk smaller than concurrency", 8, 40, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inFlight, peak atomic.Int64
			items := make([]struct{}, tt.items)

			stats := Run(context.Background(), items, Options{Concurrency: tt.concurrency, ChunkSize: tt.chunk},
				func(_ context.Context, _ struct{}) (struct{}, error) {
					n := inFlight.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					inFlight.Add(-1)
					return struct{}{}, nil
				}, nil)

			if int(peak.Load()) > tt.concurrency {
				t.Errorf("observed %d concurrent calls, limit %d", peak.Load(), tt.concurrency)
			}
			if stats.MaxInFlight > tt.concurrency {
				t.Errorf("Stats.MaxInFlight = %d, limit %d", stats.MaxInFlight, tt.concurrency)
			}
			if stats.MaxInFlight < 1 {
				t.Errorf("Stats.MaxInFlight = %d, want >= 1", stats.MaxInFlight)
			}
			if stats.Completed != tt.items {
				t.Errorf("Completed = %d, want %d", stats.Completed, tt.items)
			}
		})
	}
}

func TestRunIsolatesErrorsAndPanics(t *testing.T) {
	items := []string{"ok", "fail", "panic", "ok"}
	errBoom := errors.New("boom")

	var mu sync.Mutex
	results := map[int]Result[string]{}

	stats := Run(context.Background(), items, Options{Concurrency: 2},
		func(_ context.Context, s string) (string, error) {
			switch s {
			case "fail":
				return "", errBoom
			case "panic":
				panic("bad sidecar")
			}
			return strings.ToUpper(s), nil
		},
		func(rs []Result[string]) {
			mu.Lock()
			defer mu.Unlock()
			for _, r := range rs {
				results[r.Index] = r
			}
		})

	if stats.Completed != 2 || stats.Failed != 2 {
		t.Errorf("stats = %+v, want 2 completed and 2 failed", stats)
	}
	if !errors.Is(results[1].Err, errBoom) {
		t.Errorf("item 1 error = %v, want %v", results[1].Err, errBoom)
	}
	if results[2].Err == nil || !strings.Contains(results[2].Err.Error(), "bad sidecar") {
		t.Errorf("item 2 error = %v, want recovered panic", results[2].Err)
	}
	if results[0].Value != "OK" || results[3].Value != "OK" {
		t.Errorf("successful items = %q, %q", results[0].Value, results[3].Value)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	stats := Run(ctx, make([]int, 10), Options{Concurrency: 3},
		func(_ context.Context, _ int) (int, error) {
			calls.Add(1)
			return 0, nil
		},
		func(rs []Result[int]) {
			for _, r := range rs {
				if !errors.Is(r.Err, context.Canceled) {
					t.Errorf("item %d error = %v, want context.Canceled", r.Index, r.Err)
				}
			}
		})

	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancellation", calls.Load())
	}
	if stats.Failed != 10 {
		t.Errorf("Failed = %d, want 10", stats.Failed)
	}
}

func TestRunEmptyInput(t *testing.T) {
	called := false
	stats := Run(context.Background(), []int(nil), Options{Concurrency: 4},
		func(_ context.Context, n int) (int, error) { return n, nil },
		func([]Result[int]) { called = true })

	if called {
		t.Error("sink called for empty input")
	}
	if stats != (Stats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestRunGate(t *testing.T) {
	items := make([]int, 10)
	errClosed := errors.New("gate closed")

	var gateCalls atomic.Int32
	var called atomic.Int32
	stats := Run(context.Background(), items, Options{
		Concurrency: 2,
		ChunkSize:   4,
		Gate: func(context.Context) error {
			// Open for the first chunk only.
			if gateCalls.Add(1) > 1 {
				return errClosed
			}
			return nil
		},
	},
		func(_ context.Context, n int) (int, error) {
			called.Add(1)
			return n, nil
		}, nil)

	if gateCalls.Load() != 3 {
		t.Errorf("gate called %d times, want once per chunk (3)", gateCalls.Load())
	}
	if called.Load() != 4 {
		t.Errorf("fn called %d times, want 4", called.Load())
	}
	if stats.Completed != 4 || stats.Failed != 6 {
		t.Errorf("stats = %+v, want 4 completed and 6 failed", stats)
	}
}
