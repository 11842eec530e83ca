package workers

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"kiwi/internal/metrics"
)

// DefaultChunkSize bounds how many results are buffered before the sink
// receives them.
const DefaultChunkSize = 1000

// Options configures a bounded run.
type Options struct {
	// Concurrency is the maximum number of items processed at once.
	// Values below 1 are treated as 1.
	Concurrency int
	// ChunkSize is the number of items per sequential chunk.
	// Values below 1 use DefaultChunkSize.
	ChunkSize int
	// Gate, when set, is called before each chunk and may block, for
	// example under memory pressure. An error fails every item of the
	// chunk without calling fn.
	Gate func(ctx context.Context) error
}

// Result is the outcome for the item at Index in the input slice.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Stats summarizes a bounded run.
type Stats struct {
	Completed   int
	Failed      int
	MaxInFlight int
}

// Run applies fn to every item with at most opts.Concurrency calls in
// flight. Items are processed in chunks of opts.ChunkSize; within a chunk
// workers claim indices from a shared atomic cursor, and sink receives the
// chunk's results in input order once the whole chunk is done. A failing or
// panicking fn only affects its own item. Once ctx is canceled the
// remaining items are reported with the context error without calling fn.
func Run[T, R any](
	ctx context.Context,
	items []T,
	opts Options,
	fn func(ctx context.Context, item T) (R, error),
	sink func(results []Result[R]),
) Stats {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	chunkSize := opts.ChunkSize
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}

	metrics.WorkersConcurrency.Set(float64(concurrency))

	var (
		stats       Stats
		inFlight    atomic.Int64
		maxInFlight atomic.Int64
	)

	for start := 0; start < len(items); start += chunkSize {
		end := min(start+chunkSize, len(items))
		chunk := items[start:end]
		results := make([]Result[R], len(chunk))

		chunkErr := ctx.Err()
		if chunkErr == nil && opts.Gate != nil {
			chunkErr = opts.Gate(ctx)
		}

		var cursor atomic.Int64
		workers := min(concurrency, len(chunk))

		var g errgroup.Group
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				for {
					i := int(cursor.Add(1) - 1)
					if i >= len(chunk) {
						return nil
					}

					results[i].Index = start + i
					if chunkErr != nil {
						results[i].Err = chunkErr
						continue
					}
					if err := ctx.Err(); err != nil {
						results[i].Err = err
						continue
					}

					n := inFlight.Add(1)
					metrics.WorkersInFlight.Inc()
					for {
						cur := maxInFlight.Load()
						if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
							break
						}
					}

					results[i].Value, results[i].Err = call(ctx, fn, chunk[i])

					inFlight.Add(-1)
					metrics.WorkersInFlight.Dec()
				}
			})
		}
		// Workers never return errors; failures live in results.
		_ = g.Wait()

		for i := range results {
			if results[i].Err != nil {
				stats.Failed++
			} else {
				stats.Completed++
			}
		}

		if sink != nil {
			sink(results)
		}
	}

	stats.MaxInFlight = int(maxInFlight.Load())
	return stats
}

func call[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), item T) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
