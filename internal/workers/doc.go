/*
Package workers sizes and runs bounded worker pools.

# Sizing

Count, ForIO and ForMixed derive a worker count from GOMAXPROCS,
which Go sets from the container CPU limit, so a pod limited to 2 CPUs on a
64-core node gets 2-4 workers rather than 64. The SYNC_WORKERS environment
variable overrides the computed value:

	env:
	- name: SYNC_WORKERS
	  value: "4"

Multipliers: 2.0 for I/O-bound work (stat calls, sidecar reads) and 1.5
for mixed work such as detection that also decodes images.

# Bounded runs

Run processes a slice with a fixed concurrency ceiling:

	stats := workers.Run(ctx, items, workers.Options{
		Concurrency: workers.ForIO(16),
		ChunkSize:   1000,
	}, detect, func(results []workers.Result[Detection]) {
		for _, r := range results {
			// merge r.Value or record r.Err for items[r.Index]
		}
	})

Workers share an atomic cursor over the current chunk and write each result
into its own slot, so no locking is needed on the result slice. Chunks run
one after another; the sink sees each chunk's results in input order before
the next chunk starts, which keeps memory proportional to the chunk size
rather than the library size.

Errors and panics from the work function are recorded on the item's Result
and never stop the run. Stats.MaxInFlight reports the highest concurrency
observed and never exceeds Options.Concurrency.
*/
package workers
