// Package rangeio implements coalesced range reads over random-access
// backends with bounded buffering.
//
// Consumers enqueue the byte ranges they will eventually need, receiving one
// lazy stream per range, then trigger a single load: pending ranges are
// sorted, merged when adjacent or nearly adjacent, read from the backend in
// one pass, and served back through the streams. Trading a bounded amount of
// over-read for far fewer backend round trips is the point; the gap
// tolerance is configurable per instance.
//
// # Basic Usage
//
// Reading scattered ranges from a file:
//
//	input, err := rangeio.OpenMmapInput("data.bin", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer input.Close()
//
//	bi := rangeio.NewBufferedInput(input)
//	a := bi.Enqueue(rangeio.Region{Offset: 0, Length: 128})
//	b := bi.Enqueue(rangeio.Region{Offset: 4096, Length: 512})
//	if err := bi.Load(ctx, rangeio.LogTypeFile); err != nil {
//	    log.Fatal(err)
//	}
//	// a and b are now readable io.Readers over the loaded bytes.
//
// Each load starts a fresh cycle: buffers are recycled and streams from
// earlier cycles report ErrStaleStream instead of returning recycled bytes.
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: buffered_input.go (NewBufferedInput, Enqueue, Load), stream.go (Stream)
//   - Range algebra: region.go (Region, sorting, merging)
//   - Backends: input.go (Input, BytesInput), input_readerat.go, input_mmap.go
//   - Parallel iteration: parallel_for.go (ParallelFor), executor.go (Executor, PoolExecutor)
//   - Flow control: barrier.go (ExecutorBarrier), budget.go (Budget)
//   - Accounting: stats.go (Statistics, AtomicStatistics, PrometheusStatistics)
//   - Configuration: options.go (Option, With* functions)
//   - Platform: fadvise_*.go (OS-specific read-ahead hints)
package rangeio
