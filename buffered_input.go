package rangeio

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// BufferedInput is the enqueue/coalesce/materialize engine. Consumers
// enqueue the byte ranges they will eventually need, receiving one lazy
// Stream per range, then call Load once: pending regions are sorted, merged
// when adjacent or nearly adjacent, read from the backend in one pass, and
// indexed so every stream resolves against the buffered data.
//
// Each Load starts a fresh cycle: buffers from the previous cycle are
// recycled and streams handed out before it become stale. Consumers must
// drain cycle K's streams before loading cycle K+1.
//
// Thread Safety:
//   - Enqueue, Load, and stream reads must be externally serialized
//   - Once Load has returned, distinct streams may be read concurrently;
//     the buffer index is immutable for the remainder of the cycle
type BufferedInput struct {
	input            Input
	pool             MemoryPool
	logger           log.Logger
	maxMergeDistance uint64
	vectoredRead     bool

	// regions is the pending set between Enqueue and Load.
	regions []Region

	// offsets and buffers are the parallel buffer index: buffers[i] covers
	// [offsets[i], offsets[i]+len(buffers[i])). offsets is strictly
	// increasing and merged regions are disjoint by more than
	// maxMergeDistance.
	offsets []uint64
	buffers [][]byte

	// loads counts load cycles run, failed ones included; streams carry the cycle they
	// belong to so reads across a load boundary fail instead of returning
	// recycled bytes.
	loads uint64
}

// NewBufferedInput returns a BufferedInput over input. The zero option set
// uses the process-wide vectored-read default, a fresh AllocPool, and a 1 MiB
// merge distance.
func NewBufferedInput(input Input, opts ...Option) *BufferedInput {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &BufferedInput{
		input:            input,
		pool:             cfg.pool,
		logger:           cfg.logger,
		maxMergeDistance: cfg.maxMergeDistance,
		vectoredRead:     cfg.vectoredRead,
	}
}

// Enqueue registers a byte range for the next Load and returns the stream
// that will serve it. Zero-length regions short-circuit to an empty stream.
// If the range is already covered by the current buffer index (stable
// metadata re-read across cycles), a ready stream is returned and nothing
// is appended to the pending set.
func (bi *BufferedInput) Enqueue(region Region) *Stream {
	return bi.EnqueueFor(region, 0)
}

// EnqueueFor is Enqueue with an advisory stream identifier. The identifier
// is ignored by the core; it exists so callers can keep their column/stream
// bookkeeping in one place.
func (bi *BufferedInput) EnqueueFor(region Region, _ StreamID) *Stream {
	if region.Empty() {
		return emptyStream()
	}

	if data, ok := bi.readInternal(region.Offset, region.Length); ok {
		return &Stream{bi: bi, region: region, cycle: bi.loads, data: data}
	}

	bi.regions = append(bi.regions, region)
	return &Stream{bi: bi, region: region, cycle: bi.loads + 1, lazy: true}
}

// Pending returns the number of regions waiting for the next Load.
func (bi *BufferedInput) Pending() int {
	return len(bi.regions)
}

// Load materializes every pending region in one coalesced pass. It is the
// atomic transition from N pending regions to N' <= N indexed buffers, and
// a no-op when nothing is pending. A backend failure invalidates the whole
// cycle: the error propagates and the BufferedInput is left consistent but
// empty.
func (bi *BufferedInput) Load(ctx context.Context, lt LogType) error {
	if len(bi.regions) == 0 {
		return nil
	}

	enqueued := len(bi.regions)
	bi.offsets = bi.offsets[:0]
	bi.buffers = bi.buffers[:0]
	bi.pool.Clear()

	sortRegions(bi.regions)
	bi.regions = mergeRegions(bi.regions, bi.maxMergeDistance, bi.input.Stats())

	var err error
	if bi.vectoredRead {
		err = bi.loadVectored(ctx, lt)
	} else {
		err = bi.loadScalar(ctx, lt)
	}

	bi.loads++
	if err != nil {
		bi.reset()
		return fmt.Errorf("rangeio: load %s: %w", lt, err)
	}

	var bytes uint64
	for _, b := range bi.buffers {
		bytes += uint64(len(b))
	}
	level.Debug(bi.logger).Log(
		"msg", "loaded regions",
		"log_type", lt,
		"enqueued", enqueued,
		"merged", len(bi.buffers),
		"bytes", bytes,
	)

	bi.regions = bi.regions[:0]
	return nil
}

// loadScalar issues one backend read per merged region, in merged order.
func (bi *BufferedInput) loadScalar(ctx context.Context, lt LogType) error {
	for _, r := range bi.regions {
		buf := bi.indexBuffer(r)
		if err := bi.input.Read(ctx, buf, r.Offset, lt); err != nil {
			return err
		}
	}
	return nil
}

// loadVectored collects every merged region and issues a single scatter
// read; the backend is free to order the physical reads.
func (bi *BufferedInput) loadVectored(ctx context.Context, lt LogType) error {
	bufs := make([][]byte, len(bi.regions))
	regions := make([]Region, len(bi.regions))
	for i, r := range bi.regions {
		bufs[i] = bi.indexBuffer(r)
		regions[i] = r
	}
	return bi.input.VRead(ctx, bufs, regions, lt)
}

// indexBuffer allocates the backing buffer for a merged region and appends
// it to the buffer index.
func (bi *BufferedInput) indexBuffer(r Region) []byte {
	buf := bi.pool.Allocate(int(r.Length))
	bi.offsets = append(bi.offsets, r.Offset)
	bi.buffers = append(bi.buffers, buf)
	return buf
}

// reset drops all state after a failed load. Streams from the failed cycle
// report ErrRegionNotLoaded; streams from earlier cycles report
// ErrStaleStream.
func (bi *BufferedInput) reset() {
	bi.regions = bi.regions[:0]
	bi.offsets = bi.offsets[:0]
	bi.buffers = bi.buffers[:0]
	bi.pool.Clear()
}

// readInternal resolves (offset, length) against the buffer index: binary
// search for the last entry starting at or before offset, then check that
// it covers the requested range. The false return is the sentinel Enqueue's
// fast path uses to decide a range still needs the backend.
func (bi *BufferedInput) readInternal(offset, length uint64) ([]byte, bool) {
	if length == 0 {
		return nil, true
	}
	i := sort.Search(len(bi.offsets), func(i int) bool { return bi.offsets[i] > offset })
	if i == 0 {
		return nil, false
	}
	i--
	base := bi.offsets[i]
	buf := bi.buffers[i]
	if base+uint64(len(buf)) < offset+length {
		return nil, false
	}
	start := offset - base
	return buf[start : start+length], true
}
