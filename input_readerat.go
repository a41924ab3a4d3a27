package rangeio

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	rangeerrors "github.com/rangeio/rangeio/errors"
)

// defaultVReadParallelism bounds the scatter fan-out of a single VRead call.
const defaultVReadParallelism = 8

// sequentialAdviseThreshold is the single-read size at or above which the kernel is
// told to expect a sequential scan of the span rather than a one-off fetch.
const sequentialAdviseThreshold = 4 << 20

// ReaderAtInput adapts an io.ReaderAt (typically *os.File or an object-store
// range reader) to the Input contract. The vectored path issues per-region
// reads concurrently, bounded by Parallelism.
//
// Thread Safety:
//   - Read and VRead are safe for concurrent use if the underlying
//     io.ReaderAt is (os.File is)
type ReaderAtInput struct {
	r     io.ReaderAt
	stats Statistics

	// Parallelism bounds concurrent reads inside one VRead call.
	// Zero means defaultVReadParallelism. Set before first use.
	Parallelism int
}

// NewReaderAtInput returns an Input over r. stats may be nil.
func NewReaderAtInput(r io.ReaderAt, stats Statistics) *ReaderAtInput {
	return &ReaderAtInput{r: r, stats: stats}
}

func (in *ReaderAtInput) Read(ctx context.Context, p []byte, offset uint64, lt LogType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	advisePreRead(in.r, int64(offset), int64(len(p)))
	n, err := in.r.ReadAt(p, int64(offset))
	if err != nil && !(err == io.EOF && n == len(p)) {
		if err == io.EOF {
			return fmt.Errorf("rangeio: read %s: got %d bytes: %w",
				Region{Offset: offset, Length: uint64(len(p))}, n, rangeerrors.ErrOutOfRange)
		}
		return fmt.Errorf("rangeio: read %s: %w", Region{Offset: offset, Length: uint64(len(p))}, err)
	}
	if n != len(p) {
		return fmt.Errorf("rangeio: read %s: got %d bytes: %w",
			Region{Offset: offset, Length: uint64(len(p))}, n, rangeerrors.ErrShortRead)
	}
	if in.stats != nil {
		in.stats.IncRawBytesRead(uint64(len(p)))
		in.stats.IncReads(1)
	}
	return nil
}

func (in *ReaderAtInput) VRead(ctx context.Context, bufs [][]byte, regions []Region, lt LogType) error {
	checkVRead(bufs, regions)
	parallelism := in.Parallelism
	if parallelism <= 0 {
		parallelism = defaultVReadParallelism
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range regions {
		i := i
		g.Go(func() error {
			return in.Read(gctx, bufs[i], regions[i].Offset, lt)
		})
	}
	return g.Wait()
}

func (in *ReaderAtInput) Stats() Statistics {
	return in.stats
}

// advisePreRead hints the kernel about an upcoming read when the reader is
// file-backed. Best-effort and a no-op off Linux.
func advisePreRead(r io.ReaderAt, offset, length int64) {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := r.(fder); ok {
		if length >= sequentialAdviseThreshold {
			fadviseSequential(int(f.Fd()), offset, length)
			return
		}
		fadviseWillNeed(int(f.Fd()), offset, length)
	}
}
