package rangeio

import (
	"context"
	"fmt"

	rangeerrors "github.com/rangeio/rangeio/errors"
)

// LogType attributes a backend read to the kind of file data being fetched.
// It is advisory: every Read and VRead receives it, and BufferedInput puts
// it in its load log line and load errors so operators can tell footer
// fetches from stripe fetches. It is not passed to Statistics, and it never
// changes read semantics.
type LogType uint8

const (
	LogTypeFile LogType = iota
	LogTypeFooter
	LogTypeStripe
	LogTypeStripeFooter
	LogTypeStreamBundle
	LogTypeTest
)

func (t LogType) String() string {
	switch t {
	case LogTypeFile:
		return "file"
	case LogTypeFooter:
		return "footer"
	case LogTypeStripe:
		return "stripe"
	case LogTypeStripeFooter:
		return "stripe_footer"
	case LogTypeStreamBundle:
		return "stream_bundle"
	case LogTypeTest:
		return "test"
	default:
		return fmt.Sprintf("logtype(%d)", uint8(t))
	}
}

// Input is the random-access backend contract. Both operations are
// synchronous: when they return nil every requested byte is resident in the
// caller's buffers. Short reads are errors, never partial results.
//
// Thread Safety:
//   - Read and VRead must be safe for concurrent use; BufferedInput issues
//     them serially but vectored implementations fan out internally.
type Input interface {
	// Read fills p with len(p) bytes starting at offset.
	Read(ctx context.Context, p []byte, offset uint64, lt LogType) error

	// VRead is the vectored scatter read: bufs[i] is filled from regions[i].
	// Both slices have the same length; entries are independent and may be
	// issued in any order, but all must be complete on return.
	VRead(ctx context.Context, bufs [][]byte, regions []Region, lt LogType) error

	// Stats returns the statistics sink attached to this input, or nil.
	Stats() Statistics
}

// checkVRead validates the paired slice shapes common to all VRead
// implementations. Mismatches are programmer errors.
func checkVRead(bufs [][]byte, regions []Region) {
	if len(bufs) != len(regions) {
		panic(fmt.Sprintf("rangeio: VRead: %d buffers for %d regions", len(bufs), len(regions)))
	}
	for i, r := range regions {
		if uint64(len(bufs[i])) != r.Length {
			panic(fmt.Sprintf("rangeio: VRead: buffer %d has %d bytes for region %s", i, len(bufs[i]), r))
		}
	}
}

// BytesInput serves reads from an in-memory byte slice. It is primarily
// useful in tests and for files that are already resident.
type BytesInput struct {
	data  []byte
	stats Statistics
}

// NewBytesInput returns an Input over data. The slice is not copied; the
// caller must not modify it while the input is in use. stats may be nil.
func NewBytesInput(data []byte, stats Statistics) *BytesInput {
	return &BytesInput{data: data, stats: stats}
}

func (in *BytesInput) Read(ctx context.Context, p []byte, offset uint64, lt LogType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	end := offset + uint64(len(p))
	if end < offset || end > uint64(len(in.data)) {
		return fmt.Errorf("rangeio: read %s of %d-byte input: %w",
			Region{Offset: offset, Length: uint64(len(p))}, len(in.data), rangeerrors.ErrOutOfRange)
	}
	copy(p, in.data[offset:end])
	if in.stats != nil {
		in.stats.IncRawBytesRead(uint64(len(p)))
		in.stats.IncReads(1)
	}
	return nil
}

func (in *BytesInput) VRead(ctx context.Context, bufs [][]byte, regions []Region, lt LogType) error {
	checkVRead(bufs, regions)
	for i, r := range regions {
		if err := in.Read(ctx, bufs[i], r.Offset, lt); err != nil {
			return err
		}
	}
	return nil
}

func (in *BytesInput) Stats() Statistics {
	return in.stats
}

// Size returns the length of the backing slice.
func (in *BytesInput) Size() uint64 {
	return uint64(len(in.data))
}

// CountingInput overlays a Statistics sink on another Input without touching
// the wrapped input's own sink, so one shared backend can serve several
// separately accounted consumers. If both sinks are set, reads are counted
// in both.
type CountingInput struct {
	inner Input
	stats Statistics
}

// NewCountingInput wraps inner with stats.
func NewCountingInput(inner Input, stats Statistics) *CountingInput {
	return &CountingInput{inner: inner, stats: stats}
}

func (in *CountingInput) Read(ctx context.Context, p []byte, offset uint64, lt LogType) error {
	if err := in.inner.Read(ctx, p, offset, lt); err != nil {
		return err
	}
	if in.stats != nil {
		in.stats.IncRawBytesRead(uint64(len(p)))
		in.stats.IncReads(1)
	}
	return nil
}

func (in *CountingInput) VRead(ctx context.Context, bufs [][]byte, regions []Region, lt LogType) error {
	if err := in.inner.VRead(ctx, bufs, regions, lt); err != nil {
		return err
	}
	if in.stats != nil {
		var bytes uint64
		for _, b := range bufs {
			bytes += uint64(len(b))
		}
		in.stats.IncRawBytesRead(bytes)
		in.stats.IncReads(uint64(len(regions)))
	}
	return nil
}

func (in *CountingInput) Stats() Statistics {
	return in.stats
}
