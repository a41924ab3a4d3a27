package rangeio

import (
	"fmt"
	"io"

	rangeerrors "github.com/rangeio/rangeio/errors"
)

// StreamID is an advisory identifier a caller can attach to an enqueued
// range (e.g. column and stream kind). The core ignores it.
type StreamID uint64

// Stream is a sequential-read view over a promised byte range.
//
// A stream returned by Enqueue for a not-yet-buffered range is lazy: it
// becomes readable once the corresponding Load completes and is invalidated
// when a later Load recycles the buffers. A stream for a range already
// resident (the enqueue fast path) is readable immediately but shares the
// same invalidation rule.
//
// Thread Safety:
//   - Distinct streams from the same BufferedInput may be read concurrently
//     once Load has returned
//   - A single stream must not be read concurrently with itself
type Stream struct {
	bi     *BufferedInput
	region Region
	cycle  uint64 // load count at which this stream's bytes are current
	lazy   bool
	data   []byte
	pos    uint64
}

// emptyStream is handed out for zero-length enqueues.
func emptyStream() *Stream {
	return &Stream{}
}

// view resolves the stream against its BufferedInput's buffer index,
// enforcing the load-cycle contract on every call.
func (s *Stream) view() ([]byte, error) {
	if s.bi == nil {
		return s.data, nil
	}
	loads := s.bi.loads
	switch {
	case loads < s.cycle:
		return nil, fmt.Errorf("rangeio: stream %s: %w", s.region, rangeerrors.ErrRegionNotLoaded)
	case loads > s.cycle:
		return nil, fmt.Errorf("rangeio: stream %s: %w", s.region, rangeerrors.ErrStaleStream)
	}
	if s.data == nil && s.lazy {
		data, ok := s.bi.readInternal(s.region.Offset, s.region.Length)
		if !ok {
			return nil, fmt.Errorf("rangeio: stream %s not covered by loaded buffers: %w",
				s.region, rangeerrors.ErrRegionNotLoaded)
		}
		s.data = data
	}
	return s.data, nil
}

// Size returns the number of bytes the stream was promised.
func (s *Stream) Size() uint64 {
	return s.region.Length
}

// Region returns the enqueued byte range.
func (s *Stream) Region() Region {
	return s.region
}

// Remaining returns the number of unread bytes.
func (s *Stream) Remaining() uint64 {
	return s.region.Length - s.pos
}

// Read implements io.Reader over the promised range.
func (s *Stream) Read(p []byte) (int, error) {
	data, err := s.view()
	if err != nil {
		return 0, err
	}
	if s.pos >= uint64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[s.pos:])
	s.pos += uint64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt over the promised range. It does not affect
// the sequential position.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	data, err := s.view()
	if err != nil {
		return 0, err
	}
	if off < 0 || off > int64(len(data)) {
		return 0, fmt.Errorf("rangeio: stream %s: offset %d: %w", s.region, off, rangeerrors.ErrOutOfRange)
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Next returns the next chunk of up to max bytes without copying and
// advances the position. It returns io.EOF when the stream is exhausted.
// The returned slice is valid until the next Load on the BufferedInput.
func (s *Stream) Next(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	data, err := s.view()
	if err != nil {
		return nil, err
	}
	if s.pos >= uint64(len(data)) {
		return nil, io.EOF
	}
	chunk := data[s.pos:]
	if len(chunk) > max {
		chunk = chunk[:max]
	}
	s.pos += uint64(len(chunk))
	return chunk, nil
}

// Skip advances the position by n bytes without reading.
func (s *Stream) Skip(n uint64) error {
	if _, err := s.view(); err != nil {
		return err
	}
	if s.pos+n > s.region.Length {
		return fmt.Errorf("rangeio: stream %s: skip %d at %d: %w", s.region, n, s.pos, rangeerrors.ErrOutOfRange)
	}
	s.pos += n
	return nil
}
