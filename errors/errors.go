// Package errors defines all exported error sentinels for the rangeio library.
//
// This is the single source of truth for error values. The top-level rangeio
// package wraps these with context via fmt.Errorf("...: %w", err), so callers
// can match them with errors.Is across package boundaries.
package errors

import "errors"

// Stream errors
var (
	// ErrRegionNotLoaded is returned when a lazy stream is read before the
	// load pass that would satisfy it has completed, or after a failed load.
	ErrRegionNotLoaded = errors.New("rangeio: region not loaded")

	// ErrStaleStream is returned when a stream from an earlier load cycle is
	// read after a newer load has recycled its backing buffer.
	ErrStaleStream = errors.New("rangeio: stream invalidated by a later load")
)

// Backend I/O errors
var (
	ErrShortRead  = errors.New("rangeio: short read from backend")
	ErrOutOfRange = errors.New("rangeio: read beyond end of input")

	// ErrInputClosed is returned by inputs whose underlying resource has been
	// released (e.g. an unmapped file).
	ErrInputClosed = errors.New("rangeio: input is closed")
)

// Executor errors
var (
	ErrExecutorClosed = errors.New("rangeio: executor is closed")
)
