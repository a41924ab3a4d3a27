package rangeio

import (
	"sync/atomic"

	"github.com/go-kit/log"
)

// DefaultMaxMergeDistance is the coalescing gap tolerance used when no
// WithMaxMergeDistance option is given. High-latency block stores amortize a
// request round trip over roughly this many wasted bytes.
const DefaultMaxMergeDistance = 1 << 20 // 1 MiB

// defaultVectoredRead is the process-wide default for the vectored-read
// preference. Instances override it with WithVectoredRead.
var defaultVectoredRead atomic.Bool

// SetDefaultVectoredRead sets the process-wide default backend dispatch mode
// for BufferedInputs constructed afterwards.
func SetDefaultVectoredRead(v bool) {
	defaultVectoredRead.Store(v)
}

// DefaultVectoredRead reports the process-wide vectored-read default.
func DefaultVectoredRead() bool {
	return defaultVectoredRead.Load()
}

// Option is a functional option for configuring a BufferedInput.
type Option func(*config)

type config struct {
	maxMergeDistance uint64
	vectoredRead     bool
	pool             MemoryPool
	logger           log.Logger
}

func defaultConfig() *config {
	return &config{
		maxMergeDistance: DefaultMaxMergeDistance,
		vectoredRead:     DefaultVectoredRead(),
		pool:             NewAllocPool(),
		logger:           log.NewNopLogger(),
	}
}

// WithMaxMergeDistance sets the maximum tolerated gap, in bytes, between two
// consecutive sorted regions for them to be coalesced into one read.
func WithMaxMergeDistance(n uint64) Option {
	return func(c *config) {
		c.maxMergeDistance = n
	}
}

// WithVectoredRead selects the vectored (true) or scalar (false) backend
// dispatch path, overriding the process-wide default.
func WithVectoredRead(v bool) Option {
	return func(c *config) {
		c.vectoredRead = v
	}
}

// WithMemoryPool sets the pool that backs merged-region buffers. The
// BufferedInput owns the pool: it clears it on every load and expects no
// other user.
func WithMemoryPool(p MemoryPool) Option {
	return func(c *config) {
		c.pool = p
	}
}

// WithLogger attaches a logger for debug-level load reporting.
func WithLogger(l log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
