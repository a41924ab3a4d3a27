package rangeio

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Statistics is the optional, non-owning sink for backend read accounting.
// All implementations must be safe for concurrent use. A nil Statistics is
// tolerated everywhere in this package.
type Statistics interface {
	// IncRawBytesRead records bytes actually transferred from the backend.
	IncRawBytesRead(n uint64)

	// IncRawOverreadBytes records bytes read from the backend that no
	// enqueued region requested, i.e. coalescing gaps absorbed during the
	// merge pass. Operators use this to tune the max merge distance.
	IncRawOverreadBytes(n uint64)

	// IncReads records the number of backend read operations issued.
	IncReads(n uint64)

	// IncBlockedOnBudgetNanos records time spent blocked waiting for byte
	// budget before a load could proceed.
	IncBlockedOnBudgetNanos(n uint64)
}

// AtomicStatistics counts reads with plain atomics.
//
// Thread Safety:
//   - All methods are safe for concurrent use
type AtomicStatistics struct {
	rawBytesRead         atomic.Uint64
	rawOverreadBytes     atomic.Uint64
	reads                atomic.Uint64
	blockedOnBudgetNanos atomic.Uint64
}

// NewAtomicStatistics returns a zeroed statistics sink.
func NewAtomicStatistics() *AtomicStatistics {
	return &AtomicStatistics{}
}

func (s *AtomicStatistics) IncRawBytesRead(n uint64)     { s.rawBytesRead.Add(n) }
func (s *AtomicStatistics) IncRawOverreadBytes(n uint64) { s.rawOverreadBytes.Add(n) }
func (s *AtomicStatistics) IncReads(n uint64)                { s.reads.Add(n) }
func (s *AtomicStatistics) IncBlockedOnBudgetNanos(n uint64) { s.blockedOnBudgetNanos.Add(n) }

// RawBytesRead returns the total bytes transferred from the backend.
func (s *AtomicStatistics) RawBytesRead() uint64 { return s.rawBytesRead.Load() }

// RawOverreadBytes returns the total over-read bytes absorbed by coalescing.
func (s *AtomicStatistics) RawOverreadBytes() uint64 { return s.rawOverreadBytes.Load() }

// Reads returns the total number of backend read operations issued.
func (s *AtomicStatistics) Reads() uint64 { return s.reads.Load() }

// BlockedOnBudgetNanos returns the total time spent blocked on byte budget.
func (s *AtomicStatistics) BlockedOnBudgetNanos() uint64 { return s.blockedOnBudgetNanos.Load() }

// PrometheusStatistics exports read accounting as Prometheus counters.
type PrometheusStatistics struct {
	rawBytesRead        prometheus.Counter
	rawOverreadBytes    prometheus.Counter
	reads               prometheus.Counter
	blockedOnBudgetSecs prometheus.Counter
}

// NewPrometheusStatistics registers the rangeio read counters with reg and
// returns the sink. Registration failures (e.g. duplicate registration)
// surface as errors.
func NewPrometheusStatistics(reg prometheus.Registerer) (*PrometheusStatistics, error) {
	s := &PrometheusStatistics{
		rawBytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangeio_raw_bytes_read_total",
			Help: "Bytes transferred from the backing store.",
		}),
		rawOverreadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangeio_raw_overread_bytes_total",
			Help: "Bytes read that no enqueued region requested (coalescing gaps).",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangeio_reads_total",
			Help: "Backend read operations issued.",
		}),
		blockedOnBudgetSecs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rangeio_blocked_on_budget_seconds_total",
			Help: "Time spent blocked waiting for byte budget.",
		}),
	}
	for _, c := range []prometheus.Collector{s.rawBytesRead, s.rawOverreadBytes, s.reads, s.blockedOnBudgetSecs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStatistics) IncRawBytesRead(n uint64)     { s.rawBytesRead.Add(float64(n)) }
func (s *PrometheusStatistics) IncRawOverreadBytes(n uint64) { s.rawOverreadBytes.Add(float64(n)) }
func (s *PrometheusStatistics) IncReads(n uint64)            { s.reads.Add(float64(n)) }
func (s *PrometheusStatistics) IncBlockedOnBudgetNanos(n uint64) {
	s.blockedOnBudgetSecs.Add(float64(n) / 1e9)
}
