// test_helpers_test.go: deterministic RNG seeding and backend fakes shared
// by the package tests.
package rangeio

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"io"
	randv2 "math/rand"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewSource(int64((testSeed1 ^ s1) ^ (testSeed2 ^ s2))))
}

// uint64N returns a pseudo-random value in [0, n) from rng.
func uint64N(rng *randv2.Rand, n uint64) uint64 {
	return rng.Uint64() % n
}

// fillFromRNG fills buf with pseudo-random bytes from rng.
func fillFromRNG(rng *randv2.Rand, buf []byte) {
	for i := 0; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	if tail := len(buf) % 8; tail > 0 {
		v := rng.Uint64()
		start := len(buf) - tail
		for j := 0; j < tail; j++ {
			buf[start+j] = byte(v >> (j * 8))
		}
	}
}

// makeTestData returns n deterministic pseudo-random bytes.
func makeTestData(rng *randv2.Rand, n int) []byte {
	data := make([]byte, n)
	fillFromRNG(rng, data)
	return data
}

// readOp records one backend operation issued through a recordingInput.
type readOp struct {
	region   Region
	vectored bool
	lt       LogType
}

// recordingInput wraps a BytesInput and records every backend operation in
// issue order, so tests can assert on coalescing and dispatch mode.
type recordingInput struct {
	*BytesInput
	ops []readOp
}

func newRecordingInput(data []byte, stats Statistics) *recordingInput {
	return &recordingInput{BytesInput: NewBytesInput(data, stats)}
}

func (in *recordingInput) Read(ctx context.Context, p []byte, offset uint64, lt LogType) error {
	in.ops = append(in.ops, readOp{
		region: Region{Offset: offset, Length: uint64(len(p))},
		lt:     lt,
	})
	return in.BytesInput.Read(ctx, p, offset, lt)
}

func (in *recordingInput) VRead(ctx context.Context, bufs [][]byte, regions []Region, lt LogType) error {
	for _, r := range regions {
		in.ops = append(in.ops, readOp{region: r, vectored: true, lt: lt})
	}
	return in.BytesInput.VRead(ctx, bufs, regions, lt)
}

// failingInput succeeds for failAfter reads, then returns err forever.
type failingInput struct {
	inner     Input
	err       error
	failAfter int
	calls     int
}

func (in *failingInput) Read(ctx context.Context, p []byte, offset uint64, lt LogType) error {
	if in.calls >= in.failAfter {
		return in.err
	}
	in.calls++
	return in.inner.Read(ctx, p, offset, lt)
}

func (in *failingInput) VRead(ctx context.Context, bufs [][]byte, regions []Region, lt LogType) error {
	checkVRead(bufs, regions)
	for i, r := range regions {
		if err := in.Read(ctx, bufs[i], r.Offset, lt); err != nil {
			return err
		}
	}
	return nil
}

func (in *failingInput) Stats() Statistics {
	return in.inner.Stats()
}

// readStream drains s and fails the test on any read error.
func readStream(t *testing.T, s *Stream) []byte {
	t.Helper()
	data, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read stream %s: %v", s.Region(), err)
	}
	return data
}
