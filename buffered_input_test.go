package rangeio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	rangeerrors "github.com/rangeio/rangeio/errors"
)

func TestBufferedInputBasic(t *testing.T) {
	for _, vectored := range []bool{false, true} {
		name := "scalar"
		if vectored {
			name = "vectored"
		}
		t.Run(name, func(t *testing.T) {
			rng := newTestRNG(t)
			data := makeTestData(rng, 1<<16)
			input := newRecordingInput(data, nil)
			bi := NewBufferedInput(input, WithVectoredRead(vectored), WithMaxMergeDistance(64))

			regions := []Region{
				{Offset: 0, Length: 100},
				{Offset: 120, Length: 50}, // gap 20, coalesces with the first
				{Offset: 4096, Length: 256},
				{Offset: 40000, Length: 1000},
			}
			streams := make([]*Stream, len(regions))
			for i, r := range regions {
				streams[i] = bi.Enqueue(r)
			}
			if bi.Pending() != len(regions) {
				t.Fatalf("Pending: got %d, want %d", bi.Pending(), len(regions))
			}

			if err := bi.Load(context.Background(), LogTypeTest); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if bi.Pending() != 0 {
				t.Errorf("Pending after Load: got %d, want 0", bi.Pending())
			}

			if len(input.ops) != 3 {
				t.Errorf("backend ops: got %d, want 3 (coalesced)", len(input.ops))
			}
			for _, op := range input.ops {
				if op.vectored != vectored {
					t.Errorf("op %s: vectored=%v, want %v", op.region, op.vectored, vectored)
				}
				if op.lt != LogTypeTest {
					t.Errorf("op %s: log type %s, want test", op.region, op.lt)
				}
			}

			for i, s := range streams {
				r := regions[i]
				if s.Size() != r.Length {
					t.Errorf("stream %d: Size got %d, want %d", i, s.Size(), r.Length)
				}
				got := readStream(t, s)
				if !bytes.Equal(got, data[r.Offset:r.End()]) {
					t.Errorf("stream %d: content mismatch for %s", i, r)
				}
			}
		})
	}
}

func TestBufferedInputEmptyRegion(t *testing.T) {
	bi := NewBufferedInput(NewBytesInput(nil, nil))
	s := bi.Enqueue(Region{Offset: 42})
	if bi.Pending() != 0 {
		t.Errorf("empty region entered the pending set")
	}
	if s.Size() != 0 {
		t.Errorf("Size: got %d, want 0", s.Size())
	}
	if _, err := s.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Read: got %v, want io.EOF", err)
	}
	// Load with nothing pending is a no-op.
	if err := bi.Load(context.Background(), LogTypeTest); err != nil {
		t.Errorf("empty Load: %v", err)
	}
}

func TestBufferedInputReadBeforeLoad(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 1024)
	bi := NewBufferedInput(NewBytesInput(data, nil))
	s := bi.Enqueue(Region{Offset: 0, Length: 16})
	if _, err := s.Read(make([]byte, 16)); !errors.Is(err, rangeerrors.ErrRegionNotLoaded) {
		t.Errorf("read before Load: got %v, want ErrRegionNotLoaded", err)
	}
}

func TestBufferedInputReloadInvalidatesStreams(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 1<<14)
	bi := NewBufferedInput(NewBytesInput(data, nil))
	ctx := context.Background()

	old := bi.Enqueue(Region{Offset: 0, Length: 64})
	if err := bi.Load(ctx, LogTypeTest); err != nil {
		t.Fatalf("Load 1: %v", err)
	}
	if got := readStream(t, old); !bytes.Equal(got, data[:64]) {
		t.Fatal("cycle 1 stream content mismatch")
	}

	fresh := bi.Enqueue(Region{Offset: 8192, Length: 64})
	if err := bi.Load(ctx, LogTypeTest); err != nil {
		t.Fatalf("Load 2: %v", err)
	}
	if got := readStream(t, fresh); !bytes.Equal(got, data[8192:8256]) {
		t.Fatal("cycle 2 stream content mismatch")
	}
	if _, err := old.ReadAt(make([]byte, 8), 0); !errors.Is(err, rangeerrors.ErrStaleStream) {
		t.Errorf("stale stream read: got %v, want ErrStaleStream", err)
	}
}

func TestBufferedInputBackendFailure(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 1<<16)
	backendErr := errors.New("backend down")
	ctx := context.Background()

	for _, vectored := range []bool{false, true} {
		name := "scalar"
		if vectored {
			name = "vectored"
		}
		t.Run(name, func(t *testing.T) {
			input := &failingInput{inner: NewBytesInput(data, nil), err: backendErr, failAfter: 2}
			bi := NewBufferedInput(input, WithVectoredRead(vectored), WithMaxMergeDistance(0))

			survivor := bi.Enqueue(Region{Offset: 0, Length: 32})
			if err := bi.Load(ctx, LogTypeTest); err != nil {
				t.Fatalf("Load 1: %v", err)
			}

			// Two far-apart regions, the second backend read fails.
			a := bi.Enqueue(Region{Offset: 100, Length: 32})
			b := bi.Enqueue(Region{Offset: 50000, Length: 32})
			err := bi.Load(ctx, LogTypeTest)
			if !errors.Is(err, backendErr) {
				t.Fatalf("Load 2: got %v, want wrapped backend error", err)
			}
			if bi.Pending() != 0 {
				t.Errorf("Pending after failed load: got %d, want 0", bi.Pending())
			}
			for _, s := range []*Stream{a, b} {
				if _, rerr := s.Read(make([]byte, 8)); !errors.Is(rerr, rangeerrors.ErrRegionNotLoaded) {
					t.Errorf("failed-cycle stream %s: got %v, want ErrRegionNotLoaded", s.Region(), rerr)
				}
			}
			if _, rerr := survivor.Read(make([]byte, 8)); !errors.Is(rerr, rangeerrors.ErrStaleStream) {
				t.Errorf("pre-failure stream: got %v, want ErrStaleStream", rerr)
			}

			// The instance stays usable: a later cycle loads fine once the
			// backend recovers.
			input.failAfter = 1 << 30
			c := bi.Enqueue(Region{Offset: 200, Length: 16})
			if err := bi.Load(ctx, LogTypeTest); err != nil {
				t.Fatalf("Load 3: %v", err)
			}
			if got := readStream(t, c); !bytes.Equal(got, data[200:216]) {
				t.Error("post-recovery stream content mismatch")
			}
		})
	}
}

func TestBufferedInputEnqueueFastPath(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 4096)
	input := newRecordingInput(data, nil)
	bi := NewBufferedInput(input)
	ctx := context.Background()

	bi.Enqueue(Region{Offset: 0, Length: 1024})
	if err := bi.Load(ctx, LogTypeFooter); err != nil {
		t.Fatalf("Load: %v", err)
	}
	loads := len(input.ops)

	// A range inside the loaded buffer is served without touching the
	// backend or the pending set.
	s := bi.Enqueue(Region{Offset: 100, Length: 200})
	if bi.Pending() != 0 {
		t.Fatalf("fast-path enqueue appended to pending set")
	}
	if got := readStream(t, s); !bytes.Equal(got, data[100:300]) {
		t.Error("fast-path stream content mismatch")
	}
	if len(input.ops) != loads {
		t.Errorf("fast path issued %d extra backend ops", len(input.ops)-loads)
	}

	// A range extending beyond the buffer still goes to the backend.
	miss := bi.Enqueue(Region{Offset: 1000, Length: 100})
	if bi.Pending() != 1 {
		t.Fatalf("partially covered range did not enter the pending set")
	}
	if err := bi.Load(ctx, LogTypeTest); err != nil {
		t.Fatalf("Load 2: %v", err)
	}
	if got := readStream(t, miss); !bytes.Equal(got, data[1000:1100]) {
		t.Error("miss stream content mismatch")
	}
}

func TestBufferedInputContextCanceled(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 1024)
	bi := NewBufferedInput(NewBytesInput(data, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bi.Enqueue(Region{Offset: 0, Length: 16})
	if err := bi.Load(ctx, LogTypeTest); !errors.Is(err, context.Canceled) {
		t.Errorf("Load with canceled ctx: got %v, want context.Canceled", err)
	}
}

func TestBufferedInputStatistics(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 1<<16)
	stats := NewAtomicStatistics()
	bi := NewBufferedInput(NewBytesInput(data, stats), WithMaxMergeDistance(10))

	// [0,20) + gap 10 + [30,20) merge into one 50-byte read; [1000,30) stays
	// separate.
	bi.Enqueue(Region{Offset: 0, Length: 20})
	bi.Enqueue(Region{Offset: 30, Length: 20})
	bi.Enqueue(Region{Offset: 1000, Length: 30})
	if err := bi.Load(context.Background(), LogTypeTest); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if stats.Reads() != 2 {
		t.Errorf("Reads: got %d, want 2", stats.Reads())
	}
	if stats.RawBytesRead() != 80 {
		t.Errorf("RawBytesRead: got %d, want 80", stats.RawBytesRead())
	}
	if stats.RawOverreadBytes() != 10 {
		t.Errorf("RawOverreadBytes: got %d, want 10", stats.RawOverreadBytes())
	}
}

func TestBufferedInputRandomizedCoverage(t *testing.T) {
	rng := newTestRNG(t)
	const fileSize = 1 << 18
	data := makeTestData(rng, fileSize)
	ctx := context.Background()

	for _, dist := range []uint64{0, 16, 4096, DefaultMaxMergeDistance} {
		for _, vectored := range []bool{false, true} {
			bi := NewBufferedInput(NewBytesInput(data, nil),
				WithMaxMergeDistance(dist), WithVectoredRead(vectored))

			for cycle := 0; cycle < 3; cycle++ {
				n := int(uint64N(rng, 100)) + 1
				regions := make([]Region, n)
				streams := make([]*Stream, n)
				for i := range regions {
					length := uint64N(rng, 2048) + 1
					regions[i] = Region{Offset: uint64N(rng, fileSize - length), Length: length}
					streams[i] = bi.Enqueue(regions[i])
				}
				if err := bi.Load(ctx, LogTypeStripe); err != nil {
					t.Fatalf("dist=%d vectored=%v cycle=%d: Load: %v", dist, vectored, cycle, err)
				}
				for i, s := range streams {
					r := regions[i]
					if got := readStream(t, s); !bytes.Equal(got, data[r.Offset:r.End()]) {
						t.Fatalf("dist=%d vectored=%v cycle=%d: stream %s content mismatch",
							dist, vectored, cycle, r)
					}
				}
			}
		}
	}
}

func TestBufferedInputScalarVectoredParity(t *testing.T) {
	rng := newTestRNG(t)
	data := makeTestData(rng, 1<<16)
	ctx := context.Background()

	regions := make([]Region, 50)
	for i := range regions {
		length := uint64N(rng, 1024) + 1
		regions[i] = Region{Offset: uint64N(rng, uint64(len(data)) - length), Length: length}
	}

	load := func(vectored bool) [][]byte {
		bi := NewBufferedInput(NewBytesInput(data, nil), WithVectoredRead(vectored))
		streams := make([]*Stream, len(regions))
		for i, r := range regions {
			streams[i] = bi.Enqueue(r)
		}
		if err := bi.Load(ctx, LogTypeTest); err != nil {
			t.Fatalf("vectored=%v: Load: %v", vectored, err)
		}
		out := make([][]byte, len(streams))
		for i, s := range streams {
			out[i] = readStream(t, s)
		}
		return out
	}

	scalar := load(false)
	vectored := load(true)
	for i := range scalar {
		if !bytes.Equal(scalar[i], vectored[i]) {
			t.Errorf("region %s: scalar and vectored loads disagree", regions[i])
		}
	}
}

func TestSetDefaultVectoredRead(t *testing.T) {
	orig := DefaultVectoredRead()
	defer SetDefaultVectoredRead(orig)

	rng := newTestRNG(t)
	data := makeTestData(rng, 4096)

	SetDefaultVectoredRead(true)
	input := newRecordingInput(data, nil)
	bi := NewBufferedInput(input)
	bi.Enqueue(Region{Offset: 0, Length: 128})
	if err := bi.Load(context.Background(), LogTypeTest); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(input.ops) != 1 || !input.ops[0].vectored {
		t.Errorf("process-wide vectored default not honored: ops=%v", input.ops)
	}
}
