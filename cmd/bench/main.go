// Bench measures rangeio coalescing effectiveness and read throughput over a
// generated file, hashing every loaded region into an order-independent
// digest that is printed at the end (it is not compared against anything).
//
// Usage:
//
//	go run ./cmd/bench -size 256 -regions 10000 -merge-distance 1048576
//
// Flags:
//
//	-size            File size in MiB (default: 256)
//	-regions         Number of random regions to enqueue per load (default: 10,000)
//	-max-region      Maximum region length in bytes (default: 65,536)
//	-merge-distance  Coalescing gap tolerance in bytes (default: 1 MiB)
//	-backend         Backend: mmap, file, or bytes (default: mmap)
//	-vectored        Use the vectored backend dispatch path (default: false)
//	-parallelism     VRead fan-out for the file backend (default: 8)
//	-workers         Worker goroutines for verification hashing (default: GOMAXPROCS)
//	-hash            Verification hash: xxhash, xxh3, murmur3, or none (default: xxhash)
//	-loads           Number of load cycles to run (default: 3)
//	-seed            RNG seed for region generation (default: 1)
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	"github.com/rangeio/rangeio"
)

func main() {
	sizeMiB := flag.Int("size", 256, "file size in MiB")
	numRegions := flag.Int("regions", 10_000, "random regions per load")
	maxRegion := flag.Uint64("max-region", 64<<10, "maximum region length in bytes")
	mergeDistance := flag.Uint64("merge-distance", rangeio.DefaultMaxMergeDistance, "coalescing gap tolerance in bytes")
	backend := flag.String("backend", "mmap", "backend: mmap, file, or bytes")
	vectored := flag.Bool("vectored", false, "use the vectored backend dispatch path")
	parallelism := flag.Int("parallelism", 8, "VRead fan-out for the file backend")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "worker goroutines for verification hashing")
	hashName := flag.String("hash", "xxhash", "verification hash: xxhash, xxh3, murmur3, or none")
	numLoads := flag.Int("loads", 3, "number of load cycles")
	seed := flag.Uint64("seed", 1, "RNG seed for region generation")
	flag.Parse()

	var hashFn func([]byte) uint64
	switch *hashName {
	case "xxhash":
		hashFn = xxhash.Sum64
	case "xxh3":
		hashFn = xxh3.Hash
	case "murmur3":
		hashFn = murmur3.Sum64
	case "none":
		hashFn = nil
	default:
		fmt.Printf("Unknown hash: %s (use 'xxhash', 'xxh3', 'murmur3', or 'none')\n", *hashName)
		return
	}

	size := uint64(*sizeMiB) << 20
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	fmt.Println("Generating data...")
	data := make([]byte, size)
	fillRandom(rng, data)

	path, cleanup, err := writeTempFile(data)
	if err != nil {
		fmt.Printf("Failed to write data file: %v\n", err)
		return
	}
	defer cleanup()

	stats := rangeio.NewAtomicStatistics()
	input, closeInput, err := openBackend(*backend, path, data, stats, *parallelism)
	if err != nil {
		fmt.Printf("Failed to open backend: %v\n", err)
		return
	}
	defer closeInput()

	bi := rangeio.NewBufferedInput(input,
		rangeio.WithMaxMergeDistance(*mergeDistance),
		rangeio.WithVectoredRead(*vectored),
	)

	ctx := context.Background()
	var totalRequested uint64
	var loadDuration, verifyDuration time.Duration
	var digest uint64
	enqueued := *numRegions * *numLoads

	for cycle := 0; cycle < *numLoads; cycle++ {
		streams := make([]*rangeio.Stream, *numRegions)
		for i := range streams {
			length := rng.Uint64N(*maxRegion) + 1
			offset := rng.Uint64N(size - length)
			totalRequested += length
			streams[i] = bi.Enqueue(rangeio.Region{Offset: offset, Length: length})
		}

		loadStart := time.Now()
		if err := bi.Load(ctx, rangeio.LogTypeTest); err != nil {
			fmt.Printf("Load failed: %v\n", err)
			return
		}
		loadDuration += time.Since(loadStart)

		if hashFn == nil {
			continue
		}

		// Distinct streams may be read concurrently once Load has returned.
		// XOR-fold the per-stream hashes so the digest is independent of
		// completion order and of the scalar/vectored dispatch choice.
		verifyStart := time.Now()
		hashes := make([]uint64, len(streams))
		pf := rangeio.NewParallelForOwned(0, uint64(len(streams)), uint64(*workers))
		err := pf.ExecuteIndex(func(i uint64) error {
			s := streams[i]
			chunk, err := s.Next(int(s.Size()))
			if err != nil {
				return fmt.Errorf("stream %s: %w", s.Region(), err)
			}
			hashes[i] = hashFn(chunk)
			return nil
		})
		if cerr := pf.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Printf("Verification failed: %v\n", err)
			return
		}
		for _, h := range hashes {
			digest ^= h
		}
		verifyDuration += time.Since(verifyStart)
	}

	rawBytes := stats.RawBytesRead()
	overread := stats.RawOverreadBytes()
	reads := stats.Reads()

	fmt.Printf("\n")
	fmt.Printf("Backend: %s  vectored: %v  merge distance: %d\n", *backend, *vectored, *mergeDistance)
	fmt.Printf("  Regions enqueued:   %d\n", enqueued)
	fmt.Printf("  Backend reads:      %d (%.1fx coalescing)\n", reads, float64(enqueued)/float64(max(reads, 1)))
	fmt.Printf("  Bytes requested:    %.1f MB\n", float64(totalRequested)/1_000_000)
	fmt.Printf("  Bytes read:         %.1f MB\n", float64(rawBytes)/1_000_000)
	fmt.Printf("  Over-read:          %.1f MB (%.2f%%)\n", float64(overread)/1_000_000, 100*float64(overread)/float64(max(rawBytes, 1)))
	fmt.Printf("  Load time:          %.3f sec (%.1f MB/sec)\n", loadDuration.Seconds(), float64(rawBytes)/1_000_000/loadDuration.Seconds())
	if hashFn != nil {
		fmt.Printf("  Verify time:        %.3f sec (%s)\n", verifyDuration.Seconds(), *hashName)
		fmt.Printf("  Digest:             %016x\n", digest)
	}
}

// fillRandom fills p eight bytes at a time from rng.
func fillRandom(rng *rand.Rand, p []byte) {
	for len(p) >= 8 {
		v := rng.Uint64()
		for i := 0; i < 8; i++ {
			p[i] = byte(v >> (8 * i))
		}
		p = p[8:]
	}
	for i := range p {
		p[i] = byte(rng.Uint64())
	}
}

func writeTempFile(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "rangeio-bench-*.dat")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func openBackend(name, path string, data []byte, stats rangeio.Statistics, parallelism int) (rangeio.Input, func(), error) {
	switch name {
	case "mmap":
		in, err := rangeio.OpenMmapInput(path, stats)
		if err != nil {
			return nil, nil, err
		}
		return in, func() { _ = in.Close() }, nil
	case "file":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		in := rangeio.NewReaderAtInput(f, stats)
		in.Parallelism = parallelism
		return in, func() { _ = f.Close() }, nil
	case "bytes":
		return rangeio.NewBytesInput(data, stats), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (use 'mmap', 'file', or 'bytes')", name)
	}
}
