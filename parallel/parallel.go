// Package parallel provides chunked worker execution for per-particle loops.
//
// Work is split into contiguous chunks, one per worker, so neighboring
// particles stay on the same core. Callers must not touch shared mutable
// state from the loop body unless it is guarded (see spatial cell locks).
package parallel

import (
	"math"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// NumWorkers returns the worker count used by For and ForChunks.
func NumWorkers() int { return runtime.GOMAXPROCS(0) }

// For runs fn(i) for every i in [0, n) across worker goroutines and waits
// for completion.
func For(n int, fn func(i int)) {
	ForChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// ForChunks splits [0, n) into one contiguous range per worker and runs
// fn(start, end) for each range concurrently.
func ForChunks(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	numWorkers := NumWorkers()
	chunkSize := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(i0, i1 int) {
			defer wg.Done()
			fn(i0, i1)
		}(start, end)
	}
	wg.Wait()
}

// FindAABB computes the axis-aligned bounding box of points with a
// per-worker partial reduce.
func FindAABB(points []mgl64.Vec3) (lower, upper mgl64.Vec3) {
	lower = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	upper = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	if len(points) == 0 {
		return lower, upper
	}

	numWorkers := NumWorkers()
	partialLo := make([]mgl64.Vec3, numWorkers)
	partialHi := make([]mgl64.Vec3, numWorkers)
	for w := range partialLo {
		partialLo[w] = lower
		partialHi[w] = upper
	}

	chunkSize := (len(points) + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, i0, i1 int) {
			defer wg.Done()
			lo, hi := partialLo[w], partialHi[w]
			for _, p := range points[i0:i1] {
				for d := 0; d < 3; d++ {
					if p[d] < lo[d] {
						lo[d] = p[d]
					}
					if p[d] > hi[d] {
						hi[d] = p[d]
					}
				}
			}
			partialLo[w], partialHi[w] = lo, hi
		}(w, start, end)
	}
	wg.Wait()

	for w := 0; w < numWorkers; w++ {
		for d := 0; d < 3; d++ {
			if partialLo[w][d] < lower[d] {
				lower[d] = partialLo[w][d]
			}
			if partialHi[w][d] > upper[d] {
				upper[d] = partialHi[w][d]
			}
		}
	}
	return lower, upper
}
