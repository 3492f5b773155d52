package utils

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// ParallelFactor bounds the number of row bands ParallelForEachRow splits an image into.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachPixel calls f once for every [x, y] inside size. Rows are banded with
// ParallelForEachRow, so f must only write state owned by its own pixel.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	ParallelForEachRow(size.Y, func(y int) {
		for x := 0; x < size.X; x++ {
			f(x, y)
		}
	})
}

// ParallelForEachRow calls f once per row in [0, height), spreading bands of rows over
// ParallelFactor goroutines. Filters that only write their own row use this.
func ParallelForEachRow(height int, f func(y int)) {
	bands := ParallelFactor
	if bands > height {
		bands = height
	}
	if bands <= 1 {
		for y := 0; y < height; y++ {
			f(y)
		}
		return
	}
	var waitGroup sync.WaitGroup
	waitGroup.Add(bands)
	for b := 0; b < bands; b++ {
		from, to := b*height/bands, (b+1)*height/bands
		utils.PanicCapturingGo(func() {
			defer waitGroup.Done()
			for y := from; y < to; y++ {
				f(y)
			}
		})
	}
	waitGroup.Wait()
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs every function on its own goroutine and waits for all of them. The
// first failure or panic cancels the context shared by the others. Cancellation errors
// that follow a real failure are dropped from the combined error.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		combined error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if combined == nil || !errors.Is(err, context.Canceled) {
			combined = multierr.Append(combined, err)
		}
		mu.Unlock()
		cancel()
	}

	wg.Add(len(fs))
	for _, f := range fs {
		f := f
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					fail(fmt.Errorf("panic in parallel function: %v", p))
				}
			}()
			if err := f(ctx); err != nil {
				fail(err)
			}
		}()
	}
	wg.Wait()
	return time.Since(start), combined
}
