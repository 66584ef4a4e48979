package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// EnvOverride is the environment variable that fixes the worker count.
const EnvOverride = "MEDIA_WORKERS"

// Count returns the number of workers for a task type. It follows container
// CPU limits through GOMAXPROCS.
//
// The multiplier reflects the workload:
//   - 1.0 for CPU-bound work (image scaling)
//   - 1.5 for mixed work (PDF compaction: external process plus file I/O)
//
// limit caps the result; 0 means no cap. MEDIA_WORKERS overrides the
// computation but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns one worker per available CPU, capped by limit.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForMixed returns one and a half workers per available CPU, capped by limit.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Run calls fn for every index in [0, n) on at most size goroutines and
// waits for them. Once ctx is done no further indexes are handed out; Run
// then returns ctx.Err().
func Run(ctx context.Context, size, n int, fn func(ctx context.Context, i int)) error {
	if size < 1 {
		size = 1
	}
	if size > n {
		size = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < size; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(ctx, i)
			}
		}()
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return err
}
