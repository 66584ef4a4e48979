package workers

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")
	procs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"cpu no limit", 1.0, 0, procs},
		{"io no limit", 2.0, 0, procs * 2},
		{"limit caps", 2.0, 1, 1},
		{"tiny multiplier floors at one", 0.01, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{"override", "4", 0, 4},
		{"override capped", "16", 8, 8},
		{"invalid ignored", "many", 1, 1},
		{"zero ignored", "0", 1, 1},
		{"negative ignored", "-3", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.env)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count with %s=%q = %d, want %d", EnvOverride, tt.env, got, tt.want)
			}
		})
	}
}

func TestHelpersOrdering(t *testing.T) {
	t.Setenv(EnvOverride, "")
	cpu, mixed := ForCPU(0), ForMixed(0)
	if cpu > mixed {
		t.Errorf("expected ForCPU <= ForMixed, got %d, %d", cpu, mixed)
	}
}

func TestRunVisitsEveryIndex(t *testing.T) {
	const n = 100
	var mu sync.Mutex
	seen := make(map[int]int)

	err := Run(context.Background(), 4, n, func(_ context.Context, i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seen) != n {
		t.Fatalf("visited %d indexes, want %d", len(seen), n)
	}
	for i, c := range seen {
		if c != 1 {
			t.Errorf("index %d visited %d times", i, c)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var running, peak int32
	err := Run(context.Background(), 3, 30, func(_ context.Context, _ int) {
		cur := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32

	err := Run(ctx, 1, 1000, func(_ context.Context, i int) {
		if atomic.AddInt32(&calls, 1) == 5 {
			cancel()
		}
	})
	if err != context.Canceled {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if c := atomic.LoadInt32(&calls); c >= 1000 {
		t.Errorf("expected Run to stop early, got %d calls", c)
	}
}

func TestRunEmpty(t *testing.T) {
	if err := Run(context.Background(), 4, 0, func(context.Context, int) {
		t.Error("fn called for empty input")
	}); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
