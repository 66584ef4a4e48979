package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig(limit int64) Config {
	return Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     20 * time.Millisecond,
	}
}

func TestNewMonitorExplicitLimit(t *testing.T) {
	m := NewMonitor(testConfig(100 << 20))
	if m.Limit() != 100<<20 {
		t.Errorf("Limit() = %d, want %d", m.Limit(), 100<<20)
	}
	if m.IsPaused() {
		t.Error("new monitor should not be paused")
	}
}

func TestCheckMemoryPausesAndResumes(t *testing.T) {
	m := NewMonitor(testConfig(1 << 40))

	// A tiny limit puts any live heap over the critical mark.
	m.limit = 1
	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("expected monitor to pause over the critical mark")
	}

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	m.limit = 1 << 50
	m.checkMemory()
	if m.IsPaused() {
		t.Fatal("expected monitor to resume below the high water mark")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	m := NewMonitor(testConfig(1 << 40))
	m.limit = 1
	m.checkMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestWaitAfterStop(t *testing.T) {
	m := NewMonitor(testConfig(1 << 40))
	m.limit = 1
	m.checkMemory()
	m.Stop()
	m.Stop()

	if err := m.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestWaitNilMonitor(t *testing.T) {
	var m *Monitor
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on nil monitor = %v", err)
	}
	if m.IsPaused() {
		t.Error("IsPaused() on nil monitor = true")
	}
}

func TestStartStop(t *testing.T) {
	m := NewMonitor(testConfig(1 << 40))
	m.Start()
	time.Sleep(60 * time.Millisecond)
	m.Stop()

	if u := m.Usage(); u < 0 {
		t.Errorf("Usage() = %f, want non-negative", u)
	}
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		ratio      string
		wantSource string
		wantRatio  float64
	}{
		{"unset", "", "", "none", 0},
		{"invalid limit", "lots", "", "none", 0},
		{"negative limit", "-5", "", "none", 0},
		{"default ratio", "1073741824", "", "MEMORY_LIMIT", DefaultMemoryRatio},
		{"custom ratio", "1073741824", "0.5", "MEMORY_LIMIT", 0.5},
		{"ratio out of range", "1073741824", "1.5", "MEMORY_LIMIT", DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %f, want %f", got.Ratio, tt.wantRatio)
			}
			if tt.wantSource == "MEMORY_LIMIT" {
				want := int64(float64(1073741824) * tt.wantRatio)
				if got.GoMemLimit != want {
					t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, want)
				}
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
