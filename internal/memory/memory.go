package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"shelter-media/internal/logging"
	"shelter-media/internal/metrics"
)

var log = logging.Component("memory")

// Config holds the backpressure thresholds of a Monitor.
type Config struct {
	// MemoryLimitBytes is the soft limit; 0 uses GOMEMLIMIT, if any.
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit below which paused work resumes.
	HighWaterMark float64

	// CriticalWaterMark is the fraction of the limit at which bulk work pauses.
	CriticalWaterMark float64

	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used by the server and the batch tool.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and pauses bulk rescale jobs while it is
// critical. Decoded images and PDF buffers dominate the heap during those
// jobs.
type Monitor struct {
	config Config
	limit  int64

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. Without a limit it never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			log.Info("using GOMEMLIMIT %s for backpressure", formatBytes(limit))
		}
	}
	if limit == 0 {
		log.Warn("no memory limit configured, bulk job backpressure disabled")
	}

	return &Monitor{
		config: config,
		limit:  limit,
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

// Start samples memory usage in the background until Stop is called.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.checkMemory()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any waiters. It is safe to call twice.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) checkMemory() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	metrics.GoMemAllocBytes.Set(float64(stats.Alloc))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = stats.Alloc
	if m.limit == 0 {
		return
	}

	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.paused:
		log.Warn("memory critical (%.1f%% of limit), pausing bulk jobs", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.paused:
		log.Info("memory recovered (%.1f%% of limit), resuming bulk jobs", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while memory usage is critical. It returns ctx.Err() when the
// context ends first and context.Canceled when the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	if m == nil {
		return ctx.Err()
	}

	m.mu.RLock()
	paused, resume := m.paused, m.resume
	m.mu.RUnlock()
	if !paused {
		return ctx.Err()
	}

	select {
	case <-resume:
		return ctx.Err()
	case <-m.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused reports whether bulk work is currently paused.
func (m *Monitor) IsPaused() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns heap usage as a fraction of the limit, or 0 without one.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

// Limit returns the limit the monitor enforces, 0 when disabled.
func (m *Monitor) Limit() int64 {
	return m.limit
}
