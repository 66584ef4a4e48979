package metrics

import (
	"os"
	"runtime"
	"time"

	"shelter-media/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	TotalRecords   int   `json:"totalRecords"`
	TotalImages    int   `json:"totalImages"`
	TotalDocuments int   `json:"totalDocuments"`
	TotalLinks     int   `json:"totalLinks"`
	TotalSigned    int   `json:"totalSigned"`
	TotalBytes     int64 `json:"totalBytes"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty, in which
// case database file sizes are not reported.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	GoMemAllocBytes.Set(float64(mem.Alloc))

	if c.dbPath != "" {
		for file, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
			if info, err := os.Stat(c.dbPath + suffix); err == nil {
				DBSizeBytes.WithLabelValues(file).Set(float64(info.Size()))
			}
		}
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	MediaRecordsTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
	MediaRecordsTotal.WithLabelValues("document").Set(float64(stats.TotalDocuments))
	MediaRecordsTotal.WithLabelValues("link").Set(float64(stats.TotalLinks))
	MediaStoredBytes.Set(float64(stats.TotalBytes))
	MediaSignedTotal.Set(float64(stats.TotalSigned))

	logging.Debug("Metrics collected: records=%d, images=%d, documents=%d, links=%d, bytes=%d",
		stats.TotalRecords, stats.TotalImages, stats.TotalDocuments, stats.TotalLinks, stats.TotalBytes)
}
