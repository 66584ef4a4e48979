package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric prometheus.Collector
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"DBQueryTotal", DBQueryTotal},
		{"DBQueryDuration", DBQueryDuration},
		{"DBTransactionDuration", DBTransactionDuration},
		{"DBConflictsTotal", DBConflictsTotal},
		{"DBSizeBytes", DBSizeBytes},
		{"BlobOperationsTotal", BlobOperationsTotal},
		{"BlobOperationDuration", BlobOperationDuration},
		{"IngestTotal", IngestTotal},
		{"IngestBytes", IngestBytes},
		{"TransformsTotal", TransformsTotal},
		{"TransformDuration", TransformDuration},
		{"ExternalToolRuns", ExternalToolRuns},
		{"ExternalToolDuration", ExternalToolDuration},
		{"ThumbnailCacheHits", ThumbnailCacheHits},
		{"ThumbnailCacheMisses", ThumbnailCacheMisses},
		{"PreferenceChangesTotal", PreferenceChangesTotal},
		{"ReelectionsTotal", ReelectionsTotal},
		{"ExpiredMediaTotal", ExpiredMediaTotal},
		{"BulkItemsTotal", BulkItemsTotal},
		{"BulkJobLastDuration", BulkJobLastDuration},
		{"SignaturesTotal", SignaturesTotal},
		{"MediaRecordsTotal", MediaRecordsTotal},
		{"MediaStoredBytes", MediaStoredBytes},
		{"MediaSignedTotal", MediaSignedTotal},
		{"GoMemAllocBytes", GoMemAllocBytes},
		{"MemoryUsageRatio", MemoryUsageRatio},
		{"MemoryPaused", MemoryPaused},
		{"MemoryGCPauses", MemoryGCPauses},
		{"AppInfo", AppInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestCounterOperations(t *testing.T) {
	before := testutil.ToFloat64(IngestTotal.WithLabelValues("picture", "success"))
	IngestTotal.WithLabelValues("picture", "success").Inc()
	if got := testutil.ToFloat64(IngestTotal.WithLabelValues("picture", "success")); got != before+1 {
		t.Errorf("IngestTotal = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(ReelectionsTotal.WithLabelValues("doc"))
	ReelectionsTotal.WithLabelValues("doc").Add(2)
	if got := testutil.ToFloat64(ReelectionsTotal.WithLabelValues("doc")); got != before+2 {
		t.Errorf("ReelectionsTotal = %v, want %v", got, before+2)
	}
}

func TestGaugeOperations(t *testing.T) {
	MemoryPaused.Set(1)
	if got := testutil.ToFloat64(MemoryPaused); got != 1 {
		t.Errorf("MemoryPaused = %v, want 1", got)
	}
	MemoryPaused.Set(0)

	SetAppInfo("1.0.0", "abc123", "go1.25")
	if got := testutil.ToFloat64(AppInfo.WithLabelValues("1.0.0", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

func TestInitializeMetrics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics() panicked: %v", r)
		}
	}()

	InitializeMetrics()

	if n := testutil.CollectAndCount(TransformsTotal); n < 14 {
		t.Errorf("TransformsTotal has %d series after init, want at least 14", n)
	}
	if n := testutil.CollectAndCount(BulkItemsTotal); n < 9 {
		t.Errorf("BulkItemsTotal has %d series after init, want at least 9", n)
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Goroutine %d panicked: %v", id, r)
				}
				done <- true
			}()

			HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Inc()
			DBQueryTotal.WithLabelValues("get_media", "success").Inc()
			TransformsTotal.WithLabelValues("scale", "success").Inc()
			ThumbnailCacheHits.Inc()
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkHTTPMetricsIncrement(b *testing.B) {
	b.Run("Counter increment", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			HTTPRequestsTotal.WithLabelValues("GET", "/api/media/{id}", "200").Inc()
		}
	})

	b.Run("Histogram observe", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			HTTPRequestDuration.WithLabelValues("GET", "/api/media/{id}").Observe(0.1)
		}
	})
}
