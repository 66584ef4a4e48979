package metrics

import "shelter-media/internal/dbfs"

// blobObserver implements dbfs.Observer using the Prometheus metrics declared
// in this package.
type blobObserver struct{}

// NewBlobObserver creates an observer that records blob store metrics.
func NewBlobObserver() dbfs.Observer {
	return blobObserver{}
}

func (blobObserver) ObserveOperation(operation string, durationSeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BlobOperationsTotal.WithLabelValues(operation, status).Inc()
	BlobOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

func (blobObserver) ObserveStaleRetry(operation string, recovered bool) {
	outcome := "failure"
	if recovered {
		outcome = "success"
	}
	BlobStaleRetries.WithLabelValues(operation, outcome).Inc()
}
