// Package metrics provides Prometheus instrumentation for the shelter media
// service.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "shelter_media_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter of requests by method, route template and status
//   - HTTPRequestDuration: Histogram of request duration by method and route
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//   - DBQueryTotal / DBQueryDuration: per repository operation
//   - DBTransactionDuration: by outcome (commit, rollback)
//   - DBConflictsTotal: updates rejected by a stale version stamp
//   - DBSizeBytes: main, WAL and SHM file sizes
//
// ## Blob Store Metrics
//   - BlobOperationsTotal / BlobOperationDuration: put, get, replace, delete
//
// ## Ingest and Transform Metrics
//   - IngestTotal / IngestBytes: attachments by kind (picture, pdf, document, link)
//   - TransformsTotal: transforms by operation; status "fallback" means the
//     original bytes were kept
//   - ExternalToolRuns / ExternalToolDuration: PDF compression and rendering
//   - ThumbnailCacheHits / ThumbnailCacheMisses
//
// ## Preference and Lifecycle Metrics
//   - PreferenceChangesTotal, ReelectionsTotal: by flag (web, doc, video)
//   - ExpiredMediaTotal: by reason (retain_until, document_age)
//   - BulkItemsTotal, BulkJobLastDuration: bulk rescale jobs
//   - SignaturesTotal
//
// # Collector
//
// [Collector] periodically reads a [StatsProvider] (the database) and the
// SQLite file sizes:
//
//	collector := metrics.NewCollector(db, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Share of transforms that fell back to the original bytes:
//
//	sum(rate(shelter_media_transforms_total{status="fallback"}[1h])) by (operation) /
//	sum(rate(shelter_media_transforms_total[1h])) by (operation)
//
// P95 PDF compression time:
//
//	histogram_quantile(0.95, sum(rate(shelter_media_external_tool_duration_seconds_bucket{tool="pdf_compress"}[1h])) by (le))
package metrics
