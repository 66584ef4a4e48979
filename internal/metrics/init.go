package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"insert_media", "get_media", "update_media", "update_size", "delete_media",
		"clear_flag", "find_flag", "first_image", "list_media", "list_expired", "reparent",
		"insert_audit", "list_audit", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, op := range []string{"put", "get", "replace", "delete"} {
		BlobOperationsTotal.WithLabelValues(op, "success")
		BlobOperationsTotal.WithLabelValues(op, "error")
		BlobOperationDuration.WithLabelValues(op)
	}

	for _, kind := range []string{"picture", "pdf", "document", "link"} {
		IngestTotal.WithLabelValues(kind, "success")
		IngestTotal.WithLabelValues(kind, "rejected")
		IngestTotal.WithLabelValues(kind, "error")
		IngestBytes.WithLabelValues(kind)
	}

	for _, op := range []string{"auto_rotate", "scale", "to_jpeg", "rotate", "thumbnail", "compress_pdf", "strip_odt"} {
		TransformsTotal.WithLabelValues(op, "success")
		TransformsTotal.WithLabelValues(op, "fallback")
		TransformDuration.WithLabelValues(op)
	}

	for _, tool := range []string{"pdf_compress", "html_to_pdf"} {
		ExternalToolRuns.WithLabelValues(tool, "success")
		ExternalToolRuns.WithLabelValues(tool, "error")
		ExternalToolDuration.WithLabelValues(tool)
	}

	for _, flag := range []string{"web", "doc", "video"} {
		PreferenceChangesTotal.WithLabelValues(flag)
		ReelectionsTotal.WithLabelValues(flag)
	}

	for _, reason := range []string{"retain_until", "document_age"} {
		ExpiredMediaTotal.WithLabelValues(reason)
	}

	for _, job := range []string{"scale_images", "scale_pdfs", "scale_odts"} {
		for _, status := range []string{"updated", "skipped", "failed"} {
			BulkItemsTotal.WithLabelValues(job, status)
		}
		BulkJobLastDuration.WithLabelValues(job)
	}

	SignaturesTotal.WithLabelValues("signed")
	SignaturesTotal.WithLabelValues("rejected")

	for _, kind := range []string{"image", "document", "link"} {
		MediaRecordsTotal.WithLabelValues(kind)
	}
}
