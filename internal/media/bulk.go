package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shelter-media/internal/dbfs"
	"shelter-media/internal/document"
	"shelter-media/internal/imageops"
	"shelter-media/internal/mediatypes"
	"shelter-media/internal/metrics"
	"shelter-media/internal/workers"
)

// Bulk job names, used as metric labels and in logs.
const (
	JobScaleImages = "scale_images"
	JobScalePDFs   = "scale_pdfs"
	JobScaleODTs   = "scale_odts"
)

// BulkResult summarizes one bulk job run.
type BulkResult struct {
	Job      string        `json:"job"`
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

type itemStatus string

const (
	itemUpdated itemStatus = "updated"
	itemSkipped itemStatus = "skipped"
	itemFailed  itemStatus = "failed"
)

// rewriteFunc returns the new bytes for an item, or nil to leave it alone.
type rewriteFunc func(ctx context.Context, r *Record, data []byte) ([]byte, error)

// runBulk rewrites every record in the snapshot on a pool of size workers.
// Each item's blob is written before its size.
func (s *Service) runBulk(ctx context.Context, job string, size int, records []Record, rewrite rewriteFunc) (BulkResult, error) {
	start := time.Now()
	res := BulkResult{Job: job, Total: len(records)}
	var mu sync.Mutex

	count := func(st itemStatus) {
		metrics.BulkItemsTotal.WithLabelValues(job, string(st)).Inc()
		mu.Lock()
		defer mu.Unlock()
		switch st {
		case itemUpdated:
			res.Updated++
		case itemSkipped:
			res.Skipped++
		case itemFailed:
			res.Failed++
		}
	}

	err := workers.Run(ctx, size, len(records), func(ctx context.Context, i int) {
		if s.mem.IsPaused() {
			log.Info("%s: memory pressure, waiting before item %d of %d", job, i+1, len(records))
		}
		if err := s.mem.Wait(ctx); err != nil {
			return
		}
		r := &records[i]
		log.Debug("%s: processing %s (%d of %d)", job, r.Name, i+1, len(records))
		count(s.rewriteItem(ctx, job, r, rewrite))
	})

	res.Duration = time.Since(start)
	metrics.BulkJobLastDuration.WithLabelValues(job).Set(res.Duration.Seconds())
	log.Info("%s: updated %d of %d (skipped %d, failed %d) in %v",
		job, res.Updated, res.Total, res.Skipped, res.Failed, res.Duration)

	if err != nil {
		return res, fmt.Errorf("%s interrupted: %w", job, err)
	}
	return res, nil
}

func (s *Service) rewriteItem(ctx context.Context, job string, r *Record, rewrite rewriteFunc) itemStatus {
	data, err := s.blobs.GetID(ctx, dbfs.Ref(r.DBFSID))
	if err != nil {
		log.Error("%s: failed to read %s: %v", job, r.Name, err)
		return itemFailed
	}

	out, err := rewrite(ctx, r, data)
	if err != nil {
		log.Error("%s: failed on %s, leaving it unchanged: %v", job, r.Name, err)
		return itemFailed
	}
	if out == nil {
		return itemSkipped
	}

	if err := s.writeContent(ctx, r, out, r.Date); err != nil {
		log.Error("%s: %v", job, err)
		return itemFailed
	}
	return itemUpdated
}

// ScaleAllAnimalImages rescales every animal JPEG to the incoming scale
// policy. With the "None" policy nothing is touched.
func (s *Service) ScaleAllAnimalImages(ctx context.Context) (BulkResult, error) {
	spec := imageops.NormalizeSpec(s.policy.IncomingScale)
	if spec == imageops.NoScale {
		log.Info("%s: incoming scale is %s, nothing to do", JobScaleImages, imageops.NoScale)
		return BulkResult{Job: JobScaleImages}, nil
	}

	records, err := s.db.ListByMime(ctx, mediatypes.MimeJPEG, int(LinkAnimal))
	if err != nil {
		return BulkResult{Job: JobScaleImages}, fmt.Errorf("list animal images: %w", err)
	}

	return s.runBulk(ctx, JobScaleImages, s.workers, records, func(_ context.Context, _ *Record, data []byte) ([]byte, error) {
		return imageops.ScaleToBBox(data, spec)
	})
}

// ScaleAllPDFs compresses every stored PDF, keeping the result only when it
// is smaller.
func (s *Service) ScaleAllPDFs(ctx context.Context) (BulkResult, error) {
	if s.pdf == nil {
		return BulkResult{Job: JobScalePDFs}, validation("no PDF compressor configured")
	}

	records, err := s.db.ListByMime(ctx, mediatypes.MimePDF)
	if err != nil {
		return BulkResult{Job: JobScalePDFs}, fmt.Errorf("list PDFs: %w", err)
	}

	return s.runBulk(ctx, JobScalePDFs, s.docWorkers, records, func(ctx context.Context, r *Record, data []byte) ([]byte, error) {
		out, err := s.pdf.Compress(ctx, data)
		if err != nil {
			return nil, err
		}
		log.Debug("%s: %s old size %d, new size %d", JobScalePDFs, r.Name, len(data), len(out))
		if len(out) == 0 || len(out) >= len(data) {
			return nil, nil
		}
		return out, nil
	})
}

// ScaleAllODTs strips embedded pictures and objects from every stored ODT
// document. Results under document.MinStrippedODTSize are discarded.
func (s *Service) ScaleAllODTs(ctx context.Context) (BulkResult, error) {
	records, err := s.db.ListByMime(ctx, mediatypes.MimeODT)
	if err != nil {
		return BulkResult{Job: JobScaleODTs}, fmt.Errorf("list ODT documents: %w", err)
	}

	return s.runBulk(ctx, JobScaleODTs, s.docWorkers, records, func(_ context.Context, r *Record, data []byte) ([]byte, error) {
		out, err := document.StripODT(data)
		if err != nil {
			return nil, err
		}
		if len(out) < document.MinStrippedODTSize {
			log.Error("%s: stripped %s came back at %d bytes, abandoning", JobScaleODTs, r.Name, len(out))
			return nil, nil
		}
		return out, nil
	})
}
