package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/imageops"
	"shelter-media/internal/mediatypes"
	"shelter-media/internal/metrics"
)

// SweepResult reports what an expiry sweep removed.
type SweepResult struct {
	RetainUntil int `json:"retainUntil"`
	Documents   int `json:"documents"`
}

// removeBlob deletes the record's stored content. Failures are logged and
// otherwise ignored so the record can still be removed.
func (s *Service) removeBlob(ctx context.Context, r *Record) {
	if r.DBFSID == 0 {
		return
	}
	if err := s.blobs.DeleteID(ctx, dbfs.Ref(r.DBFSID)); err != nil && !errors.Is(err, dbfs.ErrNotFound) {
		log.Error("failed to delete content of media %d (%s): %v", r.ID, r.Name, err)
	}
}

// Delete removes a media record and its content. When the record held the
// web or doc preferred flag, the lowest-ID remaining JPEG of the group takes
// it over; the two flags are re-elected independently.
func (s *Service) Delete(ctx context.Context, sess Session, id int64) error {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return err
	}
	if err := s.deleteRecord(ctx, r); err != nil {
		return err
	}
	log.Info("media %d (%s) deleted by %s", r.ID, r.Name, sess.user())
	return nil
}

// deleteRecord removes the blob, then the record. The flags that decide
// re-election are read again inside the transaction, so a preference change
// made after r was loaded is not lost.
func (s *Service) deleteRecord(ctx context.Context, r *Record) error {
	s.removeBlob(ctx, r)

	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		cur, err := q.GetMedia(ctx, r.ID)
		if err != nil {
			return err
		}
		if err := q.DeleteMedia(ctx, cur.ID); err != nil {
			return err
		}
		if cur.WebPreferred {
			if err := reelect(ctx, q, cur, database.FlagWeb, true); err != nil {
				return err
			}
		}
		if cur.DocPreferred {
			if err := reelect(ctx, q, cur, database.FlagDoc, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete media %d: %w", r.ID, err)
	}
	s.thumbs.Remove(thumbnailKey(r))
	return nil
}

// reelect hands flag to the first JPEG left in the deleted record's group.
func reelect(ctx context.Context, q *database.Queries, deleted *Record, flag database.Flag, publishableOnly bool) error {
	next, err := q.FirstImage(ctx, deleted.LinkType, deleted.LinkID, publishableOnly)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	setFlag(next, flag, true)
	if err := q.UpdateMedia(ctx, next); err != nil {
		return err
	}
	metrics.ReelectionsTotal.WithLabelValues(flagLabels[flag]).Inc()
	log.Debug("media %d re-elected %s preferred for %s", next.ID, flagLabels[flag], linkOf(deleted))
	return nil
}

// ExpirySweep removes records whose retain-until date is before today and,
// when document auto-removal is configured, file records that are not JPEGs
// and are older than the retention period.
func (s *Service) ExpirySweep(ctx context.Context, today time.Time) (SweepResult, error) {
	var res SweepResult

	expired, err := s.db.ListExpired(ctx, today)
	if err != nil {
		return res, fmt.Errorf("list expired media: %w", err)
	}
	for i := range expired {
		if err := s.deleteRecord(ctx, &expired[i]); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return res, err
		}
		res.RetainUntil++
		metrics.ExpiredMediaTotal.WithLabelValues("retain_until").Inc()
	}
	log.Debug("removed %d expired media items (retain until)", res.RetainUntil)

	if !s.policy.AutoRemoveDocumentMedia || s.policy.AutoRemoveDocumentMediaYears <= 0 {
		return res, nil
	}

	cutoff := today.AddDate(0, 0, -365*s.policy.AutoRemoveDocumentMediaYears)
	docs, err := s.db.ListDocumentsBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("list aged documents: %w", err)
	}
	for i := range docs {
		if err := s.deleteRecord(ctx, &docs[i]); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return res, err
		}
		res.Documents++
		metrics.ExpiredMediaTotal.WithLabelValues("document_age").Inc()
	}
	log.Debug("removed %d expired document media items (older than %s)", res.Documents, cutoff.Format(database.DateLayout))
	return res, nil
}

// Rotate turns a stored JPEG a quarter turn.
func (s *Service) Rotate(ctx context.Context, sess Session, id int64, clockwise bool) error {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return err
	}
	if ext := mediatypes.Extension(r.Name); ext != "jpg" && ext != "jpeg" {
		return validation("media %d is not a JPEG file, cannot rotate", id)
	}

	data, err := s.blobs.GetID(ctx, dbfs.Ref(r.DBFSID))
	if err != nil {
		return fmt.Errorf("read media %d: %w", id, err)
	}
	data = transform("rotate", func(d []byte) ([]byte, error) {
		return imageops.Rotate(d, clockwise)
	}, data)

	if err := s.writeContent(ctx, r, data, sess.Now()); err != nil {
		return err
	}
	log.Info("media %d rotated by %s, clockwise=%t", id, sess.user(), clockwise)
	return nil
}

// writeContent stores new bytes for r, then records their size. The blob is
// always written before the size that describes it.
func (s *Service) writeContent(ctx context.Context, r *Record, data []byte, date time.Time) error {
	if err := s.blobs.ReplaceID(ctx, dbfs.Ref(r.DBFSID), data); err != nil {
		return fmt.Errorf("write content of media %d: %w", r.ID, err)
	}
	if err := s.db.UpdateSize(ctx, r.ID, int64(len(data)), date); err != nil {
		return fmt.Errorf("update size of media %d: %w", r.ID, err)
	}
	s.thumbs.Remove(thumbnailKey(r))
	return nil
}

// UpdateNotes replaces the notes of a record. version must be the version
// the caller read.
func (s *Service) UpdateNotes(ctx context.Context, sess Session, id, version int64, notes string) (*Record, error) {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return nil, err
	}
	r.Version = version
	r.Notes = notes
	r.Date = sess.Now()
	r.LastChangedBy = sess.user()
	if err := s.db.UpdateMedia(ctx, r); err != nil {
		return nil, conflict(fmt.Errorf("update notes of media %d: %w", id, err))
	}
	return r, nil
}

// UpdateContent replaces the stored content of a document. Signed documents
// are rejected.
func (s *Service) UpdateContent(ctx context.Context, sess Session, id int64, content []byte) error {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return err
	}
	if r.Kind != int(KindFile) || r.DBFSID == 0 {
		return validation("media %d has no stored content", id)
	}
	if r.IsSigned() {
		return validation("media %d is signed and cannot be changed", id)
	}
	return s.writeContent(ctx, r, content, sess.Now())
}

// SetRetainUntil sets or, with a nil date, clears the date after which the
// expiry sweep removes the record.
func (s *Service) SetRetainUntil(ctx context.Context, sess Session, id, version int64, until *time.Time) (*Record, error) {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return nil, err
	}
	r.Version = version
	r.RetainUntil = until
	r.LastChangedBy = sess.user()
	if err := s.db.UpdateMedia(ctx, r); err != nil {
		return nil, conflict(fmt.Errorf("update retention of media %d: %w", id, err))
	}
	return r, nil
}

// Reparent moves every record of one entity to another, as when two person
// records are merged. Preference flags the target already has a holder for
// are cleared on the moved records.
func (s *Service) Reparent(ctx context.Context, sess Session, from, to Link) (int64, error) {
	if from == to {
		return 0, nil
	}

	var moved int64
	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		for _, flag := range []database.Flag{database.FlagWeb, database.FlagDoc, database.FlagVideo} {
			_, err := q.FindFlag(ctx, flag, int(to.Type), to.ID)
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if _, err := q.ClearFlag(ctx, flag, int(from.Type), from.ID, 0); err != nil {
				return err
			}
		}

		var err error
		moved, err = q.Reparent(ctx, int(from.Type), from.ID, int(to.Type), to.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reparent %s to %s: %w", from, to, err)
	}

	if moved > 0 && from.Path() != to.Path() {
		if err := s.blobs.Move(ctx, from.Path(), to.Path()); err != nil {
			return moved, fmt.Errorf("move content of %s to %s: %w", from, to, err)
		}
	}
	log.Info("%s moved %d media records from %s to %s", sess.user(), moved, from, to)
	return moved, nil
}

// DeleteAll removes every media record of an entity, then everything stored
// under its blob path, as when the entity itself is deleted. Blob failures
// are logged and do not undo the record deletion.
func (s *Service) DeleteAll(ctx context.Context, sess Session, link Link) (int, error) {
	var removed []Record
	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		records, err := q.ListMedia(ctx, int(link.Type), link.ID)
		if err != nil {
			return err
		}
		for i := range records {
			if err := q.DeleteMedia(ctx, records[i].ID); err != nil {
				return err
			}
		}
		removed = records
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete media of %s: %w", link, err)
	}

	blobs, err := s.blobs.DeletePath(ctx, link.Path())
	if err != nil {
		log.Error("failed to delete content under %s: %v", link.Path(), err)
	}
	for i := range removed {
		s.thumbs.Remove(thumbnailKey(&removed[i]))
	}
	log.Info("%s removed %d media records and %d stored files of %s", sess.user(), len(removed), blobs, link)
	return len(removed), nil
}
