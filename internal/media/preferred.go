package media

import (
	"context"
	"fmt"

	"shelter-media/internal/database"
	"shelter-media/internal/metrics"
)

var flagLabels = map[database.Flag]string{
	database.FlagWeb:   "web",
	database.FlagDoc:   "doc",
	database.FlagVideo: "video",
}

func setFlag(r *Record, flag database.Flag, on bool) {
	switch flag {
	case database.FlagWeb:
		r.WebPreferred = on
	case database.FlagDoc:
		r.DocPreferred = on
	case database.FlagVideo:
		r.VideoPreferred = on
	}
}

// SetWebPreferred makes id the group's website picture. The record also
// becomes publishable.
func (s *Service) SetWebPreferred(ctx context.Context, sess Session, id int64) error {
	return s.setPreferred(ctx, sess, id, database.FlagWeb)
}

// SetDocPreferred makes id the picture used in generated documents.
func (s *Service) SetDocPreferred(ctx context.Context, sess Session, id int64) error {
	return s.setPreferred(ctx, sess, id, database.FlagDoc)
}

// SetVideoPreferred makes id the group's preferred video link.
func (s *Service) SetVideoPreferred(ctx context.Context, sess Session, id int64) error {
	return s.setPreferred(ctx, sess, id, database.FlagVideo)
}

func (s *Service) setPreferred(ctx context.Context, sess Session, id int64, flag database.Flag) error {
	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		r, err := loadRecord(ctx, q, id)
		if err != nil {
			return err
		}
		if _, err := q.ClearFlag(ctx, flag, r.LinkType, r.LinkID, r.ID); err != nil {
			return err
		}

		setFlag(r, flag, true)
		if flag == database.FlagWeb {
			r.ExcludeFromPublish = false
		}
		r.Date = sess.Now()
		r.LastChangedBy = sess.user()
		return q.UpdateMedia(ctx, r)
	})
	if err != nil {
		return conflict(fmt.Errorf("set %s preferred on media %d: %w", flagLabels[flag], id, err))
	}

	metrics.PreferenceChangesTotal.WithLabelValues(flagLabels[flag]).Inc()
	log.Debug("media %d is now %s preferred", id, flagLabels[flag])
	return nil
}

// SetExcluded marks id as excluded from (or included in) publishing. An
// excluded record gives up the website flag; no other record is elected.
func (s *Service) SetExcluded(ctx context.Context, sess Session, id int64, excluded bool) error {
	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		r, err := loadRecord(ctx, q, id)
		if err != nil {
			return err
		}
		r.ExcludeFromPublish = excluded
		if excluded {
			r.WebPreferred = false
		}
		r.Date = sess.Now()
		r.LastChangedBy = sess.user()
		return q.UpdateMedia(ctx, r)
	})
	if err != nil {
		return conflict(fmt.Errorf("set excluded on media %d: %w", id, err))
	}
	return nil
}
