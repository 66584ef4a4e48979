package media

import (
	"context"
	"errors"
	"fmt"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/mediatypes"
)

// CreateBlankDocument attaches an empty HTML document to link.
func (s *Service) CreateBlankDocument(ctx context.Context, sess Session, link Link) (*Record, error) {
	return s.createDocument(ctx, sess, link, "New document", "")
}

// CreateDocument attaches an HTML document generated from template.
func (s *Service) CreateDocument(ctx context.Context, sess Session, link Link, template, content string) (*Record, error) {
	return s.createDocument(ctx, sess, link, template, content)
}

func (s *Service) createDocument(ctx context.Context, sess Session, link Link, notes, content string) (*Record, error) {
	r := &Record{
		Size:          int64(len(content)),
		MimeType:      mediatypes.MimeHTML,
		Kind:          int(KindFile),
		Notes:         notes,
		LinkType:      int(link.Type),
		LinkID:        link.ID,
		Date:          sess.Now(),
		CreatedBy:     sess.user(),
		LastChangedBy: sess.user(),
	}

	var ref dbfs.Ref
	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		if err := q.InsertMedia(ctx, r); err != nil {
			return err
		}
		r.Name = fmt.Sprintf("%d.html", r.ID)

		var err error
		ref, err = s.blobs.Put(ctx, r.Name, link.Path(), []byte(content))
		if err != nil {
			return err
		}
		r.DBFSID = int64(ref)
		return q.UpdateMedia(ctx, r)
	})
	if err != nil {
		if ref != 0 {
			if delErr := s.blobs.DeleteID(ctx, ref); delErr != nil {
				log.Error("failed to remove blob %d after aborted document: %v", ref, delErr)
			}
		}
		return nil, fmt.Errorf("create document for %s: %w", link, err)
	}

	log.Debug("created document %s (%q) for %s", r.Name, notes, link)
	return r, nil
}

// DocumentPDF renders a stored HTML document as PDF.
func (s *Service) DocumentPDF(ctx context.Context, id int64) ([]byte, error) {
	if s.renderer == nil {
		return nil, errors.New("no HTML to PDF renderer configured")
	}

	r, data, err := s.FileData(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.MimeType != mediatypes.MimeHTML {
		return nil, validation("media %d is not an HTML document", id)
	}
	return s.renderer.HTMLToPDF(ctx, string(data))
}
