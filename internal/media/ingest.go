package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/imageops"
	"shelter-media/internal/mediatypes"
	"shelter-media/internal/metrics"
)

func ingestKind(c mediatypes.Classification) string {
	switch {
	case c.IsLink:
		return "link"
	case c.IsPicture:
		return "picture"
	case c.IsPDF:
		return "pdf"
	default:
		return "document"
	}
}

// payload returns the upload bytes and the declared MIME type, decoding a
// data URI when one was sent.
func payload(up Upload) ([]byte, string, error) {
	if up.DataURI == "" {
		return up.Data, up.DeclaredType, nil
	}

	data, uriType, err := mediatypes.DecodeDataURI(up.DataURI)
	if err != nil {
		return nil, "", &ValidationError{Msg: "invalid upload data", Err: err}
	}
	declared := up.DeclaredType
	if declared == "" {
		declared = uriType
	}
	log.Debug("received data URI %q (%d bytes)", up.Filename, len(data))
	return data, declared, nil
}

// AttachFile classifies, transforms and stores an uploaded file for link,
// then makes it the group's web and doc preferred picture when the group has
// none.
func (s *Service) AttachFile(ctx context.Context, sess Session, link Link, up Upload) (*Record, error) {
	data, declared, err := payload(up)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("document", "rejected").Inc()
		return nil, err
	}
	if len(data) == 0 {
		metrics.IngestTotal.WithLabelValues("document", "rejected").Inc()
		return nil, validation("upload %q is empty", up.Filename)
	}

	if declared == "" && mediatypes.Extension(mediatypes.FilenameOnly(up.Filename)) == "" {
		declared = mediatypes.Sniff(data)
		log.Debug("no declared type for %q, sniffed %s", up.Filename, declared)
	}

	classify := s.types.Classify
	if up.DataURI != "" {
		classify = s.types.ClassifyDataURI
	}
	cls, err := classify(up.Filename, declared)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("document", "rejected").Inc()
		log.Error("abandoning upload %q: %v", up.Filename, err)
		return nil, &ValidationError{Msg: "unsupported upload", Err: err}
	}
	kind := ingestKind(cls)
	if cls.IsLink {
		metrics.IngestTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, validation("links must be attached with AttachLink")
	}

	if cls.IsPicture && !s.policy.AllowJPG {
		metrics.IngestTotal.WithLabelValues(kind, "rejected").Inc()
		log.Error("upload of media type jpg is disabled")
		return nil, validation("upload of media type jpg is disabled")
	}
	if cls.IsPDF && !s.policy.AllowPDF {
		metrics.IngestTotal.WithLabelValues(kind, "rejected").Inc()
		log.Error("upload of media type pdf is disabled")
		return nil, validation("upload of media type pdf is disabled")
	}

	if sniffed := mediatypes.Sniff(data); (cls.IsPicture && !strings.HasPrefix(sniffed, "image/")) ||
		(cls.IsPDF && sniffed != mediatypes.MimePDF) {
		log.Warn("upload %q classified as %s but content looks like %s", up.Filename, cls.MimeType, sniffed)
	}

	switch {
	case cls.IsPicture:
		data = s.transformPicture(data, cls)
	case cls.IsPDF && s.policy.ScalePDFDuringAttach && s.policy.ScalePDFs:
		data = s.compressPDF(ctx, data)
	}

	notes := s.defaultNotes(ctx, link, up, cls)
	excluded := s.policy.AutoNewImagesNotForPublish && cls.IsPicture

	r := &Record{
		Size:               int64(len(data)),
		Kind:               int(KindFile),
		Notes:              notes,
		LinkType:           int(link.Type),
		LinkID:             link.ID,
		ExcludeFromPublish: excluded,
		Date:               sess.Now(),
		RetainUntil:        up.RetainUntil,
		CreatedBy:          sess.user(),
		LastChangedBy:      sess.user(),
		MimeType:           cls.MimeType,
	}

	var ref dbfs.Ref
	err = s.db.WithTx(ctx, func(q *database.Queries) error {
		if err := q.InsertMedia(ctx, r); err != nil {
			return err
		}

		r.Name = fmt.Sprintf("%d.%s", r.ID, cls.Ext)
		r.MimeType = s.types.MimeType(r.Name)

		var err error
		ref, err = s.blobs.Put(ctx, r.Name, link.Path(), data)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", r.Name, err)
		}
		r.DBFSID = int64(ref)

		if cls.IsPicture && !r.ExcludeFromPublish {
			if err := electDefaults(ctx, q, r); err != nil {
				return err
			}
		}
		return q.UpdateMedia(ctx, r)
	})
	if err != nil {
		if ref != 0 {
			if delErr := s.blobs.DeleteID(ctx, ref); delErr != nil {
				log.Error("failed to remove blob %d after aborted upload: %v", ref, delErr)
			}
		}
		metrics.IngestTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("attach %q to %s: %w", up.Filename, link, err)
	}

	metrics.IngestTotal.WithLabelValues(kind, "success").Inc()
	metrics.IngestBytes.WithLabelValues(kind).Observe(float64(len(data)))
	log.Info("attached %s (%d bytes) to %s", r.Name, r.Size, link)
	return r, nil
}

// transformPicture applies EXIF auto-rotation and the incoming scale, and
// makes sure the result is a JPEG.
func (s *Service) transformPicture(data []byte, cls mediatypes.Classification) []byte {
	data = transform("auto_rotate", imageops.AutoRotate, data)

	spec := strings.TrimSpace(s.policy.IncomingScale)
	if spec != imageops.NoScale {
		data = transform("scale", func(d []byte) ([]byte, error) {
			return imageops.ScaleToBBox(d, spec)
		}, data)
		log.Debug("scaled image to %s (%d bytes)", spec, len(data))
	}

	if cls.NeedsJPEGConversion() && !mediatypes.IsJPEG(data) {
		data = transform("to_jpeg", imageops.ToJPEG, data)
	}
	return data
}

// compressPDF keeps the compressed document only when it is strictly
// smaller.
func (s *Service) compressPDF(ctx context.Context, data []byte) []byte {
	if s.pdf == nil {
		return data
	}
	out := transform("compress_pdf", func(d []byte) ([]byte, error) {
		return s.pdf.Compress(ctx, d)
	}, data)
	if len(out) == 0 || len(out) >= len(data) {
		return data
	}
	log.Debug("compressed PDF from %d to %d bytes", len(data), len(out))
	return out
}

func (s *Service) defaultNotes(ctx context.Context, link Link, up Upload, cls mediatypes.Classification) string {
	if up.Comments != "" {
		return up.Comments
	}
	if cls.IsPicture && link.Type == LinkAnimal && s.policy.AutoMediaNotes && s.comments != nil {
		comments, err := s.comments.AnimalComments(ctx, link.ID)
		if err != nil {
			log.Warn("could not read comments for animal %d: %v", link.ID, err)
			return ""
		}
		return comments
	}
	if s.policy.DefaultMediaNotesFromFile {
		return mediatypes.FilenameOnly(up.Filename)
	}
	return ""
}

// electDefaults gives r the web and doc preferred flags its group does not
// have a holder for yet.
func electDefaults(ctx context.Context, q *database.Queries, r *Record) error {
	for _, flag := range []database.Flag{database.FlagWeb, database.FlagDoc} {
		_, err := q.FindFlag(ctx, flag, r.LinkType, r.LinkID)
		if err == nil {
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		setFlag(r, flag, true)
	}
	return nil
}

// AttachLink records a link to a web resource. The first video link of a
// group becomes its video preferred.
func (s *Service) AttachLink(ctx context.Context, sess Session, link Link, lu LinkUpload) (*Record, error) {
	url := strings.TrimSpace(lu.URL)
	if url == "" {
		metrics.IngestTotal.WithLabelValues("link", "rejected").Inc()
		return nil, validation("link target is empty")
	}
	if lu.Kind != KindDocumentLink && lu.Kind != KindVideoLink {
		metrics.IngestTotal.WithLabelValues("link", "rejected").Inc()
		return nil, validation("invalid link kind %d", lu.Kind)
	}
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}

	r := &Record{
		Name:          url,
		MimeType:      mediatypes.MimeURL,
		Kind:          int(lu.Kind),
		Notes:         lu.Comments,
		LinkType:      int(link.Type),
		LinkID:        link.ID,
		Date:          sess.Now(),
		CreatedBy:     sess.user(),
		LastChangedBy: sess.user(),
	}

	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		if lu.Kind == KindVideoLink {
			_, err := q.FindFlag(ctx, database.FlagVideo, int(link.Type), link.ID)
			switch {
			case errors.Is(err, database.ErrNotFound):
				r.VideoPreferred = true
			case err != nil:
				return err
			}
		}
		return q.InsertMedia(ctx, r)
	})
	if err != nil {
		metrics.IngestTotal.WithLabelValues("link", "error").Inc()
		return nil, fmt.Errorf("attach link to %s: %w", link, err)
	}

	metrics.IngestTotal.WithLabelValues("link", "success").Inc()
	log.Debug("attached link %s to %s", url, link)
	return r, nil
}
