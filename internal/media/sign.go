package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/metrics"
)

// SignaturePlaceholder marks where a template wants the signature image.
const SignaturePlaceholder = "signature:placeholder"

// Sign adds a signature image to an HTML document and seals it with the MD5
// of the finished body. A document can be signed once.
//
// The record is read, checked and updated inside one write transaction, and
// the blob is replaced inside it too, so concurrent signers are serialized
// and a rejected signer never touches the stored body.
func (s *Service) Sign(ctx context.Context, sess Session, id int64, signatureURL string) (*Record, error) {
	log.Debug("signing document %d for %s", id, sess.user())

	var (
		signed   *Record
		ref      dbfs.Ref
		original []byte
	)
	err := s.db.WithTx(ctx, func(q *database.Queries) error {
		r, err := loadRecord(ctx, q, id)
		if err != nil {
			return err
		}
		data, err := s.blobs.GetID(ctx, dbfs.Ref(r.DBFSID))
		if err != nil {
			return fmt.Errorf("read document %d: %w", id, err)
		}
		body := string(data)

		if !strings.Contains(body, "<p") && !strings.Contains(body, "<td") {
			log.Error("document %d is not HTML", id)
			return validation("cannot sign a non-HTML document")
		}
		if r.IsSigned() {
			log.Error("document %d has already been signed", id)
			return validation("document is already signed")
		}

		body = s.signedBody(sess, body, signatureURL)
		sum := md5.Sum([]byte(body))

		if err := s.blobs.ReplaceID(ctx, dbfs.Ref(r.DBFSID), []byte(body)); err != nil {
			return fmt.Errorf("write signed document %d: %w", id, err)
		}
		ref, original = dbfs.Ref(r.DBFSID), data

		r.SignatureHash = hex.EncodeToString(sum[:])
		r.Size = int64(len(body))
		r.Date = sess.Now()
		r.LastChangedBy = sess.user()
		if err := q.UpdateMedia(ctx, r); err != nil {
			return err
		}
		signed = r
		return nil
	})
	if err != nil {
		if original != nil {
			if rbErr := s.blobs.ReplaceID(ctx, ref, original); rbErr != nil {
				log.Error("failed to restore document %d after aborted signing: %v", id, rbErr)
			}
		}
		metrics.SignaturesTotal.WithLabelValues("rejected").Inc()
		return nil, conflict(fmt.Errorf("sign document %d: %w", id, err))
	}

	metrics.SignaturesTotal.WithLabelValues("signed").Inc()
	s.audit.CreateLog(ctx, sess, signed, AuditSigned, "document signed")
	return signed, nil
}

// signedBody puts the signature image in place of the placeholder, or
// appends it with the signing date when the template has none.
func (s *Service) signedBody(sess Session, body, signatureURL string) string {
	if strings.Contains(body, SignaturePlaceholder) {
		return strings.ReplaceAll(body, SignaturePlaceholder, signatureURL)
	}
	var sig strings.Builder
	sig.WriteString("<hr />\n")
	sig.WriteString(`<p><img src="` + signatureURL + `" /></p>` + "\n")
	sig.WriteString("<p>" + sess.Now().Format(s.policy.signatureDateLayout()) + "</p>\n")
	return body + sig.String()
}

// HasSignature reports whether a record carries a signature hash.
func (s *Service) HasSignature(ctx context.Context, id int64) (bool, error) {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return false, err
	}
	return r.IsSigned(), nil
}

// RequestSignature records that a document was sent out for signing.
func (s *Service) RequestSignature(ctx context.Context, sess Session, id int64, message string) error {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return err
	}
	if r.IsSigned() {
		return validation("document is already signed")
	}
	s.audit.CreateLog(ctx, sess, r, AuditSignRequested, message)
	return nil
}
