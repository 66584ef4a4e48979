package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelter-media/internal/metrics"
)

const mediaColumns = `id, dbfs_id, media_size, media_name, mime_type, media_type, media_notes,
	link_type_id, link_id, website_photo, website_video, doc_photo, exclude_from_publish,
	date, retain_until, signature_hash, record_version, created_by, last_changed_by`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMedia(row scanner) (*MediaRecord, error) {
	var r MediaRecord
	var date int64
	var retain sql.NullString

	err := row.Scan(
		&r.ID, &r.DBFSID, &r.Size, &r.Name, &r.MimeType, &r.Kind, &r.Notes,
		&r.LinkType, &r.LinkID, &r.WebPreferred, &r.VideoPreferred, &r.DocPreferred, &r.ExcludeFromPublish,
		&date, &retain, &r.SignatureHash, &r.Version, &r.CreatedBy, &r.LastChangedBy,
	)
	if err != nil {
		return nil, err
	}

	r.Date = time.Unix(date, 0)
	if retain.Valid && retain.String != "" {
		if t, perr := time.ParseInLocation(DateLayout, retain.String, time.Local); perr == nil {
			r.RetainUntil = &t
		}
	}
	return &r, nil
}

func retainValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}

func (q *Queries) listMedia(ctx context.Context, operation, where string, args ...interface{}) (records []MediaRecord, err error) {
	start := time.Now()
	defer func() { recordQuery(operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		r, scanErr := scanMedia(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		records = append(records, *r)
	}
	err = rows.Err()
	return records, err
}

func (q *Queries) getOne(ctx context.Context, operation, where string, args ...interface{}) (r *MediaRecord, err error) {
	start := time.Now()
	defer func() { recordQuery(operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	r, err = scanMedia(q.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE `+where+` LIMIT 1`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return r, err
}

// InsertMedia inserts r and sets its ID and version.
func (q *Queries) InsertMedia(ctx context.Context, r *MediaRecord) (err error) {
	start := time.Now()
	defer func() { recordQuery("insert_media", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if r.Date.IsZero() {
		r.Date = time.Now()
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO media (dbfs_id, media_size, media_name, mime_type, media_type, media_notes,
			link_type_id, link_id, website_photo, website_video, doc_photo, exclude_from_publish,
			date, retain_until, signature_hash, record_version, created_by, last_changed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		r.DBFSID, r.Size, r.Name, r.MimeType, r.Kind, r.Notes,
		r.LinkType, r.LinkID, r.WebPreferred, r.VideoPreferred, r.DocPreferred, r.ExcludeFromPublish,
		r.Date.Unix(), retainValue(r.RetainUntil), r.SignatureHash, r.CreatedBy, r.LastChangedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert media: %w", err)
	}

	r.ID, err = res.LastInsertId()
	r.Version = 1
	return err
}

// GetMedia returns the record with the given ID.
func (q *Queries) GetMedia(ctx context.Context, id int64) (*MediaRecord, error) {
	return q.getOne(ctx, "get_media", "id = ?", id)
}

// UpdateMedia writes every mutable column of r. The update only applies when
// the stored version still equals r.Version; on success r.Version is
// advanced.
func (q *Queries) UpdateMedia(ctx context.Context, r *MediaRecord) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_media", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx, `
		UPDATE media SET
			dbfs_id = ?, media_size = ?, media_name = ?, mime_type = ?, media_type = ?, media_notes = ?,
			link_type_id = ?, link_id = ?, website_photo = ?, website_video = ?, doc_photo = ?,
			exclude_from_publish = ?, date = ?, retain_until = ?, signature_hash = ?,
			last_changed_by = ?, record_version = record_version + 1
		WHERE id = ? AND record_version = ?
	`,
		r.DBFSID, r.Size, r.Name, r.MimeType, r.Kind, r.Notes,
		r.LinkType, r.LinkID, r.WebPreferred, r.VideoPreferred, r.DocPreferred,
		r.ExcludeFromPublish, r.Date.Unix(), retainValue(r.RetainUntil), r.SignatureHash,
		r.LastChangedBy, r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update media %d: %w", r.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err = q.db.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM media WHERE id = ?`, r.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			err = ErrNotFound
			return err
		}
		metrics.DBConflictsTotal.Inc()
		err = ErrConflict
		return err
	}

	r.Version++
	return nil
}

// UpdateSize sets the stored size and date after the blob was rewritten.
func (q *Queries) UpdateSize(ctx context.Context, id, size int64, date time.Time) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_size", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx,
		`UPDATE media SET media_size = ?, date = ?, record_version = record_version + 1 WHERE id = ?`,
		size, date.Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}

// DeleteMedia removes the record with the given ID.
func (q *Queries) DeleteMedia(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_media", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}

// ClearFlag clears flag on every record of the group except exceptID and
// returns how many records changed.
func (q *Queries) ClearFlag(ctx context.Context, flag Flag, linkType int, linkID, exceptID int64) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("clear_flag", start, err) }()

	if !flag.valid() {
		return 0, fmt.Errorf("unknown preference flag %q", flag)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx, `
		UPDATE media SET `+string(flag)+` = 0, record_version = record_version + 1
		WHERE link_type_id = ? AND link_id = ? AND id <> ? AND `+string(flag)+` = 1
	`, linkType, linkID, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindFlag returns the record of the group holding flag.
func (q *Queries) FindFlag(ctx context.Context, flag Flag, linkType int, linkID int64) (*MediaRecord, error) {
	if !flag.valid() {
		return nil, fmt.Errorf("unknown preference flag %q", flag)
	}
	return q.getOne(ctx, "find_flag",
		`link_type_id = ? AND link_id = ? AND `+string(flag)+` = 1 ORDER BY id`, linkType, linkID)
}

// FirstImage returns the lowest-ID JPEG of the group. With publishableOnly
// records excluded from publishing are skipped.
func (q *Queries) FirstImage(ctx context.Context, linkType int, linkID int64, publishableOnly bool) (*MediaRecord, error) {
	where := `link_type_id = ? AND link_id = ? AND mime_type = 'image/jpeg'`
	if publishableOnly {
		where += ` AND exclude_from_publish = 0`
	}
	return q.getOne(ctx, "first_image", where+` ORDER BY id`, linkType, linkID)
}

// ListMedia returns every record of the group ordered by ID.
func (q *Queries) ListMedia(ctx context.Context, linkType int, linkID int64) ([]MediaRecord, error) {
	return q.listMedia(ctx, "list_media", `link_type_id = ? AND link_id = ? ORDER BY id`, linkType, linkID)
}

// ListImages returns the group's JPEGs, web preferred first then by ID.
func (q *Queries) ListImages(ctx context.Context, linkType int, linkID int64, publishableOnly bool) ([]MediaRecord, error) {
	where := `link_type_id = ? AND link_id = ? AND mime_type = 'image/jpeg'`
	if publishableOnly {
		where += ` AND exclude_from_publish = 0`
	}
	return q.listMedia(ctx, "list_media", where+` ORDER BY website_photo DESC, id`, linkType, linkID)
}

// ListExpired returns records whose retain_until date is before today.
func (q *Queries) ListExpired(ctx context.Context, today time.Time) ([]MediaRecord, error) {
	return q.listMedia(ctx, "list_expired",
		`retain_until IS NOT NULL AND retain_until <> '' AND retain_until < ? ORDER BY id`,
		today.Format(DateLayout))
}

// ListDocumentsBefore returns file records that are not JPEGs and were last
// changed before cutoff.
func (q *Queries) ListDocumentsBefore(ctx context.Context, cutoff time.Time) ([]MediaRecord, error) {
	return q.listMedia(ctx, "list_expired",
		`media_type = 0 AND mime_type <> 'image/jpeg' AND date < ? ORDER BY id`, cutoff.Unix())
}

// ListByMime returns file records with the given MIME type, optionally
// restricted to some link types.
func (q *Queries) ListByMime(ctx context.Context, mimeType string, linkTypes ...int) ([]MediaRecord, error) {
	where := `media_type = 0 AND mime_type = ?`
	args := []interface{}{mimeType}
	if len(linkTypes) > 0 {
		where += ` AND link_type_id IN (?` + strings.Repeat(", ?", len(linkTypes)-1) + `)`
		for _, lt := range linkTypes {
			args = append(args, lt)
		}
	}
	return q.listMedia(ctx, "list_media", where+` ORDER BY id`, args...)
}

// Reparent moves every record of one group to another and returns how many
// moved.
func (q *Queries) Reparent(ctx context.Context, fromType int, fromID int64, toType int, toID int64) (n int64, err error) {
	start := time.Now()
	defer func() { recordQuery("reparent", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx, `
		UPDATE media SET link_type_id = ?, link_id = ?, record_version = record_version + 1
		WHERE link_type_id = ? AND link_id = ?
	`, toType, toID, fromType, fromID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
