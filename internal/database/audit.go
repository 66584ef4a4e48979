package database

import (
	"context"
	"time"
)

// InsertAudit appends an entry to the audit log.
func (q *Queries) InsertAudit(ctx context.Context, e *AuditEntry) (err error) {
	start := time.Now()
	defer func() { recordQuery("insert_audit", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if e.Created.IsZero() {
		e.Created = time.Now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (code, link_type_id, link_id, media_id, message, username, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Code, e.LinkType, e.LinkID, e.MediaID, e.Message, e.Username, e.Created.Unix())
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ListAudit returns the audit entries recorded against a media record,
// oldest first.
func (q *Queries) ListAudit(ctx context.Context, mediaID int64) (entries []AuditEntry, err error) {
	start := time.Now()
	defer func() { recordQuery("list_audit", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, code, link_type_id, link_id, media_id, message, username, created_at
		FROM audit_log WHERE media_id = ? ORDER BY id
	`, mediaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e AuditEntry
		var created int64
		if err = rows.Scan(&e.ID, &e.Code, &e.LinkType, &e.LinkID, &e.MediaID, &e.Message, &e.Username, &created); err != nil {
			return nil, err
		}
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	err = rows.Err()
	return entries, err
}
