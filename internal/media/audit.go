package media

import (
	"context"

	"shelter-media/internal/database"
)

// Audit codes.
const (
	AuditSignRequested = "ES01"
	AuditSigned        = "ES02"
)

type databaseAuditLog struct {
	db *database.Database
}

// NewDatabaseAuditLog returns an AuditLog that appends to the audit_log
// table. Write failures are logged and otherwise ignored.
func NewDatabaseAuditLog(db *database.Database) AuditLog {
	return &databaseAuditLog{db: db}
}

func (a *databaseAuditLog) CreateLog(ctx context.Context, s Session, r *Record, code, message string) {
	if a.db == nil || r == nil {
		return
	}
	entry := &database.AuditEntry{
		Code:     code,
		LinkType: r.LinkType,
		LinkID:   r.LinkID,
		MediaID:  r.ID,
		Message:  message,
		Username: s.user(),
	}
	if err := a.db.InsertAudit(ctx, entry); err != nil {
		log.Error("failed to write audit entry %s for media %d: %v", code, r.ID, err)
	}
}

// AuditTrail returns the audit entries recorded against a media record.
func (s *Service) AuditTrail(ctx context.Context, id int64) ([]database.AuditEntry, error) {
	return s.db.ListAudit(ctx, id)
}
