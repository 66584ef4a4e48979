package database

import "time"

// DateLayout is the storage format of retain_until.
const DateLayout = "2006-01-02"

// MediaRecord is one row of the media table.
type MediaRecord struct {
	ID                 int64      `json:"id"`
	DBFSID             int64      `json:"dbfsId"`
	Size               int64      `json:"size"`
	Name               string     `json:"name"`
	MimeType           string     `json:"mimeType"`
	Kind               int        `json:"kind"`
	Notes              string     `json:"notes"`
	LinkType           int        `json:"linkType"`
	LinkID             int64      `json:"linkId"`
	WebPreferred       bool       `json:"webPreferred"`
	VideoPreferred     bool       `json:"videoPreferred"`
	DocPreferred       bool       `json:"docPreferred"`
	ExcludeFromPublish bool       `json:"excludeFromPublish"`
	Date               time.Time  `json:"date"`
	RetainUntil        *time.Time `json:"retainUntil,omitempty"`
	SignatureHash      string     `json:"signatureHash,omitempty"`
	Version            int64      `json:"version"`
	CreatedBy          string     `json:"createdBy"`
	LastChangedBy      string     `json:"lastChangedBy"`
}

// IsSigned reports whether the record carries a signature hash.
func (r *MediaRecord) IsSigned() bool {
	return r.SignatureHash != ""
}

// Flag names a per-group preference column.
type Flag string

const (
	FlagWeb   Flag = "website_photo"
	FlagVideo Flag = "website_video"
	FlagDoc   Flag = "doc_photo"
)

func (f Flag) valid() bool {
	return f == FlagWeb || f == FlagVideo || f == FlagDoc
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID       int64     `json:"id"`
	Code     string    `json:"code"`
	LinkType int       `json:"linkType"`
	LinkID   int64     `json:"linkId"`
	MediaID  int64     `json:"mediaId"`
	Message  string    `json:"message"`
	Username string    `json:"username"`
	Created  time.Time `json:"created"`
}
