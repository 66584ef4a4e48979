package media

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shelter-media/internal/database"
)

// Record is a stored media attachment or link.
type Record = database.MediaRecord

// LinkType is the kind of entity a media record is attached to.
type LinkType int

const (
	LinkAnimal        LinkType = 0
	LinkLostAnimal    LinkType = 1
	LinkFoundAnimal   LinkType = 2
	LinkPerson        LinkType = 3
	LinkWaitingList   LinkType = 5
	LinkAnimalControl LinkType = 6
)

var linkTypeNames = map[LinkType]string{
	LinkAnimal:        "animal",
	LinkLostAnimal:    "lostanimal",
	LinkFoundAnimal:   "foundanimal",
	LinkPerson:        "person",
	LinkWaitingList:   "waitinglist",
	LinkAnimalControl: "animalcontrol",
}

func (t LinkType) String() string {
	if name, ok := linkTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("linktype(%d)", int(t))
}

// ParseLinkType accepts the names used in URLs ("animal", "person", ...).
func ParseLinkType(s string) (LinkType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range linkTypeNames {
		if name == s {
			return t, nil
		}
	}
	if s == "owner" {
		return LinkPerson, nil
	}
	return 0, &ValidationError{Msg: fmt.Sprintf("unknown link type %q", s)}
}

// Link identifies the entity a media record belongs to. All preference
// invariants are scoped to one Link.
type Link struct {
	Type LinkType
	ID   int64
}

// Path returns the blob store directory for the link's media. Unknown link
// types share the animal tree.
func (l Link) Path() string {
	switch l.Type {
	case LinkPerson:
		return fmt.Sprintf("/owner/%d", l.ID)
	case LinkLostAnimal:
		return fmt.Sprintf("/lostanimal/%d", l.ID)
	case LinkFoundAnimal:
		return fmt.Sprintf("/foundanimal/%d", l.ID)
	case LinkWaitingList:
		return fmt.Sprintf("/waitinglist/%d", l.ID)
	case LinkAnimalControl:
		return fmt.Sprintf("/animalcontrol/%d", l.ID)
	default:
		return fmt.Sprintf("/animal/%d", l.ID)
	}
}

func (l Link) String() string {
	return fmt.Sprintf("%s/%d", l.Type, l.ID)
}

func linkOf(r *Record) Link {
	return Link{Type: LinkType(r.LinkType), ID: r.LinkID}
}

// Kind is the media type column: a stored file or a link to a web resource.
type Kind int

const (
	KindFile         Kind = 0
	KindDocumentLink Kind = 1
	KindVideoLink    Kind = 2
)

// Session carries the acting user and their locale for one request.
type Session struct {
	User     string
	Locale   string
	Location *time.Location
}

// Now returns the current time in the session's location, to the whole
// second the record store keeps.
func (s Session) Now() time.Time {
	now := time.Now().Truncate(time.Second)
	if s.Location != nil {
		return now.In(s.Location)
	}
	return now
}

// Today returns midnight of the current day in the session's location.
func (s Session) Today() time.Time {
	now := s.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s Session) user() string {
	if s.User == "" {
		return "system"
	}
	return s.User
}

// Upload is an incoming file attachment. Exactly one of DataURI and Data is
// used: DataURI when it is non-empty.
type Upload struct {
	Filename     string
	DeclaredType string
	DataURI      string
	Data         []byte
	Comments     string
	RetainUntil  *time.Time
}

// LinkUpload is an incoming link to a web resource.
type LinkUpload struct {
	URL      string
	Kind     Kind
	Comments string
}

// ImageMode selects what ImageData returns.
type ImageMode string

const (
	ModeAnimal      ImageMode = "animal"
	ModePerson      ImageMode = "person"
	ModeAnimalThumb ImageMode = "animalthumb"
	ModePersonThumb ImageMode = "personthumb"
	ModeMedia       ImageMode = "media"
	ModeDBFS        ImageMode = "dbfs"
	ModeNoPic       ImageMode = "nopic"
)

var (
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for a missing media record.
	ErrNotFound = database.ErrNotFound
	// ErrConflict is returned when a record changed between read and write.
	ErrConflict = database.ErrConflict
	// ErrNoImage is returned by ImageData when there is no matching image.
	ErrNoImage = errors.New("no image available")
)

// ValidationError rejects an operation without changing any state.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap exposes both ErrValidation and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// conflict wraps a version mismatch as a retryable validation error.
func conflict(err error) error {
	if errors.Is(err, database.ErrConflict) {
		return &ValidationError{Msg: "media record was changed, reload and try again", Err: err}
	}
	return err
}
