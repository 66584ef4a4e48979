package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/imageops"
	"shelter-media/internal/mediatypes"
)

// Image is the payload returned by ImageData.
type Image struct {
	Date     time.Time
	MimeType string
	Data     []byte
}

// Get returns one media record.
func (s *Service) Get(ctx context.Context, id int64) (*Record, error) {
	return loadRecord(ctx, s.db.Queries, id)
}

// List returns every record attached to link, oldest first.
func (s *Service) List(ctx context.Context, link Link) ([]Record, error) {
	return s.db.ListMedia(ctx, int(link.Type), link.ID)
}

// ListImages returns the JPEGs of link with the web preferred first.
func (s *Service) ListImages(ctx context.Context, link Link, publishableOnly bool) ([]Record, error) {
	return s.db.ListImages(ctx, int(link.Type), link.ID, publishableOnly)
}

// WebPreferred returns the website picture of link.
func (s *Service) WebPreferred(ctx context.Context, link Link) (*Record, error) {
	r, err := s.db.FindFlag(ctx, database.FlagWeb, int(link.Type), link.ID)
	if err != nil {
		return nil, fmt.Errorf("web preferred for %s: %w", link, err)
	}
	return r, nil
}

// BySequence returns the seq'th publishable picture of link, counting from
// 1 with the web preferred first. seq 0 returns the web preferred.
func (s *Service) BySequence(ctx context.Context, link Link, seq int) (*Record, error) {
	if seq == 0 {
		return s.WebPreferred(ctx, link)
	}
	if seq < 0 {
		return nil, validation("invalid sequence number %d", seq)
	}

	images, err := s.db.ListImages(ctx, int(link.Type), link.ID, true)
	if err != nil {
		return nil, err
	}
	if seq > len(images) {
		return nil, fmt.Errorf("picture %d of %s: %w", seq, link, ErrNotFound)
	}
	return &images[seq-1], nil
}

// SequenceCount returns how many publishable pictures link has.
func (s *Service) SequenceCount(ctx context.Context, link Link) (int, error) {
	images, err := s.db.ListImages(ctx, int(link.Type), link.ID, true)
	if err != nil {
		return 0, err
	}
	return len(images), nil
}

// FileData returns a record and its stored content.
func (s *Service) FileData(ctx context.Context, id int64) (*Record, []byte, error) {
	r, err := loadRecord(ctx, s.db.Queries, id)
	if err != nil {
		return nil, nil, err
	}
	if r.Kind != int(KindFile) {
		return nil, nil, validation("media %d is a link and has no content", id)
	}

	data, err := s.content(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	return r, data, nil
}

func (s *Service) content(ctx context.Context, r *Record) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if r.DBFSID != 0 {
		data, err = s.blobs.GetID(ctx, dbfs.Ref(r.DBFSID))
	} else {
		data, err = s.blobs.Get(ctx, r.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("content of media %d: %w", r.ID, err)
	}
	return data, nil
}

// ImageData resolves an image request.
//
//   - animal, person: the web preferred (seq 0) or seq'th picture of the entity
//   - animalthumb, personthumb: thumbnail of the web preferred
//   - media: the record with that ID
//   - dbfs: a stored file by name, or by full path when id starts with "/"
//   - nopic: the placeholder picture
//
// ErrNoImage is returned when nothing matches.
func (s *Service) ImageData(ctx context.Context, mode ImageMode, id string, seq int) (*Image, error) {
	switch mode {
	case ModeDBFS:
		return s.dbfsImage(ctx, id)
	case ModeNoPic:
		return s.noPic(ctx)
	}

	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, validation("invalid image id %q", id)
	}

	var (
		r     *Record
		thumb bool
	)
	switch mode {
	case ModeAnimal:
		r, err = s.BySequence(ctx, Link{Type: LinkAnimal, ID: n}, seq)
	case ModePerson:
		r, err = s.BySequence(ctx, Link{Type: LinkPerson, ID: n}, seq)
	case ModeAnimalThumb:
		r, err = s.WebPreferred(ctx, Link{Type: LinkAnimal, ID: n})
		thumb = true
	case ModePersonThumb:
		r, err = s.WebPreferred(ctx, Link{Type: LinkPerson, ID: n})
		thumb = true
	case ModeMedia:
		r, err = s.Get(ctx, n)
	default:
		return nil, validation("unknown image mode %q", mode)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoImage
	}
	if err != nil {
		return nil, err
	}

	if thumb {
		if data, ok := s.cachedThumbnail(r); ok {
			return &Image{Date: r.Date, MimeType: mediatypes.MimeJPEG, Data: data}, nil
		}
	}

	data, err := s.content(ctx, r)
	if errors.Is(err, dbfs.ErrNotFound) {
		return nil, ErrNoImage
	}
	if err != nil {
		return nil, err
	}

	if thumb {
		data = transform("thumbnail", imageops.Thumbnail, data)
		s.storeThumbnail(r, data)
		return &Image{Date: r.Date, MimeType: mediatypes.MimeJPEG, Data: data}, nil
	}
	return &Image{Date: r.Date, MimeType: r.MimeType, Data: data}, nil
}

func (s *Service) dbfsImage(ctx context.Context, id string) (*Image, error) {
	var (
		data []byte
		err  error
		name = id
	)
	if strings.HasPrefix(id, "/") {
		dir, file := id[:strings.LastIndex(id, "/")], id[strings.LastIndex(id, "/")+1:]
		name = file
		data, err = s.blobs.GetPath(ctx, dir, file)
	} else {
		data, err = s.blobs.Get(ctx, id)
	}
	if errors.Is(err, dbfs.ErrNotFound) {
		return nil, ErrNoImage
	}
	if err != nil {
		return nil, err
	}
	return &Image{Date: time.Now(), MimeType: s.types.MimeType(name), Data: data}, nil
}

// The placeholder picture, when one has been uploaded.
const (
	NoPicName = "nopic.jpg"
	NoPicPath = "/reports/" + NoPicName
)

// noPic serves the stored placeholder, or a plain grey picture when none
// has been uploaded.
func (s *Service) noPic(ctx context.Context) (*Image, error) {
	ok, err := s.blobs.Exists(ctx, NoPicName)
	if err != nil {
		return nil, fmt.Errorf("look up placeholder: %w", err)
	}
	if ok {
		return s.dbfsImage(ctx, NoPicPath)
	}
	data, err := imageops.Placeholder()
	if err != nil {
		return nil, err
	}
	return &Image{Date: time.Now(), MimeType: mediatypes.MimeJPEG, Data: data}, nil
}
