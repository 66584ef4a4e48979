package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"shelter-media/internal/mediatypes"
)

func TestAttachFileEXIFOrientation(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Policy.IncomingScale = "640x640" })
	ctx := context.Background()
	link := Link{Type: LinkAnimal, ID: 7}

	src := withOrientation(quadrantJPEG(t, 1280, 960), 6)
	r, err := env.svc.AttachFile(ctx, Session{User: "vet"}, link, Upload{Filename: "IMG_0001.JPG", Data: src})
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}

	if !r.WebPreferred || !r.DocPreferred {
		t.Errorf("first picture should be web and doc preferred, got web=%t doc=%t", r.WebPreferred, r.DocPreferred)
	}
	if r.ExcludeFromPublish {
		t.Error("picture should be publishable")
	}
	if r.MimeType != mediatypes.MimeJPEG {
		t.Errorf("MimeType = %q, want %q", r.MimeType, mediatypes.MimeJPEG)
	}
	if want := fmt.Sprintf("%d.jpg", r.ID); r.Name != want {
		t.Errorf("Name = %q, want %q", r.Name, want)
	}

	stored, data, err := env.svc.FileData(ctx, r.ID)
	if err != nil {
		t.Fatalf("FileData() error = %v", err)
	}
	if stored.Size != int64(len(data)) {
		t.Errorf("Size = %d, blob has %d bytes", stored.Size, len(data))
	}

	img := decodeImage(t, data)
	if b := img.Bounds(); b.Dx() != 480 || b.Dy() != 640 {
		t.Errorf("stored image is %dx%d, want 480x640", b.Dx(), b.Dy())
	}
	if !isRed(img.At(400, 100)) {
		t.Error("source top-left quadrant should be top-right after rotation")
	}

	blob, err := env.blobs.GetPath(ctx, "/animal/7", stored.Name)
	if err != nil {
		t.Fatalf("blob not stored under the animal path: %v", err)
	}
	if !bytes.Equal(blob, data) {
		t.Error("blob under the animal path differs from file data")
	}
}

func TestAttachFileDefaultElectionFirstWriterWins(t *testing.T) {
	env := newTestEnv(t, nil)
	link := Link{Type: LinkAnimal, ID: 1}

	first := env.attachPicture(t, link)
	second := env.attachPicture(t, link)

	if !first.WebPreferred || !first.DocPreferred {
		t.Error("first picture should hold both flags")
	}
	if second.WebPreferred || second.DocPreferred {
		t.Error("second picture should not take flags from the first")
	}
	env.checkSingleHolders(t, link)
}

func TestAttachFilePolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   func(*Policy)
		upload   Upload
		wantErr  bool
		excluded bool
	}{
		{
			name:    "pictures disabled",
			policy:  func(p *Policy) { p.AllowJPG = false },
			upload:  Upload{Filename: "a.jpg"},
			wantErr: true,
		},
		{
			name:    "pdf disabled",
			policy:  func(p *Policy) { p.AllowPDF = false },
			upload:  Upload{Filename: "a.pdf", Data: []byte("%PDF-1.4\n%%EOF\n")},
			wantErr: true,
		},
		{
			name:     "new images not for publish",
			policy:   func(p *Policy) { p.AutoNewImagesNotForPublish = true },
			upload:   Upload{Filename: "a.jpg"},
			excluded: true,
		},
		{
			name:   "pdf allowed",
			policy: func(*Policy) {},
			upload: Upload{Filename: "a.pdf", Data: []byte("%PDF-1.4\n%%EOF\n")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *Config) { tt.policy(&c.Policy) })
			up := tt.upload
			if up.Data == nil {
				up.Data = quadrantJPEG(t, 64, 32)
			}
			link := Link{Type: LinkAnimal, ID: 3}

			r, err := env.svc.AttachFile(context.Background(), Session{}, link, up)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("AttachFile() error = %v, want validation error", err)
				}
				records, _ := env.svc.List(context.Background(), link)
				if len(records) != 0 {
					t.Errorf("rejected upload stored %d records", len(records))
				}
				return
			}
			if err != nil {
				t.Fatalf("AttachFile() error = %v", err)
			}
			if r.ExcludeFromPublish != tt.excluded {
				t.Errorf("ExcludeFromPublish = %t, want %t", r.ExcludeFromPublish, tt.excluded)
			}
			if tt.excluded && (r.WebPreferred || r.DocPreferred) {
				t.Error("excluded picture should not be elected")
			}
		})
	}
}

func TestAttachFileDataURI(t *testing.T) {
	env := newTestEnv(t, nil)
	jpg := quadrantJPEG(t, 64, 32)

	// Browsers sometimes turn '+' into ' ' in form posts.
	encoded := base64.StdEncoding.EncodeToString(jpg)
	mangled := "data:image/jpeg;base64," + string(bytes.ReplaceAll([]byte(encoded), []byte("+"), []byte(" ")))

	r, err := env.svc.AttachFile(context.Background(), Session{}, Link{Type: LinkPerson, ID: 2}, Upload{
		Filename: "signature",
		DataURI:  mangled,
	})
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if mediatypes.Extension(r.Name) != "jpg" {
		t.Errorf("Name = %q, want a .jpg name", r.Name)
	}
	if _, err := env.blobs.GetPath(context.Background(), "/owner/2", r.Name); err != nil {
		t.Errorf("person media should be stored under /owner/2: %v", err)
	}
}

func TestAttachFileDataURIConvertsAnyImage(t *testing.T) {
	env := newTestEnv(t, nil)
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, red)
		}
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}

	r, err := env.svc.AttachFile(context.Background(), Session{}, Link{Type: LinkAnimal, ID: 6}, Upload{
		Filename: "cat.gif",
		DataURI:  "data:image/gif;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if mediatypes.Extension(r.Name) != "jpg" || r.MimeType != mediatypes.MimeJPEG {
		t.Errorf("GIF data URI stored as %s (%s), want .jpg image/jpeg", r.Name, r.MimeType)
	}
	if !r.WebPreferred {
		t.Error("converted picture should be elected web preferred")
	}
	_, data, err := env.svc.FileData(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !mediatypes.IsJPEG(data) {
		t.Error("stored GIF upload is not JPEG encoded")
	}
	if b := decodeImage(t, data).Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("stored picture is %dx%d, want 40x20", b.Dx(), b.Dy())
	}
}

func TestAttachFileInvalidIncomingScale(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Policy.IncomingScale = "huge" })
	jpg := quadrantJPEG(t, 800, 600)

	r, err := env.svc.AttachFile(context.Background(), Session{}, Link{Type: LinkAnimal, ID: 7}, Upload{
		Filename: "big.jpg",
		Data:     jpg,
	})
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	_, data, err := env.svc.FileData(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b := decodeImage(t, data).Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("stored picture is %dx%d, want the unscaled 800x600", b.Dx(), b.Dy())
	}
}

func TestAttachFileRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	link := Link{Type: LinkAnimal, ID: 1}

	tests := []struct {
		name string
		up   Upload
	}{
		{"malformed data uri", Upload{Filename: "x.jpg", DataURI: "data:image/jpeg;base64,***"}},
		{"empty", Upload{Filename: "x.jpg"}},
		{"no extension", Upload{Filename: "blob", Data: []byte{0x01, 0x02, 0x03}}},
		{"link type", Upload{Filename: "x", DeclaredType: "text/url", Data: []byte("http://example.com")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.AttachFile(ctx, Session{}, link, tt.up); !errors.Is(err, ErrValidation) {
				t.Errorf("AttachFile() error = %v, want validation error", err)
			}
		})
	}
}

func TestAttachFilePNGStoredAsJPEG(t *testing.T) {
	env := newTestEnv(t, nil)
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	r, err := env.svc.AttachFile(context.Background(), Session{}, Link{Type: LinkAnimal, ID: 9}, Upload{
		Filename: "drawing.png",
		Data:     buf.Bytes(),
	})
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if r.MimeType != mediatypes.MimeJPEG || mediatypes.Extension(r.Name) != "jpg" {
		t.Errorf("PNG stored as %s (%s), want .jpg image/jpeg", r.Name, r.MimeType)
	}
	_, data, err := env.svc.FileData(context.Background(), r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !mediatypes.IsJPEG(data) {
		t.Error("stored PNG upload is not JPEG encoded")
	}
}

func TestAttachFilePDFCompression(t *testing.T) {
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 1000)...)

	tests := []struct {
		name      string
		during    bool
		fn        func([]byte) []byte
		wantSize  int
		wantCalls int32
	}{
		{"disabled during attach", false, func(b []byte) []byte { return b[:100] }, len(pdf), 0},
		{"smaller kept", true, func(b []byte) []byte { return b[:100] }, 100, 1},
		{"same size rejected", true, func(b []byte) []byte { return b }, len(pdf), 1},
		{"larger rejected", true, func(b []byte) []byte { return append(b, 'y') }, len(pdf), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &fakeCompressor{fn: tt.fn}
			env := newTestEnv(t, func(c *Config) {
				c.PDF = comp
				c.Policy.ScalePDFDuringAttach = tt.during
			})
			r, err := env.svc.AttachFile(context.Background(), Session{}, Link{Type: LinkAnimal, ID: 1}, Upload{
				Filename: "vaccination.pdf",
				Data:     pdf,
			})
			if err != nil {
				t.Fatalf("AttachFile() error = %v", err)
			}
			if r.Size != int64(tt.wantSize) {
				t.Errorf("Size = %d, want %d", r.Size, tt.wantSize)
			}
			if comp.calls != tt.wantCalls {
				t.Errorf("compressor called %d times, want %d", comp.calls, tt.wantCalls)
			}
			if r.WebPreferred || r.DocPreferred {
				t.Error("PDF should never be elected")
			}
		})
	}
}

func TestAttachFileNotes(t *testing.T) {
	tests := []struct {
		name     string
		policy   func(*Policy)
		link     Link
		comments string
		want     string
	}{
		{"explicit comment", func(*Policy) {}, Link{Type: LinkAnimal, ID: 5}, "hello", "hello"},
		{"animal comments", func(p *Policy) { p.AutoMediaNotes = true }, Link{Type: LinkAnimal, ID: 5}, "", "Friendly tabby"},
		{"filename for person", func(p *Policy) { p.AutoMediaNotes = true }, Link{Type: LinkPerson, ID: 5}, "", "cat.jpg"},
		{"no default", func(p *Policy) { p.DefaultMediaNotesFromFile = false }, Link{Type: LinkAnimal, ID: 5}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *Config) {
				tt.policy(&c.Policy)
				c.Comments = fakeComments{5: "Friendly tabby"}
			})
			r, err := env.svc.AttachFile(context.Background(), Session{}, tt.link, Upload{
				Filename: `C:\Users\me\cat.jpg`,
				Data:     quadrantJPEG(t, 64, 32),
				Comments: tt.comments,
			})
			if err != nil {
				t.Fatalf("AttachFile() error = %v", err)
			}
			if r.Notes != tt.want {
				t.Errorf("Notes = %q, want %q", r.Notes, tt.want)
			}
		})
	}
}

func TestAttachLink(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	link := Link{Type: LinkAnimal, ID: 4}

	first, err := env.svc.AttachLink(ctx, Session{}, link, LinkUpload{URL: " youtube.com/watch?v=1 ", Kind: KindVideoLink})
	if err != nil {
		t.Fatalf("AttachLink() error = %v", err)
	}
	if first.Name != "http://youtube.com/watch?v=1" {
		t.Errorf("Name = %q, want scheme added and spaces trimmed", first.Name)
	}
	if first.MimeType != mediatypes.MimeURL || first.Size != 0 || first.DBFSID != 0 {
		t.Errorf("link record = %+v, want text/url with no content", first)
	}
	if !first.VideoPreferred {
		t.Error("first video link should be video preferred")
	}

	second, err := env.svc.AttachLink(ctx, Session{}, link, LinkUpload{URL: "https://vimeo.com/2", Kind: KindVideoLink})
	if err != nil {
		t.Fatalf("AttachLink() error = %v", err)
	}
	if second.VideoPreferred {
		t.Error("second video link should not be video preferred")
	}

	doc, err := env.svc.AttachLink(ctx, Session{}, Link{Type: LinkAnimal, ID: 8}, LinkUpload{URL: "https://example.com/a.pdf", Kind: KindDocumentLink})
	if err != nil {
		t.Fatalf("AttachLink() error = %v", err)
	}
	if doc.VideoPreferred {
		t.Error("document links are never video preferred")
	}

	for _, bad := range []LinkUpload{{URL: "  ", Kind: KindVideoLink}, {URL: "http://x", Kind: KindFile}} {
		if _, err := env.svc.AttachLink(ctx, Session{}, link, bad); !errors.Is(err, ErrValidation) {
			t.Errorf("AttachLink(%+v) error = %v, want validation error", bad, err)
		}
	}
	env.checkSingleHolders(t, link)
}
