package mediatypes

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
)

func TestMimeType(t *testing.T) {
	table := NewTable(nil)

	tests := []struct {
		name string
		want string
	}{
		{"12.jpg", "image/jpeg"},
		{"12.JPEG", "image/jpeg"},
		{"photo.png", "image/png"},
		{"letter.doc", "application/msword"},
		{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"sheet.xls", "application/vnd.ms-excel"},
		{"slides.pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		{"notes.odt", "application/vnd.oasis.opendocument.text"},
		{"legacy.sxw", "application/vnd.oasis.opendocument.text"},
		{"calc.ods", "application/vnd.oasis.opendocument.spreadsheet"},
		{"deck.odp", "application/vnd.oasis.opendocument.presentation"},
		{"scan.pdf", "application/pdf"},
		{"clip.mpg", "video/mpg"},
		{"song.mp3", "audio/mpeg3"},
		{"movie.avi", "video/avi"},
		{"unknown.xyz", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.MimeType(tt.name); got != tt.want {
				t.Errorf("MimeType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestTableOverrides(t *testing.T) {
	table := NewTable(map[string]string{
		".WEBP": "image/webp",
		"mpg":   "video/mpeg",
	})

	if got := table.MimeType("a.webp"); got != "image/webp" {
		t.Errorf("override not applied: got %q", got)
	}
	if got := table.MimeType("a.mpg"); got != "video/mpeg" {
		t.Errorf("replacement not applied: got %q", got)
	}
	if got := table.MimeType("a.pdf"); got != MimePDF {
		t.Errorf("defaults lost: got %q", got)
	}
	if !table.Known("webp") || table.Known("zzz") {
		t.Error("Known() does not reflect table contents")
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12.jpg", "jpg"},
		{"archive.tar.GZ", "gz"},
		{"no_ext", ""},
		{"dir.v2/file", ""},
		{"trailing.", ""},
	}
	for _, tt := range tests {
		if got := Extension(tt.in); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilenameOnly(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"/home/user/photo.jpg", "photo.jpg"},
		{`C:\Users\me\photo.jpg`, "photo.jpg"},
		{"mixed/dir\\photo.jpg", "photo.jpg"},
	}
	for _, tt := range tests {
		if got := FilenameOnly(tt.in); got != tt.want {
			t.Errorf("FilenameOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	table := NewTable(nil)

	tests := []struct {
		name        string
		filename    string
		declared    string
		wantExt     string
		wantSource  string
		wantMime    string
		wantPicture bool
		wantPDF     bool
		wantErr     error
	}{
		{
			name: "jpeg by declared type", filename: "blob", declared: "image/jpeg",
			wantExt: "jpg", wantSource: "jpg", wantMime: MimeJPEG, wantPicture: true,
		},
		{
			name: "jpeg extension normalized", filename: "IMG.JPEG",
			wantExt: "jpg", wantSource: "jpeg", wantMime: MimeJPEG, wantPicture: true,
		},
		{
			name: "png stored as jpg", filename: "shot.png", declared: "image/png",
			wantExt: "jpg", wantSource: "png", wantMime: MimeJPEG, wantPicture: true,
		},
		{
			name: "pdf by declared type", filename: "upload", declared: "application/pdf",
			wantExt: "pdf", wantSource: "pdf", wantMime: MimePDF, wantPDF: true,
		},
		{
			name: "html", filename: "letter.html", declared: "text/html",
			wantExt: "html", wantSource: "html", wantMime: MimeHTML,
		},
		{
			name: "office document by filename", filename: "C:\\docs\\report.DOCX",
			wantExt: "docx", wantSource: "docx",
			wantMime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
		{
			name: "gif is not a picture", filename: "anim.gif", declared: "image/gif",
			wantExt: "gif", wantSource: "gif", wantMime: "image/gif",
		},
		{
			name: "extension from declared type only", filename: "", declared: "application/msword",
			wantExt: "doc", wantSource: "doc", wantMime: "application/msword",
		},
		{
			name: "nothing to go on", filename: "blob", declared: "",
			wantErr: ErrUnknownExtension,
		},
		{
			name: "unrecognized declared type", filename: "", declared: "application/x-made-up",
			wantErr: ErrUnknownExtension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Classify(tt.filename, tt.declared)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Classify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify() unexpected error: %v", err)
			}
			if got.Ext != tt.wantExt || got.SourceExt != tt.wantSource {
				t.Errorf("ext = %q/%q, want %q/%q", got.Ext, got.SourceExt, tt.wantExt, tt.wantSource)
			}
			if got.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", got.MimeType, tt.wantMime)
			}
			if got.IsPicture != tt.wantPicture || got.IsPDF != tt.wantPDF {
				t.Errorf("IsPicture/IsPDF = %v/%v, want %v/%v", got.IsPicture, got.IsPDF, tt.wantPicture, tt.wantPDF)
			}
		})
	}
}

func TestClassifyDataURI(t *testing.T) {
	table := NewTable(nil)

	tests := []struct {
		name        string
		filename    string
		declared    string
		wantExt     string
		wantSource  string
		wantPicture bool
		wantConvert bool
	}{
		{"jpeg", "cat.jpg", "image/jpeg", "jpg", "jpg", true, false},
		{"gif stored as picture", "cat.gif", "image/gif", "jpg", "gif", true, true},
		{"webp stored as picture", "cat.webp", "image/webp", "jpg", "webp", true, true},
		{"bmp alias", "scan", "image/x-ms-bmp", "jpg", "bmp", true, true},
		{"declared image wins over filename", "notes.txt", "image/png", "jpg", "png", true, true},
		{"pdf falls through", "form", "application/pdf", "pdf", "pdf", false, false},
		{"jpg filename without type", "cat.jpg", "", "jpg", "jpg", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.ClassifyDataURI(tt.filename, tt.declared)
			if err != nil {
				t.Fatalf("ClassifyDataURI() error = %v", err)
			}
			if got.Ext != tt.wantExt || got.SourceExt != tt.wantSource {
				t.Errorf("ext = %q/%q, want %q/%q", got.Ext, got.SourceExt, tt.wantExt, tt.wantSource)
			}
			if got.IsPicture != tt.wantPicture {
				t.Errorf("IsPicture = %v, want %v", got.IsPicture, tt.wantPicture)
			}
			if got.NeedsJPEGConversion() != tt.wantConvert {
				t.Errorf("NeedsJPEGConversion() = %v, want %v", got.NeedsJPEGConversion(), tt.wantConvert)
			}
			if got.IsPicture && got.MimeType != MimeJPEG {
				t.Errorf("MimeType = %q, want %q", got.MimeType, MimeJPEG)
			}
		})
	}

	if _, err := table.ClassifyDataURI("blob", ""); !errors.Is(err, ErrUnknownExtension) {
		t.Errorf("ClassifyDataURI(no type) error = %v, want ErrUnknownExtension", err)
	}
}

func TestClassifyLink(t *testing.T) {
	got, err := NewTable(nil).Classify("https://example.org/video", MimeURL)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !got.IsLink || got.MimeType != MimeURL || got.IsPicture {
		t.Errorf("unexpected link classification: %+v", got)
	}
}

func TestNeedsJPEGConversion(t *testing.T) {
	table := NewTable(nil)
	png, _ := table.Classify("a.png", "")
	jpg, _ := table.Classify("a.jpg", "")
	pdf, _ := table.Classify("a.pdf", "")

	if !png.NeedsJPEGConversion() {
		t.Error("png upload should need conversion")
	}
	if jpg.NeedsJPEGConversion() || pdf.NeedsJPEGConversion() {
		t.Error("jpg and pdf uploads should not need conversion")
	}
}

func TestDecodeDataURI(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xbe, 'h', 'e', 'l', 'l', 'o'}
	encoded := base64.StdEncoding.EncodeToString(raw)
	if !strings.Contains(encoded, "+") {
		t.Fatalf("test payload should contain '+', got %q", encoded)
	}

	tests := []struct {
		name     string
		input    string
		wantMime string
	}{
		{"full data URI", "data:image/jpeg;base64," + encoded, "image/jpeg"},
		{"pluses mangled into spaces", "data:application/pdf;base64," + strings.ReplaceAll(encoded, "+", " "), "application/pdf"},
		{"bare base64", encoded, ""},
		{"missing padding", "data:image/png;base64," + strings.TrimRight(encoded, "="), "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := DecodeDataURI(tt.input)
			if err != nil {
				t.Fatalf("DecodeDataURI() error = %v", err)
			}
			if !bytes.Equal(data, raw) {
				t.Errorf("data = %v, want %v", data, raw)
			}
			if mime != tt.wantMime {
				t.Errorf("mime = %q, want %q", mime, tt.wantMime)
			}
		})
	}
}

func TestDecodeDataURIErrors(t *testing.T) {
	for _, input := range []string{"data:image/jpeg;base64", "data:image/jpeg;base64,@@@not base64@@@"} {
		if _, _, err := DecodeDataURI(input); !errors.Is(err, ErrMalformedDataURI) {
			t.Errorf("DecodeDataURI(%q) error = %v, want ErrMalformedDataURI", input, err)
		}
	}
}

func TestSniff(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	if got := Sniff(buf.Bytes()); got != MimePNG {
		t.Errorf("Sniff(png) = %q, want %q", got, MimePNG)
	}
	if got := Sniff([]byte("%PDF-1.4\n")); got != MimePDF {
		t.Errorf("Sniff(pdf) = %q, want %q", got, MimePDF)
	}
	if IsJPEG(buf.Bytes()) {
		t.Error("IsJPEG(png) = true")
	}
	if !IsJPEG([]byte{0xFF, 0xD8, 0xFF, 0xE0}) {
		t.Error("IsJPEG(SOI) = false")
	}
}
