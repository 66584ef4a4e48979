package mediatypes

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnknownExtension is returned when neither the declared type nor the
	// filename yields a file extension.
	ErrUnknownExtension = errors.New("could not determine extension")
	// ErrMalformedDataURI is returned for data URIs that cannot be decoded.
	ErrMalformedDataURI = errors.New("malformed data URI")
)

// Classification describes how an incoming attachment will be stored.
type Classification struct {
	// Ext is the extension the stored media name will carry, without the dot.
	Ext string
	// SourceExt is the extension the payload arrived as. It differs from Ext
	// for PNG uploads, which are stored as JPEG.
	SourceExt string
	MimeType  string
	IsPicture bool
	IsPDF     bool
	IsLink    bool
}

// NeedsJPEGConversion reports whether the payload must be re-encoded before
// it matches the stored extension.
func (c Classification) NeedsJPEGConversion() bool {
	return c.IsPicture && c.SourceExt != "jpg" && c.SourceExt != "jpeg"
}

// Classify works out the stored extension and type of an attachment from its
// filename and declared MIME type. Multipart uploads pass the part's
// Content-Type; data URI uploads go through ClassifyDataURI first.
func (t *Table) Classify(filename, declaredType string) (Classification, error) {
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	fileExt := Extension(FilenameOnly(filename))

	if declared == MimeURL {
		return Classification{MimeType: MimeURL, IsLink: true}, nil
	}

	var c Classification
	switch {
	case declared == MimeJPEG || declared == "image/jpg" || fileExt == "jpg" || fileExt == "jpeg":
		c.SourceExt = "jpg"
		if fileExt == "jpeg" {
			c.SourceExt = "jpeg"
		}
	case declared == MimePNG || fileExt == "png":
		c.SourceExt = "png"
	case strings.Contains(declared, "pdf") || fileExt == "pdf":
		c.SourceExt = "pdf"
	case strings.Contains(declared, "html") || fileExt == "html" || fileExt == "htm":
		c.SourceExt = "html"
	case fileExt != "":
		c.SourceExt = fileExt
	default:
		c.SourceExt = extensionForMime(declared)
	}

	if c.SourceExt == "" {
		return Classification{}, fmt.Errorf("%w from type '%s'", ErrUnknownExtension, declaredType)
	}

	// PNG is re-encoded to JPEG by the picture transforms, so it is stored
	// under the JPEG extension from the start.
	c.Ext = c.SourceExt
	if c.Ext == "png" || c.Ext == "jpeg" {
		c.Ext = "jpg"
	}
	c.IsPicture = c.Ext == "jpg"
	c.IsPDF = c.Ext == "pdf"
	c.MimeType = t.MimeType("x." + c.Ext)
	return c, nil
}

// ClassifyDataURI classifies a data URI upload. Any declared image type is
// stored as a JPEG picture whatever the filename says; the payload keeps its
// own format in SourceExt so the pipeline re-encodes it. Other types follow
// Classify.
func (t *Table) ClassifyDataURI(filename, declaredType string) (Classification, error) {
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	sub, ok := strings.CutPrefix(declared, "image/")
	if !ok || sub == "" {
		return t.Classify(filename, declaredType)
	}
	switch sub {
	case "jpeg", "jpg", "pjpeg":
		sub = "jpg"
	case "x-ms-bmp":
		sub = "bmp"
	}
	return Classification{
		Ext:       "jpg",
		SourceExt: sub,
		MimeType:  t.MimeType("x.jpg"),
		IsPicture: true,
	}, nil
}

func extensionForMime(declared string) string {
	if declared == "" {
		return ""
	}
	if m := mimetype.Lookup(declared); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return ""
}

// Sniff returns the MIME type detected from the content itself.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsJPEG reports whether data starts with the JPEG SOI marker.
func IsJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// DecodeDataURI decodes "data:<mime>;base64,<payload>" into raw bytes and the
// MIME type from its prefix. A bare base64 string is accepted too. Form
// transport sometimes turns '+' into ' ', which is reversed before decoding.
func DecodeDataURI(s string) (data []byte, mime string, err error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma == -1 {
			return nil, "", fmt.Errorf("%w: missing ',' separator", ErrMalformedDataURI)
		}
		header := payload[len("data:"):comma]
		mime = header
		if semi := strings.Index(header, ";"); semi != -1 {
			mime = header[:semi]
		}
		payload = payload[comma+1:]
	}
	payload = strings.ReplaceAll(payload, " ", "+")

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients drop the padding.
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
		}
	}
	return data, strings.ToLower(mime), nil
}
