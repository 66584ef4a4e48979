package mediatypes

import (
	"strings"
	"sync"
)

// Well-known MIME types the pipeline branches on.
const (
	MimeJPEG        = "image/jpeg"
	MimePNG         = "image/png"
	MimePDF         = "application/pdf"
	MimeODT         = "application/vnd.oasis.opendocument.text"
	MimeHTML        = "text/html"
	MimeURL         = "text/url"
	MimeOctetStream = "application/octet-stream"
)

// DefaultMimeTypes maps lower-case extensions (without the dot) to MIME types.
var DefaultMimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"bmp":  "image/bmp",
	"gif":  "image/gif",
	"png":  "image/png",
	"doc":  "application/msword",
	"xls":  "application/vnd.ms-excel",
	"ppt":  "application/vnd.ms-powerpoint",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xslx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"odt":  "application/vnd.oasis.opendocument.text",
	"sxw":  "application/vnd.oasis.opendocument.text",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"odp":  "application/vnd.oasis.opendocument.presentation",
	"pdf":  "application/pdf",
	"mpg":  "video/mpg",
	"mp3":  "audio/mpeg3",
	"avi":  "video/avi",
	"html": "text/html",
}

// Table is an extension to MIME type lookup. The zero value is not usable;
// build one with NewTable.
type Table struct {
	mu    sync.RWMutex
	types map[string]string
}

// NewTable returns a table seeded with DefaultMimeTypes and then the given
// overrides. Override keys may carry a leading dot and any case.
func NewTable(overrides map[string]string) *Table {
	t := &Table{types: make(map[string]string, len(DefaultMimeTypes)+len(overrides))}
	for ext, mime := range DefaultMimeTypes {
		t.types[ext] = mime
	}
	for ext, mime := range overrides {
		t.Set(ext, mime)
	}
	return t
}

// Set adds or replaces a single mapping.
func (t *Table) Set(ext, mime string) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" || mime == "" {
		return
	}
	t.mu.Lock()
	t.types[ext] = mime
	t.mu.Unlock()
}

// MimeType returns the MIME type for a stored media name such as "12.jpg".
// Unknown extensions map to application/octet-stream.
func (t *Table) MimeType(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if mime, ok := t.types[Extension(name)]; ok {
		return mime
	}
	return MimeOctetStream
}

// Known reports whether the extension has an entry in the table.
func (t *Table) Known(ext string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.types[strings.ToLower(ext)]
	return ok
}

// Extension returns the lower-cased text after the last "." in name, or ""
// when there is none.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i == -1 {
		return ""
	}
	ext := name[i+1:]
	if strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return strings.ToLower(ext)
}

// FilenameOnly strips any directory components, forward or back slash, from
// a client supplied filename.
func FilenameOnly(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i != -1 {
		return filename[i+1:]
	}
	return filename
}
