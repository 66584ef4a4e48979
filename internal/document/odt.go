package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// MinStrippedODTSize is the smallest stripped document callers should accept.
// Anything smaller means the strip went wrong.
const MinStrippedODTSize = 512

// ErrNotZip is returned when the document is not a readable zip container.
var ErrNotZip = errors.New("not a zip archive")

func skipODTEntry(name string) bool {
	return strings.HasPrefix(name, "ObjectReplacements/Object ") ||
		strings.HasPrefix(name, "Object ") ||
		strings.HasSuffix(name, ".jpg") ||
		strings.HasSuffix(name, ".png")
}

// StripODT rewrites an OpenDocument container without embedded objects and
// pictures. Kept entries are copied without recompression.
func StripODT(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotZip, err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if skipODTEntry(f.Name) {
			continue
		}
		if err := zw.Copy(f); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
