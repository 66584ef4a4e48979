package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"shelter-media/internal/logging"
)

var log = logging.Component("document")

const (
	// DefaultPDFCommand compresses a PDF by rasterising it with ImageMagick.
	DefaultPDFCommand = "convert -density 120 -quality 60 %(input)s -compress Jpeg %(output)s"

	// MaxCompressPages is the page count above which compression is not
	// attempted.
	MaxCompressPages = 50

	// DefaultToolTimeout bounds every external command run.
	DefaultToolTimeout = 2 * time.Minute
)

// DefaultKnownErrors lists tool output that means the result is unusable even
// when the exit code is zero.
var DefaultKnownErrors = []string{
	// ghostscript with an old libpoppler on Microsoft Print to PDF output
	"Can't find CMap Identity-UTF16-H building a CIDDecoding resource.",
}

var (
	// ErrTooManyPages is returned without running the tool.
	ErrTooManyPages = errors.New("too many pages to compress")
	// ErrEmptyOutput is returned when the tool produced a zero byte file.
	ErrEmptyOutput = errors.New("compressed output is empty")
	// ErrNotSmaller is returned when compression did not save any space.
	ErrNotSmaller = errors.New("compressed output is not smaller")
)

var pageMarker = regexp.MustCompile(`/Type\s*/Page([^s]|$)`)

// CountPDFPages counts page objects with a pattern scan of the raw bytes.
func CountPDFPages(data []byte) int {
	return len(pageMarker.FindAllIndex(data, -1))
}

// Compactor shrinks PDFs with an external command.
type Compactor struct {
	// Command is a template using %(input)s and %(output)s.
	Command     string
	Timeout     time.Duration
	KnownErrors []string
	MaxPages    int
}

// NewCompactor returns a Compactor with the default denylist and page limit.
// An empty command selects DefaultPDFCommand.
func NewCompactor(command string, timeout time.Duration) *Compactor {
	if command == "" {
		command = DefaultPDFCommand
	}
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Compactor{
		Command:     command,
		Timeout:     timeout,
		KnownErrors: DefaultKnownErrors,
		MaxPages:    MaxCompressPages,
	}
}

// Compress returns the compressed PDF, or an error when the result must not
// be used. Callers keep the original bytes on any error.
func (c *Compactor) Compress(ctx context.Context, data []byte) ([]byte, error) {
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = MaxCompressPages
	}
	if pages := CountPDFPages(data); pages > maxPages {
		return nil, fmt.Errorf("%w: %d found", ErrTooManyPages, pages)
	}

	out, err := toolRun{
		tool:        "pdf_compress",
		template:    c.Command,
		input:       data,
		inSuffix:    ".pdf",
		outSuffix:   ".pdf",
		timeout:     c.Timeout,
		knownErrors: c.KnownErrors,
	}.run(ctx)
	if err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	if len(out) >= len(data) {
		return nil, fmt.Errorf("%w: %d >= %d bytes", ErrNotSmaller, len(out), len(data))
	}
	log.Debug("compressed pdf from %d to %d bytes", len(data), len(out))
	return out, nil
}
