package document

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// DefaultHTMLCommand renders HTML with wkhtmltopdf.
const DefaultHTMLCommand = "wkhtmltopdf --orientation %(orientation)s %(papersize)s %(input)s %(output)s"

var (
	exactPaperDirective = regexp.MustCompile(`pdf papersize exact (.+?) end`)
	zoomDirective       = regexp.MustCompile(`pdf zoom (.+?) end`)
	marginsDirective    = regexp.MustCompile(`pdf margins (.+?) end`)
	signatureImage      = regexp.MustCompile(`<img.*?signature\:.*?\/>`)
)

var fontSizes = strings.NewReplacer(
	"font-size: xx-small", "font-size: 6pt",
	"font-size: x-small", "font-size: 8pt",
	"font-size: small", "font-size: 10pt",
	"font-size: medium", "font-size: 14pt",
	"font-size: large", "font-size: 18pt",
	"font-size: x-large", "font-size: 24pt",
	"font-size: xx-large", "font-size: 36pt",
)

// PageOptions are the command line fragments substituted into the renderer
// template.
type PageOptions struct {
	Orientation string
	PaperSize   string
	Zoom        string
	Margins     string
}

// ParseDirectives reads layout directives that templates embed in comments,
// e.g. <!-- pdf orientation landscape, pdf papersize letter -->.
func ParseDirectives(html string) PageOptions {
	opts := PageOptions{
		Orientation: "portrait",
		PaperSize:   "--page-size a4",
		Zoom:        "--enable-smart-shrinking",
		Margins:     "--margin-top 1cm",
	}

	if strings.Contains(html, "pdf orientation landscape") {
		opts.Orientation = "landscape"
	}
	if strings.Contains(html, "pdf orientation portrait") {
		opts.Orientation = "portrait"
	}
	for _, size := range []string{"a5", "a4", "a3", "letter"} {
		if strings.Contains(html, "pdf papersize "+size) {
			opts.PaperSize = "--page-size " + size
		}
	}
	if m := exactPaperDirective.FindStringSubmatch(html); m != nil {
		if w, h, ok := strings.Cut(m[1], "x"); ok {
			opts.PaperSize = "--page-width " + w + " --page-height " + h
		}
	}
	if m := zoomDirective.FindStringSubmatch(html); m != nil {
		opts.Zoom = "--disable-smart-shrinking --zoom " + m[1]
	}
	if m := marginsDirective.FindStringSubmatch(html); m != nil {
		if parts := strings.Split(m[1], " "); len(parts) == 4 {
			opts.Margins = "--margin-top " + parts[0] + " --margin-bottom " + parts[1] +
				" --margin-left " + parts[2] + " --margin-right " + parts[3]
		}
	}
	return opts
}

// PrepareHTML wraps a document body for rendering. Relative font sizes are
// pinned to points and unsigned signature images are removed.
func PrepareHTML(body string) string {
	body = fontSizes.Replace(body)
	body = signatureImage.ReplaceAllString(body, "")
	body = strings.ReplaceAll(body, `"//chart.googleapis.com`, `"http://chart.googleapis.com`)

	var b strings.Builder
	b.WriteString("<!DOCTYPE HTML>\n<html>\n<head>")
	b.WriteString(`<meta http-equiv="content-type" content="text/html; charset=utf-8">` + "\n")
	b.WriteString("</head><body>")
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String()
}

// Renderer converts HTML documents to PDF with an external command.
type Renderer struct {
	// Command is a template using %(input)s, %(output)s, %(orientation)s,
	// %(papersize)s, %(zoom)s and %(margins)s.
	Command string
	Timeout time.Duration
}

// NewRenderer returns a Renderer; an empty command selects DefaultHTMLCommand.
func NewRenderer(command string, timeout time.Duration) *Renderer {
	if command == "" {
		command = DefaultHTMLCommand
	}
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Renderer{Command: command, Timeout: timeout}
}

// HTMLToPDF renders an HTML document body and returns the PDF bytes.
func (r *Renderer) HTMLToPDF(ctx context.Context, html string) ([]byte, error) {
	opts := ParseDirectives(html)
	return toolRun{
		tool:     "html_to_pdf",
		template: r.Command,
		vars: map[string]string{
			"orientation": opts.Orientation,
			"papersize":   opts.PaperSize,
			"zoom":        opts.Zoom,
			"margins":     opts.Margins,
		},
		input:     []byte(PrepareHTML(html)),
		inSuffix:  ".html",
		outSuffix: ".pdf",
		timeout:   r.Timeout,
	}.run(ctx)
}
