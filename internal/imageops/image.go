package imageops

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// NoScale is the scale spec that disables scaling altogether.
	NoScale = "None"

	// ThumbnailSpec is the bounding box used for thumbnails.
	ThumbnailSpec = "150x150"

	// DefaultSpec replaces unparseable specs in bulk rescale jobs.
	DefaultSpec = "640x640"

	// JPEGQuality is used for every re-encode.
	JPEGQuality = 85

	// MaxImagePixels is the maximum total pixels (width * height) we'll decode.
	// A 40MP image uses ~160MB in RGBA.
	MaxImagePixels = 40_000_000
)

var (
	// ErrDecode is returned when the payload is not an image we can read.
	ErrDecode = errors.New("cannot decode image")
	// ErrTooLarge is returned when the image exceeds MaxImagePixels.
	ErrTooLarge = errors.New("image exceeds pixel limit")
	// ErrBadSpec is returned for scale specs that are not "WxH".
	ErrBadSpec = errors.New("invalid scale spec")
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Dimensions returns image dimensions without fully decoding the image
func Dimensions(data []byte) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// decode probes the header first so oversized images are refused before any
// pixel memory is allocated. EXIF orientation is ignored here; AutoRotate
// handles it explicitly.
func decode(data []byte) (image.Image, error) {
	dims, err := Dimensions(data)
	if err != nil {
		return nil, err
	}
	if dims.Width*dims.Height > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, dims.Width, dims.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Placeholder returns a plain grey JPEG filling the thumbnail box.
func Placeholder() ([]byte, error) {
	side, err := ParseSpec(ThumbnailSpec)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(imaging.New(side, side, color.Gray{Y: 0xCC}))
}

// ToJPEG re-encodes any decodable image as JPEG.
func ToJPEG(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

// ParseSpec parses a "WxH" bounding box spec and returns the side of the
// bounding square, the larger of W and H.
func ParseSpec(spec string) (int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), "x")
	if !ok {
		return 0, fmt.Errorf("%w: '%s'", ErrBadSpec, spec)
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: '%s'", ErrBadSpec, spec)
	}
	return max(width, height), nil
}

// NormalizeSpec returns spec when it is NoScale or a valid "WxH" and
// DefaultSpec otherwise.
func NormalizeSpec(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == NoScale {
		return spec
	}
	if _, err := ParseSpec(spec); err != nil {
		return DefaultSpec
	}
	return spec
}
