package imageops

import (
	"bytes"
	"image"

	"shelter-media/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

var log = logging.Component("imageops")

// ScaleToBBox shrinks the image so its longest side fits a square whose side
// is the larger of W and H in spec, preserving the aspect ratio. Images that
// already fit are re-encoded but never enlarged. The NoScale spec returns data
// untouched.
func ScaleToBBox(data []byte, spec string) ([]byte, error) {
	if spec == NoScale {
		return data, nil
	}
	side, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}

	if IsVipsAvailable() {
		out, err := scaleWithVips(data, side)
		if err == nil {
			return out, nil
		}
		log.Debug("vips scale failed, using imaging: %v", err)
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	// Fit leaves images that are already inside the box alone.
	return encodeJPEG(imaging.Fit(img, side, side, imaging.Lanczos))
}

// Thumbnail scales the image into the ThumbnailSpec box.
func Thumbnail(data []byte) ([]byte, error) {
	return ScaleToBBox(data, ThumbnailSpec)
}

// Orientation returns the EXIF orientation tag, or 0 when the image carries
// no readable EXIF data.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return o
}

// AutoRotate turns the pixel data upright according to the EXIF orientation
// tag. Orientations other than 3, 6 and 8, and images without EXIF data, are
// returned as-is without re-encoding.
func AutoRotate(data []byte) ([]byte, error) {
	var rotate func(image.Image) *image.NRGBA
	switch o := Orientation(data); o {
	case 3:
		rotate = imaging.Rotate180
	case 6:
		rotate = imaging.Rotate270
	case 8:
		rotate = imaging.Rotate90
	default:
		log.Debug("orientation %d, nothing to do", o)
		return data, nil
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(rotate(img))
}

// Rotate turns the picture a quarter turn. clockwise=true moves the top-left
// corner to the top-right. imaging rotates counter-clockwise, so a clockwise
// turn is its Rotate270.
func Rotate(data []byte, clockwise bool) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	if clockwise {
		return encodeJPEG(imaging.Rotate270(img))
	}
	return encodeJPEG(imaging.Rotate90(img))
}
