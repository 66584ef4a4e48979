// Package imageops implements the picture transforms applied to uploaded
// media: EXIF auto-rotation, scaling into a bounding box, manual quarter
// turns and thumbnails.
//
// Every operation takes and returns an in-memory byte buffer and re-encodes
// to JPEG. Errors are returned, never swallowed; callers decide whether to
// fall back to the original bytes.
//
// When libvips has been started with InitVips, scaling uses govips
// decode-time shrinking. Otherwise the pure Go imaging path is used.
package imageops
