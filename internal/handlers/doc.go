// Package handlers provides the HTTP JSON API over the media service.
//
// It includes handlers for:
//   - Uploads (multipart or data URI), links and generated documents
//   - Record reads, notes, retention, rotation and deletion
//   - Preference flags and publishing exclusion
//   - Document signing and the signing audit trail
//   - Image lookups by entity, sequence or stored path
//   - Health checks, stats and version
//
// The acting user arrives in the X-Shelter-User header; authentication is
// left to the upstream application.
package handlers
