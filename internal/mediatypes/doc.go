// Package mediatypes classifies incoming attachments.
//
// It owns the extension to MIME type table (seeded from DefaultMimeTypes and
// extendable from the policy file), decodes data URI payloads posted by
// browsers, and decides whether an upload is a picture, a PDF or a link.
//
// # Classification
//
//	table := mediatypes.NewTable(nil)
//	c, err := table.Classify("IMG_0001.PNG", "image/png")
//	// c.Ext == "jpg", c.SourceExt == "png", c.IsPicture == true
//
// PNG uploads are stored under the .jpg extension because the picture
// transforms always re-encode them as JPEG.
//
// # Data URIs
//
//	data, mime, err := mediatypes.DecodeDataURI("data:image/jpeg;base64,/9j/4AAQ...")
//
// Spaces in the payload are turned back into '+' before decoding.
package mediatypes
