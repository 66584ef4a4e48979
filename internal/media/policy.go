package media

import "shelter-media/internal/imageops"

// Policy holds the administrative switches the pipeline reads. It is loaded
// from the [media] table of the policy file.
type Policy struct {
	// AllowJPG and AllowPDF gate uploads of pictures and PDFs.
	AllowJPG bool `toml:"allow_jpg"`
	AllowPDF bool `toml:"allow_pdf"`

	// IncomingScale is the "WxH" box new pictures are shrunk into, or "None".
	IncomingScale string `toml:"incoming_scale"`

	ScalePDFs            bool `toml:"scale_pdfs"`
	ScalePDFDuringAttach bool `toml:"scale_pdf_during_attach"`

	AutoNewImagesNotForPublish bool `toml:"auto_new_images_not_for_publish"`

	// AutoMediaNotes copies the animal's comments into the notes of new
	// animal pictures uploaded without a comment.
	AutoMediaNotes            bool `toml:"auto_media_notes"`
	DefaultMediaNotesFromFile bool `toml:"default_media_notes_from_file"`

	AutoRemoveDocumentMedia      bool `toml:"auto_remove_document_media"`
	AutoRemoveDocumentMediaYears int  `toml:"auto_remove_document_media_years"`

	// SignatureDateLayout formats the date appended under a signature.
	SignatureDateLayout string `toml:"signature_date_layout"`
}

// DefaultPolicy returns the settings a fresh installation starts with.
func DefaultPolicy() Policy {
	return Policy{
		AllowJPG:                  true,
		AllowPDF:                  true,
		IncomingScale:             imageops.DefaultSpec,
		ScalePDFs:                 true,
		ScalePDFDuringAttach:      false,
		DefaultMediaNotesFromFile: true,
		SignatureDateLayout:       "02/01/2006 15:04",
	}
}

func (p Policy) signatureDateLayout() string {
	if p.SignatureDateLayout == "" {
		return "02/01/2006 15:04"
	}
	return p.SignatureDateLayout
}
