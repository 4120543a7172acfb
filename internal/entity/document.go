package entity

import (
	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// RawDocument is an uploaded document handed to the extraction pipeline.
// It is read-only once constructed.
type RawDocument struct {
	Filename    string                 `json:"filename"`
	Ext         string                 `json:"ext"` // declared type: pdf|png|jpg|jpeg|gif
	Kind        constants.DocumentKind `json:"kind"`
	ContentHash string                 `json:"content_hash,omitempty"` // hex sha256
	Content     []byte                 `json:"-"`
}

// MIMEType returns the content type for the declared extension.
func (d RawDocument) MIMEType() string {
	return constants.MIMEForExt(d.Ext)
}

// Provenance tags which extraction stage produced a piece of text.
type Provenance string

const (
	ProvenanceNativeText  Provenance = "native-text"
	ProvenanceOCR         Provenance = "ocr"
	ProvenanceVisionModel Provenance = "vision-model"
	ProvenanceNone        Provenance = "none"
)

// ExtractedText is the output of the text extraction cascade.
type ExtractedText struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
}
