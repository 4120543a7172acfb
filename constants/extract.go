package constants

// Text length thresholds, counted on trimmed text.
const (
	PDFSufficientChars = 100 // native or OCR text above this ends the PDF cascade
	ImageOCRMinChars   = 10  // image OCR at or below this falls through to vision
	UsableTextMinChars = 10  // anything shorter is treated as no text at all
)

const (
	MaxRasterPages       = 5    // PDF pages rasterized for OCR
	PromptTextLimit      = 4000 // characters of document text sent to the model
	TextPreviewChars     = 500
	ResponsePreviewChars = 200
)
