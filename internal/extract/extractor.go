package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Sources are the text sources available in this process. Nil entries are
// capabilities that were not detected and are left out of the chains.
type Sources struct {
	PDFText  TextSource
	PDFOCR   TextSource
	ImageOCR TextSource
	Vision   TextSource
}

// TextExtractor picks the chain for a document's kind.
type TextExtractor struct {
	pdf    *Chain
	image  *Chain
	logger *slog.Logger
}

// NewTextExtractor builds
//
//	pdf:   native text layer (>100) -> rasterize + OCR (>100) -> partial native text, none
//	image: OCR (>10) -> vision transcription -> empty, none
func NewTextExtractor(src Sources, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	var pdfStages, imageStages []Stage
	if src.PDFText != nil {
		pdfStages = append(pdfStages, Stage{Source: src.PDFText, MinChars: constants.PDFSufficientChars})
	}
	if src.PDFOCR != nil {
		pdfStages = append(pdfStages, Stage{Source: src.PDFOCR, MinChars: constants.PDFSufficientChars})
	}
	if src.ImageOCR != nil {
		imageStages = append(imageStages, Stage{Source: src.ImageOCR, MinChars: constants.ImageOCRMinChars})
	}
	if src.Vision != nil {
		imageStages = append(imageStages, Stage{Source: src.Vision, MinChars: 0})
	}
	return &TextExtractor{
		pdf:    NewChain(logger, true, pdfStages...),
		image:  NewChain(logger, false, imageStages...),
		logger: logger,
	}
}

// Extract never fails: an unusable document yields empty text tagged none.
func (e *TextExtractor) Extract(ctx context.Context, doc entity.RawDocument) entity.ExtractedText {
	switch doc.Kind {
	case constants.KindPDF:
		return e.pdf.Run(ctx, doc)
	case constants.KindImage:
		return e.image.Run(ctx, doc)
	default:
		e.logger.Warn("extract.unsupported_kind", "file", doc.Filename, "kind", doc.Kind)
		return entity.ExtractedText{Provenance: entity.ProvenanceNone}
	}
}
