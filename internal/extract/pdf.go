package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/ocr"
)

// NativePDFSource reads the embedded text layer page by page.
type NativePDFSource struct {
	logger *slog.Logger
}

func NewNativePDFSource(logger *slog.Logger) *NativePDFSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativePDFSource{logger: logger}
}

func (s *NativePDFSource) Name() string                  { return "pdf-text" }
func (s *NativePDFSource) Provenance() entity.Provenance { return entity.ProvenanceNativeText }

func (s *NativePDFSource) Extract(_ context.Context, doc entity.RawDocument) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Debug("extract.pdf.page_text_error", "page", i, "error", err)
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// Rasterizer renders PDF pages to images.
type Rasterizer interface {
	Pages(ctx context.Context, pdf []byte) ([][]byte, error)
}

// PDFOCRSource rasterizes the first pages and OCRs each one.
type PDFOCRSource struct {
	raster Rasterizer
	engine ocr.Engine
	logger *slog.Logger
}

func NewPDFOCRSource(raster Rasterizer, engine ocr.Engine, logger *slog.Logger) *PDFOCRSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFOCRSource{raster: raster, engine: engine, logger: logger}
}

func (s *PDFOCRSource) Name() string                  { return "pdf-ocr/" + s.engine.Name() }
func (s *PDFOCRSource) Provenance() entity.Provenance { return entity.ProvenanceOCR }

func (s *PDFOCRSource) Extract(ctx context.Context, doc entity.RawDocument) (string, error) {
	pages, err := s.raster.Pages(ctx, doc.Content)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, img := range pages {
		lines, err := s.engine.ReadText(ctx, img)
		if err != nil {
			s.logger.Warn("extract.pdf.page_ocr_error", "page", i+1, "error", err)
			continue
		}
		text := ocr.Normalize(ocr.JoinLines(lines))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", i+1)
		b.WriteString(text)
	}
	return b.String(), nil
}
