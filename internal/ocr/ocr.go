// Package ocr reads text out of raster images, either through a local
// tesseract binary or the Azure Computer Vision OCR endpoint, and renders
// scanned PDF pages to images for it.
package ocr

import (
	"context"
	"strings"
)

// Line is one recognized line of text. Confidence is in 0..1; engines that do
// not report it leave it at 0.
type Line struct {
	Text       string
	Confidence float32
}

// Engine recognizes text in an encoded image (png, jpeg, gif).
type Engine interface {
	Name() string
	ReadText(ctx context.Context, img []byte) ([]Line, error)
}

// Config selects and tunes the OCR engine.
type Config struct {
	Engine string // "tesseract" | "azure"

	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	TesseractLang string // default "eng"
	TessdataDir   string
	PSM           int // e.g., 6 is good for uniform block of text
	OEM           int // 1 = LSTM; leave 0 to use default

	DPI      int // rasterization DPI for scanned PDFs, default 300
	MaxPages int // pages rasterized per PDF

	AzureEndpoint string
	AzureKey      string
}

// JoinLines concatenates recognized lines, dropping blanks.
func JoinLines(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		t := strings.TrimSpace(l.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t)
	}
	return b.String()
}

// MeanConfidence averages the confidence of lines that report one.
func MeanConfidence(lines []Line) float32 {
	var sum float32
	var n int
	for _, l := range lines {
		if l.Confidence > 0 {
			sum += l.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}
