package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/llm"
	"github.com/joseph-ayodele/invoice-tracker/internal/ocr"
)

// ImageOCRSource runs the OCR engine over an uploaded image.
type ImageOCRSource struct {
	engine     ocr.Engine
	preprocess bool
	logger     *slog.Logger
}

func NewImageOCRSource(engine ocr.Engine, preprocess bool, logger *slog.Logger) *ImageOCRSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageOCRSource{engine: engine, preprocess: preprocess, logger: logger}
}

func (s *ImageOCRSource) Name() string                  { return "image-ocr/" + s.engine.Name() }
func (s *ImageOCRSource) Provenance() entity.Provenance { return entity.ProvenanceOCR }

func (s *ImageOCRSource) Extract(ctx context.Context, doc entity.RawDocument) (string, error) {
	img := doc.Content
	if s.preprocess {
		if out, err := ocr.Preprocess(img); err == nil {
			img = out
		} else {
			s.logger.Warn("extract.image.preprocess_failed", "file", doc.Filename, "error", err)
		}
	}

	lines, err := s.engine.ReadText(ctx, img)
	if err != nil {
		return "", err
	}
	text := ocr.Normalize(ocr.JoinLines(lines))

	conf := ocr.MeanConfidence(lines)
	if conf == 0 {
		conf = ocr.HeuristicConfidence(text)
	}
	s.logger.Debug("extract.image.ocr_ok", "file", doc.Filename, "lines", len(lines), "confidence", conf)
	return text, nil
}

// VisionSource asks a vision-capable model to transcribe the image.
type VisionSource struct {
	gen  llm.Generator
	opts llm.GenerationOptions
}

func NewVisionSource(gen llm.Generator, opts llm.GenerationOptions) *VisionSource {
	return &VisionSource{gen: gen, opts: opts}
}

func (s *VisionSource) Name() string                  { return "vision/" + s.gen.Model() }
func (s *VisionSource) Provenance() entity.Provenance { return entity.ProvenanceVisionModel }

func (s *VisionSource) Extract(ctx context.Context, doc entity.RawDocument) (string, error) {
	opts := s.opts
	opts.JSONResponse = false
	return s.gen.Generate(ctx, llm.GenerateRequest{
		Prompt:  llm.TranscriptionPrompt,
		Image:   &llm.Image{Data: doc.Content, MIMEType: doc.MIMEType()},
		Options: opts,
	})
}
