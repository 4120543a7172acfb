// Package pipeline runs one document through text extraction, structured
// extraction (model, then rules) and normalization.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/fallback"
	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
	"github.com/joseph-ayodele/invoice-tracker/internal/rules"
)

type TextExtractor interface {
	Extract(ctx context.Context, doc entity.RawDocument) entity.ExtractedText
}

// FieldExtractor produces a candidate record from document text.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) (map[string]any, error)
}

type Pipeline struct {
	text       TextExtractor
	structured FieldExtractor
	rules      *rules.Extractor
	normalizer *normalize.Normalizer
	fallback   *fallback.Generator
	logger     *slog.Logger
}

// New wires a pipeline. structured may be nil when no model is configured.
func New(
	text TextExtractor,
	structured FieldExtractor,
	rulesExtractor *rules.Extractor,
	normalizer *normalize.Normalizer,
	fallbackGen *fallback.Generator,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		text:       text,
		structured: structured,
		rules:      rulesExtractor,
		normalizer: normalizer,
		fallback:   fallbackGen,
		logger:     logger,
	}
}

// Run never returns a Go error; failures are reported on the Outcome.
func (p *Pipeline) Run(ctx context.Context, doc entity.RawDocument) Outcome {
	log := common.LoggerFrom(ctx, p.logger)
	start := time.Now()

	extracted := p.text.Extract(ctx, doc)
	text := strings.TrimSpace(extracted.Text)
	log.Info("pipeline.text",
		"file", doc.Filename,
		"provenance", extracted.Provenance,
		"chars", utf8.RuneCountInString(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if utf8.RuneCountInString(text) < constants.UsableTextMinChars {
		sample := p.normalizer.Clean(p.fallback.Generate())
		log.Warn("pipeline.insufficient_text", "file", doc.Filename, "fallback_invoice", sample.InvoiceNumber)
		return Outcome{
			Provenance: extracted.Provenance,
			Method:     MethodFallback,
			Err: common.NewAppError(common.CodeInsufficient,
				"could not extract sufficient text from document", common.ErrInsufficientInput),
			Fallback: &sample,
		}
	}

	candidate, method := p.structure(ctx, log, text)
	record := p.normalizer.Clean(candidate)

	log.Info("pipeline.done",
		"file", doc.Filename,
		"method", method,
		"invoice_number", record.InvoiceNumber,
		"items", len(record.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{
		Record:      &record,
		TextPreview: preview(text),
		Provenance:  extracted.Provenance,
		Method:      method,
	}
}

// structure asks the model first and falls back to the rule-based extractor
// on any model failure.
func (p *Pipeline) structure(ctx context.Context, log *slog.Logger, text string) (map[string]any, Method) {
	if p.structured != nil {
		candidate, err := p.structured.Extract(ctx, text)
		if err == nil {
			return candidate, MethodModel
		}
		reason := "transient"
		if errors.Is(err, common.ErrMalformedResponse) {
			reason = "malformed"
		}
		log.Warn("pipeline.model_fallback", "reason", reason, "error", err)
	}
	return p.rules.Extract(ctx, text), MethodRules
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= constants.TextPreviewChars {
		return s
	}
	return string(r[:constants.TextPreviewChars])
}
