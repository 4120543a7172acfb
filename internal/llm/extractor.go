package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// StructuredExtractor turns document text into an invoice candidate through a Generator.
type StructuredExtractor struct {
	gen     Generator
	opts    GenerationOptions
	schema  *SchemaValidator
	timeout time.Duration
	logger  *slog.Logger
}

type ExtractorOption func(*StructuredExtractor)

// WithGenerationOptions overrides DefaultGenerationOptions.
func WithGenerationOptions(o GenerationOptions) ExtractorOption {
	return func(e *StructuredExtractor) { e.opts = o }
}

// WithCallTimeout bounds a single model call; zero leaves the caller's deadline alone.
func WithCallTimeout(d time.Duration) ExtractorOption {
	return func(e *StructuredExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewStructuredExtractor accepts a nil Generator; Extract then reports the model as unavailable.
func NewStructuredExtractor(gen Generator, logger *slog.Logger, opts ...ExtractorOption) (*StructuredExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildInvoiceJSONSchema())
	if err != nil {
		return nil, err
	}
	e := &StructuredExtractor{
		gen:    gen,
		opts:   DefaultGenerationOptions(),
		schema: schema,
		logger: logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Extract returns the repaired JSON object produced by the model.
// Errors satisfy errors.Is with common.ErrTransientCapability (model unavailable
// or call failed) or common.ErrMalformedResponse (output not recoverable).
func (e *StructuredExtractor) Extract(ctx context.Context, text string) (map[string]any, error) {
	if e.gen == nil {
		return nil, common.Transient("language model not configured", nil)
	}

	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFrom(ctx, e.logger)

	log.Info("llm.extract.start",
		"req_id", rid,
		"model", e.gen.Model(),
		"temp", e.opts.Temperature,
		"text_len", len(text),
	)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	opts := e.opts
	opts.JSONResponse = true
	raw, err := e.gen.Generate(callCtx, GenerateRequest{
		Prompt:  BuildExtractionPrompt(text),
		Options: opts,
	})
	if err != nil {
		log.Error("llm.extract.generate_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if errors.Is(err, common.ErrTransientCapability) {
			return nil, err
		}
		return nil, common.Transient(e.gen.Model(), err)
	}

	doc, err := RepairJSON(raw)
	if err != nil {
		log.Warn("llm.extract.repair_failed",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if err := e.schema.Validate(doc); err != nil {
		log.Warn("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &MalformedResponseError{Preview: preview(raw), Cause: err}
	}

	log.Info("llm.extract.ok",
		"req_id", rid,
		"keys", len(doc),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}
