// Package extract turns a RawDocument into plain text through an ordered chain
// of text sources, each with its own sufficiency threshold.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// TextSource is one way of getting text out of a document.
type TextSource interface {
	Name() string
	Provenance() entity.Provenance
	Extract(ctx context.Context, doc entity.RawDocument) (string, error)
}

// Stage accepts its source's text only when it is longer than MinChars
// (trimmed, counted in characters).
type Stage struct {
	Source   TextSource
	MinChars int
}

// Chain tries stages in order and stops at the first sufficient one.
// With KeepPartial set, an exhausted chain returns the first partial text
// it saw, tagged none.
type Chain struct {
	Stages      []Stage
	KeepPartial bool
	logger      *slog.Logger
}

func NewChain(logger *slog.Logger, keepPartial bool, stages ...Stage) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{Stages: stages, KeepPartial: keepPartial, logger: logger}
}

// Run never fails; every stage failure is logged and treated as insufficient.
func (c *Chain) Run(ctx context.Context, doc entity.RawDocument) entity.ExtractedText {
	log := common.LoggerFrom(ctx, c.logger)
	var partial string

	for _, st := range c.Stages {
		if ctx.Err() != nil {
			log.Warn("extract.chain.cancelled", "error", ctx.Err())
			break
		}
		start := time.Now()
		text, err := runSource(ctx, st.Source, doc)
		text = strings.TrimSpace(text)
		n := utf8.RuneCountInString(text)

		if err != nil {
			log.Warn("extract.stage.failed",
				"source", st.Source.Name(), "file", doc.Filename, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		} else {
			log.Info("extract.stage.done",
				"source", st.Source.Name(), "file", doc.Filename, "chars", n,
				"sufficient", n > st.MinChars,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}

		if err == nil && n > st.MinChars {
			return entity.ExtractedText{Text: text, Provenance: st.Source.Provenance()}
		}
		if partial == "" && text != "" {
			partial = text
		}
	}

	if c.KeepPartial && partial != "" {
		return entity.ExtractedText{Text: partial, Provenance: entity.ProvenanceNone}
	}
	return entity.ExtractedText{Provenance: entity.ProvenanceNone}
}

// runSource converts a panic inside a source (PDF parsers do this on corrupt
// input) into an error.
func runSource(ctx context.Context, src TextSource, doc entity.RawDocument) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%s panicked: %v", src.Name(), r)
		}
	}()
	return src.Extract(ctx, doc)
}

type timedSource struct {
	TextSource
	timeout time.Duration
}

// WithTimeout bounds every Extract call of src; a zero duration returns src as is.
func WithTimeout(src TextSource, d time.Duration) TextSource {
	if src == nil || d <= 0 {
		return src
	}
	return timedSource{TextSource: src, timeout: d}
}

func (t timedSource) Extract(ctx context.Context, doc entity.RawDocument) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.TextSource.Extract(ctx, doc)
}
