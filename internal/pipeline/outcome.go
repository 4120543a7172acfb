package pipeline

import (
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Method records which extractor produced the structured candidate.
type Method string

const (
	MethodModel    Method = "model"
	MethodRules    Method = "rules"
	MethodFallback Method = "fallback"
)

// Outcome is the result of one pipeline run. Exactly one of Record or Err is set;
// Fallback may accompany Err when a synthetic sample was generated.
type Outcome struct {
	Record      *entity.InvoiceRecord
	TextPreview string
	Provenance  entity.Provenance
	Method      Method

	Err      error
	Fallback *entity.InvoiceRecord
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Record != nil
}
