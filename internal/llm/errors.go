package llm

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

// MalformedResponseError reports model output that could not be repaired into
// a JSON object. Preview holds the head of the raw output for diagnostics.
type MalformedResponseError struct {
	Preview string
	Cause   error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (preview: %q)", common.ErrMalformedResponse, e.Cause, e.Preview)
	}
	return fmt.Sprintf("%s (preview: %q)", common.ErrMalformedResponse, e.Preview)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *MalformedResponseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{common.ErrMalformedResponse}
	}
	return []error{common.ErrMalformedResponse, e.Cause}
}
