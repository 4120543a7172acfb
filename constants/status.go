package constants

import "strings"

// JobStatus is the progress state of an extraction job as published on the event bus.
type JobStatus string

// Stable values (subscribers match on these exact strings).
const (
	JobStatusQueued     JobStatus = "queued"     // accepted, not started
	JobStatusProcessing JobStatus = "processing" // text + field extraction running
	JobStatusExtracted  JobStatus = "extracted"  // cleaned record available (real or fallback)
	JobStatusCompleted  JobStatus = "completed"  // record persisted
	JobStatusError      JobStatus = "error"      // terminal failure
)

// Terminal reports whether no further events follow this status for a job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// OrderStatus is the review state stored on an invoice header.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusExtracted OrderStatus = "extracted"
	OrderStatusReviewed  OrderStatus = "reviewed"
)

var allOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusExtracted,
	OrderStatusReviewed,
}

// OrderStatusStrings lists the accepted header statuses.
func OrderStatusStrings() []string {
	result := make([]string, len(allOrderStatuses))
	for i, s := range allOrderStatuses {
		result[i] = string(s)
	}
	return result
}

// CanonicalizeOrderStatus maps loose input onto a known status.
// Unknown or empty input yields OrderStatusPending and false.
func CanonicalizeOrderStatus(input string) (OrderStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return OrderStatusPending, false
	}

	synonyms := map[string]OrderStatus{
		"new":       OrderStatusPending,
		"draft":     OrderStatusPending,
		"processed": OrderStatusExtracted,
		"parsed":    OrderStatusExtracted,
		"approved":  OrderStatusReviewed,
		"verified":  OrderStatusReviewed,
	}
	if s, ok := synonyms[normalized]; ok {
		return s, true
	}
	for _, s := range allOrderStatuses {
		if string(s) == normalized {
			return s, true
		}
	}
	return OrderStatusPending, false
}
