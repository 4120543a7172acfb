// Package events carries job progress and invoice change notifications to
// in-process subscribers and websocket clients.
package events

import (
	"time"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

type Type string

const (
	TypeProcessingStatus Type = "processing_status"
	TypeInvoiceUpdated   Type = "invoice_updated"
	TypeInvoiceDeleted   Type = "invoice_deleted"
)

// Event is the envelope published on the bus. JobID and Status are set for
// processing_status events; OrderID for invoice events and completed jobs.
type Event struct {
	Type     Type                  `json:"type"`
	JobID    string                `json:"job_id,omitempty"`
	Status   constants.JobStatus   `json:"status,omitempty"`
	Message  string                `json:"message,omitempty"`
	OrderID  int64                 `json:"order_id,omitempty"`
	Fallback bool                  `json:"fallback,omitempty"`
	Data     *entity.InvoiceRecord `json:"data,omitempty"`
	At       time.Time             `json:"at"`
}

// JobEvent builds a processing_status event.
func JobEvent(jobID string, status constants.JobStatus, message string) Event {
	return Event{Type: TypeProcessingStatus, JobID: jobID, Status: status, Message: message, At: time.Now().UTC()}
}
