package invoices

import (
	"time"

	"github.com/farmatrack/farmatrack/internal/attachments"
)

// Status enumerates invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusPaid      Status = "paid"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusSubmitted || s == StatusPaid
}

// Payment records how a paid invoice was settled. Present iff the invoice
// status is paid.
type Payment struct {
	PaidAt     time.Time `json:"paidAt"`
	Method     string    `json:"method"`
	AmountPaid float64   `json:"amountPaid"`
}

// Invoice is the supplier invoice model. SupplierNameSnapshot is captured at
// create/update time and deliberately never re-derived from a live join, so
// supplier renames do not rewrite history.
type Invoice struct {
	ID                   string                       `json:"id"`
	SupplierID           string                       `json:"supplierId"`
	SupplierNameSnapshot string                       `json:"supplierNameSnapshot"`
	InvoiceNumber        string                       `json:"invoiceNumber"`
	InvoiceDate          time.Time                    `json:"invoiceDate"`
	DueDate              time.Time                    `json:"dueDate"`
	TotalAmount          float64                      `json:"totalAmount"`
	Status               Status                       `json:"status"`
	Attachment           *attachments.FileAttachment  `json:"attachment,omitempty"`
	Notes                string                       `json:"notes"`
	CreatedBy            string                       `json:"createdBy"`
	CreatedAt            time.Time                    `json:"createdAt"`
	UpdatedAt            time.Time                    `json:"updatedAt"`
	Payment              *Payment                     `json:"payment,omitempty"`
}

// EventType enumerates audit event kinds.
type EventType string

const (
	EventCreated   EventType = "CREATED"
	EventSubmitted EventType = "SUBMITTED"
	EventPaid      EventType = "PAID"
	EventUpdated   EventType = "UPDATED"
)

// Event is one append-only audit entry. Events are never mutated or deleted.
type Event struct {
	ID        string         `json:"id"`
	InvoiceID string         `json:"invoiceId"`
	Type      EventType      `json:"type"`
	By        string         `json:"by"`
	At        time.Time      `json:"at"`
	Details   map[string]any `json:"details"`
}

// --- Input DTOs ---

// CreateInvoiceInput for creating invoices. An empty Status defaults to
// draft. PendingUpload, when set, is stored after the row exists and linked
// in a second phase.
type CreateInvoiceInput struct {
	SupplierID           string
	SupplierNameSnapshot string
	InvoiceNumber        string
	InvoiceDate          time.Time
	DueDate              time.Time
	TotalAmount          float64
	Status               Status
	Notes                string
	CreatedBy            string
	PendingUpload        *attachments.Upload
}

// AttachmentPatch is the tri-state attachment field of an update: absent
// (leave untouched), clear, or replace.
type AttachmentPatch struct {
	Set   bool
	Value *attachments.FileAttachment
}

// UpdateInvoiceInput applies only the fields that are non-nil; the
// attachment patch carries its own presence flag. PendingUpload, when set,
// wins over Attachment.Value: the file is uploaded first and the row then
// references the new path.
type UpdateInvoiceInput struct {
	SupplierID           *string
	SupplierNameSnapshot *string
	InvoiceNumber        *string
	InvoiceDate          *time.Time
	DueDate              *time.Time
	TotalAmount          *float64
	Status               *Status
	Notes                *string
	Payment              *Payment
	Attachment           AttachmentPatch
	PendingUpload        *attachments.Upload
}

// ListInvoicesRequest filters listings.
type ListInvoicesRequest struct {
	SupplierID string
	Status     Status
}

// SubmissionCheck is the pre-submission validation input. Pointer fields
// distinguish "absent" from legitimate zero values: a zero total is valid,
// a missing one is not.
type SubmissionCheck struct {
	SupplierID    string
	InvoiceNumber string
	InvoiceDate   *time.Time
	TotalAmount   *float64
	Attachment    *attachments.FileAttachment
}

// ValidationResult carries every violated rule at once as user-facing
// messages. It is a return value, never an error.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
