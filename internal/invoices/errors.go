package invoices

import (
	"errors"
	"fmt"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrCreateFailed    = errors.New("invoice insert returned no row")
)

// TransitionError rejects a status change the state machine does not allow.
// The invoice is left unchanged.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// PartialUploadError reports that the invoice row was written but the
// attachment transfer failed. The caller can tell the user the invoice was
// saved while the file was not.
type PartialUploadError struct {
	InvoiceID string
	Err       error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("invoice %s saved but attachment upload failed: %v", e.InvoiceID, e.Err)
}

func (e *PartialUploadError) Unwrap() error {
	return e.Err
}
