package invoices

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/farmatrack/farmatrack/internal/attachments"
)

// ErrNoAttachment is returned when a download URL is requested for an
// invoice without a stored document.
var ErrNoAttachment = errors.New("invoice has no attachment")

// AttachmentManager is the slice of the attachment service the lifecycle
// needs. Cleanup methods are best-effort and never fail the caller.
type AttachmentManager interface {
	UploadInvoiceAttachment(ctx context.Context, upload attachments.Upload, invoiceID string) (attachments.FileAttachment, error)
	UploadPaymentProof(ctx context.Context, upload attachments.Upload, invoiceID string) (attachments.FileAttachment, error)
	GetDownloadURL(ctx context.Context, att attachments.FileAttachment) string
	DeleteAttachment(ctx context.Context, att *attachments.FileAttachment)
	DeleteFile(ctx context.Context, storagePath string)
}

// Service owns the invoice lifecycle: status transitions, duplicate
// detection, submission validation, the event log, and the coupling between
// row updates and attachment objects.
type Service struct {
	repo   Repository
	files  AttachmentManager
	logger *slog.Logger
}

// NewService builds the lifecycle service.
func NewService(repo Repository, files AttachmentManager, logger *slog.Logger) *Service {
	return &Service{repo: repo, files: files, logger: logger}
}

// Create persists a new invoice and logs CREATED. When a pending upload is
// present the row is written first (the storage key needs the invoice id),
// the file second, and the row then linked to the stored path; an upload
// failure after the row exists surfaces as a PartialUploadError so the
// caller can tell the user the invoice was saved but the file was not.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.Status == StatusPaid {
		return Invoice{}, &TransitionError{From: StatusDraft, To: StatusPaid}
	}
	if input.Status != "" && !input.Status.Valid() {
		return Invoice{}, &TransitionError{From: StatusDraft, To: input.Status}
	}

	id, err := s.repo.Create(ctx, input)
	if err != nil {
		return Invoice{}, err
	}

	s.logEvent(ctx, id, EventCreated, input.CreatedBy)

	if input.PendingUpload != nil {
		att, err := s.files.UploadInvoiceAttachment(ctx, *input.PendingUpload, id)
		if err != nil {
			inv, getErr := s.repo.Get(ctx, id)
			if getErr != nil {
				inv = Invoice{ID: id}
			}
			return inv, &PartialUploadError{InvoiceID: id, Err: err}
		}
		patch := UpdateInvoiceInput{Attachment: AttachmentPatch{Set: true, Value: &att}}
		if err := s.repo.Update(ctx, id, patch); err != nil {
			// The object is stored but unlinked; reclaim it so no orphan
			// survives the failed link.
			s.files.DeleteFile(ctx, att.StoragePath)
			return Invoice{ID: id}, &PartialUploadError{InvoiceID: id, Err: err}
		}
	}

	return s.repo.Get(ctx, id)
}

// Update applies a partial patch. A pending upload is transferred before the
// row references its path; when the attachment field changes, the previous
// object is deleted after a successful write, compared by storage path so
// re-saving the same file deletes nothing.
func (s *Service) Update(ctx context.Context, id string, patch UpdateInvoiceInput, userID string, eventType *EventType) error {
	prev, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var uploadedPath string
	if patch.PendingUpload != nil {
		att, err := s.files.UploadInvoiceAttachment(ctx, *patch.PendingUpload, id)
		if err != nil {
			return err
		}
		patch.Attachment = AttachmentPatch{Set: true, Value: &att}
		uploadedPath = att.StoragePath
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if uploadedPath != "" {
			s.files.DeleteFile(ctx, uploadedPath)
		}
		return err
	}

	if patch.Attachment.Set && prev.Attachment != nil {
		prevPath, ok := attachments.ResolveStoragePath(prev.Attachment)
		newPath := ""
		if patch.Attachment.Value != nil {
			newPath, _ = attachments.ResolveStoragePath(patch.Attachment.Value)
		}
		if ok && prevPath != newPath {
			s.files.DeleteAttachment(ctx, prev.Attachment)
		}
	}

	if eventType != nil {
		s.logEvent(ctx, id, *eventType, userID)
	}
	return nil
}

// Submit moves a draft to submitted after the pre-submission rules pass.
// Rule violations come back in the ValidationResult, never as an error.
func (s *Service) Submit(ctx context.Context, id, userID string) (ValidationResult, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return ValidationResult{}, err
	}
	if inv.Status != StatusDraft {
		return ValidationResult{}, &TransitionError{From: inv.Status, To: StatusSubmitted}
	}

	result := ValidateForSubmission(submissionCheckFor(inv))
	if !result.Valid {
		return result, nil
	}

	status := StatusSubmitted
	if err := s.repo.Update(ctx, id, UpdateInvoiceInput{Status: &status}); err != nil {
		return result, err
	}
	s.logEvent(ctx, id, EventSubmitted, userID)
	return result, nil
}

// MarkAsPaid settles a submitted invoice. The amount paid is always the
// invoice total at the time of the call; partial payments are not modeled.
func (s *Service) MarkAsPaid(ctx context.Context, id, method, userID string) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != StatusSubmitted {
		return Invoice{}, &TransitionError{From: inv.Status, To: StatusPaid}
	}

	status := StatusPaid
	payment := Payment{
		PaidAt:     time.Now(),
		Method:     method,
		AmountPaid: inv.TotalAmount,
	}
	if err := s.repo.Update(ctx, id, UpdateInvoiceInput{Status: &status, Payment: &payment}); err != nil {
		return Invoice{}, err
	}
	s.logEvent(ctx, id, EventPaid, userID)
	return s.repo.Get(ctx, id)
}

// CheckDuplicate reports whether another invoice shares the supplier and
// number pair. Advisory: callers decide whether to block or merely warn.
func (s *Service) CheckDuplicate(ctx context.Context, supplierID, invoiceNumber, excludeInvoiceID string) (bool, error) {
	count, err := s.repo.CountDuplicates(ctx, supplierID, invoiceNumber, excludeInvoiceID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes the invoice, deleting the backing storage object first so
// no row is left pointing at a missing object. The inverse orphan (object
// without row, when the row delete fails afterwards) is an accepted
// trade-off.
func (s *Service) Delete(ctx context.Context, id string) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.Attachment != nil {
		s.files.DeleteAttachment(ctx, inv.Attachment)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices, newest first.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.List(ctx, req)
}

// Events returns the audit trail for one invoice, newest first.
func (s *Service) Events(ctx context.Context, invoiceID string) ([]Event, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, invoiceID)
}

// DownloadURL returns the best URL for the invoice's document.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if inv.Attachment == nil {
		return "", ErrNoAttachment
	}
	return s.files.GetDownloadURL(ctx, *inv.Attachment), nil
}

// ReplaceAttachment uploads a new document for the invoice and links it,
// releasing the previous object.
func (s *Service) ReplaceAttachment(ctx context.Context, id string, upload attachments.Upload, userID string) (Invoice, error) {
	eventType := EventUpdated
	patch := UpdateInvoiceInput{PendingUpload: &upload}
	if err := s.Update(ctx, id, patch, userID, &eventType); err != nil {
		return Invoice{}, err
	}
	return s.repo.Get(ctx, id)
}

// UploadPaymentProof stores a payment receipt next to the invoice document
// without touching the invoice row.
func (s *Service) UploadPaymentProof(ctx context.Context, id string, upload attachments.Upload) (attachments.FileAttachment, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return attachments.FileAttachment{}, err
	}
	return s.files.UploadPaymentProof(ctx, upload, id)
}

// logEvent appends to the audit trail. The log is not the source of truth
// for current state, so a write failure is logged and never rolls back the
// change that triggered it.
func (s *Service) logEvent(ctx context.Context, invoiceID string, eventType EventType, userID string) {
	if err := s.repo.AppendEvent(ctx, invoiceID, eventType, userID); err != nil && s.logger != nil {
		s.logger.Error("append invoice event",
			slog.String("invoice_id", invoiceID),
			slog.String("type", string(eventType)),
			slog.Any("error", err))
	}
}

func submissionCheckFor(inv Invoice) SubmissionCheck {
	check := SubmissionCheck{
		SupplierID:    inv.SupplierID,
		InvoiceNumber: inv.InvoiceNumber,
		Attachment:    inv.Attachment,
	}
	if !inv.InvoiceDate.IsZero() {
		date := inv.InvoiceDate
		check.InvoiceDate = &date
	}
	total := inv.TotalAmount
	check.TotalAmount = &total
	return check
}
