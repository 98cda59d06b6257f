package invoices

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/farmatrack/farmatrack/internal/attachments"
)

type memoryInvoiceRepo struct {
	invoices       map[string]Invoice
	events         map[string][]Event
	nextID         int
	updateErr      error
	appendEventErr error
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: make(map[string]Invoice),
		events:   make(map[string][]Event),
	}
}

func (r *memoryInvoiceRepo) Create(ctx context.Context, input CreateInvoiceInput) (string, error) {
	r.nextID++
	id := "inv-" + strconv.Itoa(r.nextID)
	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	now := time.Now()
	r.invoices[id] = Invoice{
		ID:                   id,
		SupplierID:           input.SupplierID,
		SupplierNameSnapshot: input.SupplierNameSnapshot,
		InvoiceNumber:        input.InvoiceNumber,
		InvoiceDate:          input.InvoiceDate,
		DueDate:              input.DueDate,
		TotalAmount:          input.TotalAmount,
		Status:               status,
		Notes:                input.Notes,
		CreatedBy:            input.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return id, nil
}

func (r *memoryInvoiceRepo) Get(ctx context.Context, id string) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryInvoiceRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if req.SupplierID != "" && inv.SupplierID != req.SupplierID {
			continue
		}
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *memoryInvoiceRepo) Update(ctx context.Context, id string, patch UpdateInvoiceInput) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	inv, ok := r.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	if patch.SupplierID != nil {
		inv.SupplierID = *patch.SupplierID
	}
	if patch.SupplierNameSnapshot != nil {
		inv.SupplierNameSnapshot = *patch.SupplierNameSnapshot
	}
	if patch.InvoiceNumber != nil {
		inv.InvoiceNumber = *patch.InvoiceNumber
	}
	if patch.InvoiceDate != nil {
		inv.InvoiceDate = *patch.InvoiceDate
	}
	if patch.DueDate != nil {
		inv.DueDate = *patch.DueDate
	}
	if patch.TotalAmount != nil {
		inv.TotalAmount = *patch.TotalAmount
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	if patch.Payment != nil {
		payment := *patch.Payment
		inv.Payment = &payment
	}
	if patch.Attachment.Set {
		inv.Attachment = patch.Attachment.Value
	}
	inv.UpdatedAt = time.Now()
	r.invoices[id] = inv
	return nil
}

func (r *memoryInvoiceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *memoryInvoiceRepo) CountDuplicates(ctx context.Context, supplierID, invoiceNumber, excludeID string) (int, error) {
	count := 0
	for id, inv := range r.invoices {
		if id == excludeID {
			continue
		}
		if inv.SupplierID == supplierID && inv.InvoiceNumber == invoiceNumber {
			count++
		}
	}
	return count, nil
}

func (r *memoryInvoiceRepo) AppendEvent(ctx context.Context, invoiceID string, eventType EventType, byUserID string) error {
	if r.appendEventErr != nil {
		return r.appendEventErr
	}
	r.events[invoiceID] = append(r.events[invoiceID], Event{
		ID:        strconv.Itoa(len(r.events[invoiceID]) + 1),
		InvoiceID: invoiceID,
		Type:      eventType,
		By:        byUserID,
		At:        time.Now(),
		Details:   map[string]any{},
	})
	return nil
}

func (r *memoryInvoiceRepo) ListEvents(ctx context.Context, invoiceID string) ([]Event, error) {
	events := append([]Event(nil), r.events[invoiceID]...)
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

type fakeAttachmentManager struct {
	uploadErr error
	deleted   []string
	uploads   int
}

func (m *fakeAttachmentManager) UploadInvoiceAttachment(ctx context.Context, upload attachments.Upload, invoiceID string) (attachments.FileAttachment, error) {
	if m.uploadErr != nil {
		return attachments.FileAttachment{}, m.uploadErr
	}
	m.uploads++
	name := attachments.SanitizeFileName(upload.Name)
	path := "invoices/" + invoiceID + "/" + name
	return attachments.FileAttachment{
		URL:         "https://store.local/storage/v1/object/public/invoices/" + path,
		FileName:    name,
		StoragePath: path,
	}, nil
}

func (m *fakeAttachmentManager) UploadPaymentProof(ctx context.Context, upload attachments.Upload, invoiceID string) (attachments.FileAttachment, error) {
	return m.UploadInvoiceAttachment(ctx, attachments.Upload{
		Name:        "pagamento-" + upload.Name,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Data:        upload.Data,
	}, invoiceID)
}

func (m *fakeAttachmentManager) GetDownloadURL(ctx context.Context, att attachments.FileAttachment) string {
	return "signed://" + att.StoragePath
}

func (m *fakeAttachmentManager) DeleteAttachment(ctx context.Context, att *attachments.FileAttachment) {
	if path, ok := attachments.ResolveStoragePath(att); ok {
		m.deleted = append(m.deleted, path)
	}
}

func (m *fakeAttachmentManager) DeleteFile(ctx context.Context, storagePath string) {
	m.deleted = append(m.deleted, storagePath)
}

func newTestService() (*Service, *memoryInvoiceRepo, *fakeAttachmentManager) {
	repo := newMemoryInvoiceRepo()
	files := &fakeAttachmentManager{}
	return NewService(repo, files, nil), repo, files
}

func draftInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		SupplierID:           "sup-1",
		SupplierNameSnapshot: "Distribuidora Central",
		InvoiceNumber:        "FT-2026/001",
		InvoiceDate:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		DueDate:              time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:          125.40,
		CreatedBy:            "user-1",
	}
}

func attachTestFile(t *testing.T, svc *Service, id string) {
	t.Helper()
	patch := UpdateInvoiceInput{Attachment: AttachmentPatch{Set: true, Value: &attachments.FileAttachment{
		URL:         "https://store.local/storage/v1/object/public/invoices/invoices/" + id + "/doc.pdf",
		FileName:    "doc.pdf",
		StoragePath: "invoices/" + id + "/doc.pdf",
	}}}
	require.NoError(t, svc.Update(context.Background(), id, patch, "user-1", nil))
}

func TestCreateDefaultsToDraftAndLogsEvent(t *testing.T) {
	svc, repo, _ := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, inv.Status)
	require.Nil(t, inv.Payment)

	events := repo.events[inv.ID]
	require.Len(t, events, 1)
	require.Equal(t, EventCreated, events[0].Type)
}

func TestCreateRejectsPaidStatus(t *testing.T) {
	svc, _, _ := newTestService()

	input := draftInput()
	input.Status = StatusPaid
	_, err := svc.Create(context.Background(), input)

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusPaid, transitionErr.To)
}

func TestCreateWithPendingUpload(t *testing.T) {
	svc, _, files := newTestService()

	input := draftInput()
	input.PendingUpload = &attachments.Upload{Name: "fatura.pdf", ContentType: "application/pdf", Size: 8, Data: []byte("%PDF-1.4")}

	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, inv.Attachment)
	require.Equal(t, "invoices/"+inv.ID+"/fatura.pdf", inv.Attachment.StoragePath)
	require.Equal(t, 1, files.uploads)
}

func TestCreateUploadFailureKeepsInvoice(t *testing.T) {
	svc, repo, files := newTestService()
	files.uploadErr = errors.New("bucket offline")

	input := draftInput()
	input.PendingUpload = &attachments.Upload{Name: "fatura.pdf", ContentType: "application/pdf"}

	inv, err := svc.Create(context.Background(), input)

	var partialErr *PartialUploadError
	require.ErrorAs(t, err, &partialErr)
	require.Equal(t, inv.ID, partialErr.InvoiceID)

	stored, getErr := repo.Get(context.Background(), inv.ID)
	require.NoError(t, getErr)
	require.Nil(t, stored.Attachment)
}

func TestSubmitRequiresCompleteInvoice(t *testing.T) {
	svc, _, _ := newTestService()

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{CreatedBy: "user-1"})
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), inv.ID, "user-1")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 4)
	require.Contains(t, result.Errors, "Fornecedor é obrigatório")
	require.Contains(t, result.Errors, "Documento é obrigatório")

	stored, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestSubmitAcceptsZeroTotal(t *testing.T) {
	svc, _, _ := newTestService()

	input := draftInput()
	input.TotalAmount = 0
	inv, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	result, err := svc.Submit(context.Background(), inv.ID, "user-1")
	require.NoError(t, err)
	require.True(t, result.Valid)

	stored, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, stored.Status)
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	svc, _, _ := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	_, err = svc.Submit(context.Background(), inv.ID, "user-1")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), inv.ID, "user-1")
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, StatusSubmitted, transitionErr.From)
}

func TestMarkAsPaid(t *testing.T) {
	svc, repo, _ := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	_, err = svc.Submit(context.Background(), inv.ID, "user-1")
	require.NoError(t, err)

	paid, err := svc.MarkAsPaid(context.Background(), inv.ID, "transferencia", "user-2")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.Payment)
	require.Equal(t, paid.TotalAmount, paid.Payment.AmountPaid)
	require.Equal(t, "transferencia", paid.Payment.Method)
	require.False(t, paid.Payment.PaidAt.IsZero())

	types := make([]EventType, 0, 3)
	for _, e := range repo.events[inv.ID] {
		types = append(types, e.Type)
	}
	require.Equal(t, []EventType{EventCreated, EventSubmitted, EventPaid}, types)
}

func TestEventWriteFailureDoesNotRollBackTransition(t *testing.T) {
	svc, repo, _ := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	repo.appendEventErr = errors.New("event log unavailable")

	result, err := svc.Submit(context.Background(), inv.ID, "user-1")
	require.NoError(t, err)
	require.True(t, result.Valid)

	submitted, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, submitted.Status)

	paid, err := svc.MarkAsPaid(context.Background(), inv.ID, "transferencia", "user-1")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	require.Len(t, repo.events[inv.ID], 1)
}

func TestMarkAsPaidRejectsDraft(t *testing.T) {
	svc, _, _ := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	_, err = svc.MarkAsPaid(context.Background(), inv.ID, "transferencia", "user-2")
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)

	stored, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
	require.Nil(t, stored.Payment)
}

func TestCheckDuplicate(t *testing.T) {
	svc, _, _ := newTestService()

	first, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	dup, err := svc.CheckDuplicate(context.Background(), "sup-1", "FT-2026/001", "")
	require.NoError(t, err)
	require.True(t, dup)

	dup, err = svc.CheckDuplicate(context.Background(), "sup-1", "FT-2026/001", first.ID)
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = svc.CheckDuplicate(context.Background(), "sup-2", "FT-2026/001", "")
	require.NoError(t, err)
	require.False(t, dup)
}

func TestUpdateReplacingAttachmentDeletesOldObject(t *testing.T) {
	svc, _, files := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	upload := attachments.Upload{Name: "nova.pdf", ContentType: "application/pdf"}
	updated, err := svc.ReplaceAttachment(context.Background(), inv.ID, upload, "user-1")
	require.NoError(t, err)
	require.Equal(t, "invoices/"+inv.ID+"/nova.pdf", updated.Attachment.StoragePath)

	require.Equal(t, []string{"invoices/" + inv.ID + "/doc.pdf"}, files.deleted)
}

func TestUpdateSamePathDeletesNothing(t *testing.T) {
	svc, _, files := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	// Re-linking the identical record must not delete the object.
	attachTestFile(t, svc, inv.ID)
	require.Empty(t, files.deleted)
}

func TestUpdateRowFailureReclaimsUploadedObject(t *testing.T) {
	svc, repo, files := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	repo.updateErr = errors.New("connection reset")
	upload := attachments.Upload{Name: "nova.pdf", ContentType: "application/pdf"}
	_, err = svc.ReplaceAttachment(context.Background(), inv.ID, upload, "user-1")
	require.Error(t, err)

	require.Equal(t, []string{"invoices/" + inv.ID + "/nova.pdf"}, files.deleted)
}

func TestDeleteRemovesObjectBeforeRow(t *testing.T) {
	svc, repo, files := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)

	require.NoError(t, svc.Delete(context.Background(), inv.ID))
	require.Len(t, files.deleted, 1)

	_, err = repo.Get(context.Background(), inv.ID)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestDownloadURL(t *testing.T) {
	svc, _, _ := newTestService()

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	_, err = svc.DownloadURL(context.Background(), inv.ID)
	require.ErrorIs(t, err, ErrNoAttachment)

	attachTestFile(t, svc, inv.ID)
	url, err := svc.DownloadURL(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, "signed://invoices/"+inv.ID+"/doc.pdf", url)
}

func TestEventsRequireExistingInvoice(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Events(context.Background(), "missing")
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestValidateForSubmission(t *testing.T) {
	result := ValidateForSubmission(SubmissionCheck{})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 5)

	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	total := 0.0
	result = ValidateForSubmission(SubmissionCheck{
		SupplierID:    "sup-1",
		InvoiceNumber: "FT-1",
		InvoiceDate:   &date,
		TotalAmount:   &total,
		Attachment:    &attachments.FileAttachment{StoragePath: "invoices/1/x.pdf"},
	})
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}
