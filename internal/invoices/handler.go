package invoices

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmatrack/farmatrack/internal/attachments"
	"github.com/farmatrack/farmatrack/internal/platform/httpx"
	"github.com/farmatrack/farmatrack/internal/shared"
)

// Handler exposes the invoice API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	roles   shared.RoleMiddleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles shared.RoleMiddleware) *Handler {
	return &Handler{logger: logger, service: service, roles: roles}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Get("/{id}/events", h.events)
	r.Get("/{id}/attachment/url", h.downloadURL)
	r.Post("/{id}/attachment", h.uploadAttachment)
	r.Post("/{id}/payment-proof", h.uploadPaymentProof)
	r.Post("/{id}/submit", h.submit)

	r.Group(func(r chi.Router) {
		r.Use(h.roles.RequireManager)
		r.Post("/{id}/pay", h.pay)
		r.Delete("/{id}", h.remove)
	})
}

const dateLayout = "2006-01-02"

type attachmentPayload struct {
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
}

func (p *attachmentPayload) toAttachment() *attachments.FileAttachment {
	if p == nil {
		return nil
	}
	return &attachments.FileAttachment{URL: p.URL, FileName: p.FileName, StoragePath: p.StoragePath}
}

type createInvoiceRequest struct {
	SupplierID           string             `json:"supplierId"`
	SupplierNameSnapshot string             `json:"supplierNameSnapshot"`
	InvoiceNumber        string             `json:"invoiceNumber"`
	InvoiceDate          string             `json:"invoiceDate"`
	DueDate              string             `json:"dueDate"`
	TotalAmount          float64            `json:"totalAmount"`
	Status               string             `json:"status"`
	Notes                string             `json:"notes"`
	Attachment           *attachmentPayload `json:"attachment"`
}

type createInvoiceResponse struct {
	Invoice          Invoice `json:"invoice"`
	DuplicateWarning bool    `json:"duplicateWarning"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListInvoicesRequest{
		SupplierID: r.URL.Query().Get("supplier_id"),
		Status:     Status(r.URL.Query().Get("status")),
	}
	if req.Status != "" && !req.Status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown status filter")
		return
	}

	invoices, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list invoices failed", "error", err)
		h.respondError(w, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	var errs []string
	if req.SupplierID == "" {
		errs = append(errs, msgSupplierRequired)
	}
	if req.InvoiceNumber == "" {
		errs = append(errs, msgInvoiceNumberRequired)
	}
	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		errs = append(errs, msgInvoiceDateInvalid)
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		errs = append(errs, msgDueDateInvalid)
	}
	if req.TotalAmount < 0 {
		errs = append(errs, msgTotalNegative)
	}
	if len(errs) > 0 {
		httpx.ValidationProblem(w, errs)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	input := CreateInvoiceInput{
		SupplierID:           req.SupplierID,
		SupplierNameSnapshot: req.SupplierNameSnapshot,
		InvoiceNumber:        req.InvoiceNumber,
		InvoiceDate:          invoiceDate,
		DueDate:              dueDate,
		TotalAmount:          req.TotalAmount,
		Status:               Status(req.Status),
		Notes:                req.Notes,
		CreatedBy:            sess.UserID(),
	}

	duplicate, err := h.service.CheckDuplicate(r.Context(), req.SupplierID, req.InvoiceNumber, "")
	if err != nil {
		h.logger.Warn("duplicate check failed", "error", err)
	}

	inv, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if req.Attachment != nil {
		eventType := EventUpdated
		patch := UpdateInvoiceInput{Attachment: AttachmentPatch{Set: true, Value: req.Attachment.toAttachment()}}
		if err := h.service.Update(r.Context(), inv.ID, patch, sess.UserID(), &eventType); err != nil {
			h.respondError(w, err)
			return
		}
		if inv, err = h.service.Get(r.Context(), inv.ID); err != nil {
			h.respondError(w, err)
			return
		}
	}

	httpx.JSON(w, http.StatusCreated, createInvoiceResponse{Invoice: inv, DuplicateWarning: duplicate})
}

type updateInvoiceRequest struct {
	SupplierID           *string         `json:"supplierId"`
	SupplierNameSnapshot *string         `json:"supplierNameSnapshot"`
	InvoiceNumber        *string         `json:"invoiceNumber"`
	InvoiceDate          *string         `json:"invoiceDate"`
	DueDate              *string         `json:"dueDate"`
	TotalAmount          *float64        `json:"totalAmount"`
	Notes                *string         `json:"notes"`
	Attachment           json.RawMessage `json:"attachment"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	patch := UpdateInvoiceInput{
		SupplierID:           req.SupplierID,
		SupplierNameSnapshot: req.SupplierNameSnapshot,
		InvoiceNumber:        req.InvoiceNumber,
		TotalAmount:          req.TotalAmount,
		Notes:                req.Notes,
	}
	if req.InvoiceDate != nil {
		date, err := parseDate(*req.InvoiceDate)
		if err != nil {
			httpx.ValidationProblem(w, []string{"Data da Fatura inválida"})
			return
		}
		patch.InvoiceDate = &date
	}
	if req.DueDate != nil {
		date, err := parseDate(*req.DueDate)
		if err != nil {
			httpx.ValidationProblem(w, []string{"Data de Vencimento inválida"})
			return
		}
		patch.DueDate = &date
	}

	// Attachment is tri-state: absent leaves it untouched, null clears it,
	// an object replaces it.
	if len(req.Attachment) > 0 {
		if string(req.Attachment) == "null" {
			patch.Attachment = AttachmentPatch{Set: true}
		} else {
			var payload attachmentPayload
			if err := json.Unmarshal(req.Attachment, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid attachment payload")
				return
			}
			patch.Attachment = AttachmentPatch{Set: true, Value: payload.toAttachment()}
		}
	}

	sess := shared.SessionFromContext(r.Context())
	eventType := EventUpdated
	if err := h.service.Update(r.Context(), id, patch, sess.UserID(), &eventType); err != nil {
		h.respondError(w, err)
		return
	}

	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	result, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"), sess.UserID())
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !result.Valid {
		httpx.ValidationProblem(w, result.Errors)
		return
	}
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

type payRequest struct {
	Method string `json:"method"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.Method == "" {
		httpx.ValidationProblem(w, []string{"Método de pagamento é obrigatório"})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	inv, err := h.service.MarkAsPaid(r.Context(), chi.URLParam(r, "id"), req.Method, sess.UserID())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httpx.JSON(w, http.StatusOK, events)
}

func (h *Handler) downloadURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.DownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	inv, err := h.service.ReplaceAttachment(r.Context(), chi.URLParam(r, "id"), upload, sess.UserID())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) uploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	att, err := h.service.UploadPaymentProof(r.Context(), chi.URLParam(r, "id"), upload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, att)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (attachments.Upload, bool) {
	if err := r.ParseMultipartForm(attachments.MaxFileSize + 1024); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart body")
		return attachments.Upload{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing file field")
		return attachments.Upload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable file")
		return attachments.Upload{}, false
	}

	return attachments.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, true
}

// respondError maps lifecycle and attachment errors onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var (
		transitionErr *TransitionError
		partialErr    *PartialUploadError
		validationErr *attachments.FileValidationError
		storageErr    *attachments.StorageNotFoundError
		uploadErr     *attachments.UploadError
	)
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrNoAttachment):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &transitionErr):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", transitionErr.Error())
	case errors.As(err, &partialErr):
		httpx.Problem(w, http.StatusBadGateway, "Attachment Upload Failed", partialErr.Error())
	case errors.As(err, &validationErr):
		httpx.ValidationProblem(w, []string{validationErr.Reason})
	case errors.As(err, &storageErr):
		httpx.Problem(w, http.StatusBadGateway, "Storage Misconfigured", storageErr.Error())
	case errors.As(err, &uploadErr):
		httpx.Problem(w, http.StatusBadGateway, "Upload Failed", uploadErr.Error())
	default:
		h.logger.Error("invoice request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}
