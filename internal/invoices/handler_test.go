package invoices

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/farmatrack/farmatrack/internal/shared"
)

func sessionInjector(role shared.UserRole, userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := &shared.Session{}
			if userID != "" {
				sess.SetUser(userID, "Test User", role)
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	}
}

func newTestRouter(t *testing.T, role shared.UserRole, userID string) (*chi.Mux, *Service) {
	t.Helper()
	svc, _, _ := newTestService()
	handler := NewHandler(testLogger(), svc, shared.RoleMiddleware{})

	r := chi.NewRouter()
	r.Use(sessionInjector(role, userID))
	r.Route("/invoices", handler.MountRoutes)
	return r, svc
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerCreateAndShow(t *testing.T) {
	router, _ := newTestRouter(t, shared.RoleStaff, "user-1")

	body := map[string]any{
		"supplierId":           "sup-1",
		"supplierNameSnapshot": "Distribuidora Central",
		"invoiceNumber":        "FT-2026/009",
		"invoiceDate":          "2026-08-01",
		"dueDate":              "2026-09-01",
		"totalAmount":          99.5,
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created createInvoiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusDraft, created.Invoice.Status)
	require.False(t, created.DuplicateWarning)

	req = httptest.NewRequest(http.MethodGet, "/invoices/"+created.Invoice.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t, shared.RoleStaff, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Fornecedor é obrigatório")
}

func TestHandlerPayRequiresManager(t *testing.T) {
	router, svc := newTestRouter(t, shared.RoleStaff, "user-1")

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)
	_, err = svc.Submit(context.Background(), inv.ID, "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID+"/pay", bytes.NewReader([]byte(`{"method":"transferencia"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerPayAsManager(t *testing.T) {
	router, svc := newTestRouter(t, shared.RoleManager, "user-2")

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	attachTestFile(t, svc, inv.ID)
	_, err = svc.Submit(context.Background(), inv.ID, "user-2")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID+"/pay", bytes.NewReader([]byte(`{"method":"transferencia"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var paid Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	require.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.Payment)
}

func TestHandlerPayInvalidTransition(t *testing.T) {
	router, svc := newTestRouter(t, shared.RoleManager, "user-2")

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID+"/pay", bytes.NewReader([]byte(`{"method":"transferencia"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerSubmitReportsValidation(t *testing.T) {
	router, svc := newTestRouter(t, shared.RoleStaff, "user-1")

	inv, err := svc.Create(context.Background(), CreateInvoiceInput{SupplierID: "sup-1", InvoiceNumber: "FT-1", CreatedBy: "user-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID+"/submit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Documento é obrigatório")
}

func TestHandlerDeleteRequiresManager(t *testing.T) {
	router, svc := newTestRouter(t, shared.RoleStaff, "user-1")

	inv, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/invoices/"+inv.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerShowNotFound(t *testing.T) {
	router, _ := newTestRouter(t, shared.RoleStaff, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/invoices/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
