package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmatrack/farmatrack/internal/attachments"
)

// Repository defines invoice data access.
type Repository interface {
	Create(ctx context.Context, input CreateInvoiceInput) (string, error)
	Get(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	Update(ctx context.Context, id string, patch UpdateInvoiceInput) error
	Delete(ctx context.Context, id string) error
	CountDuplicates(ctx context.Context, supplierID, invoiceNumber, excludeID string) (int, error)

	AppendEvent(ctx context.Context, invoiceID string, eventType EventType, byUserID string) error
	ListEvents(ctx context.Context, invoiceID string) ([]Event, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const invoiceColumns = `i.id, i.supplier_id, i.supplier_name_snapshot, i.invoice_number,
	i.invoice_date, i.due_date, i.total_amount, i.status,
	i.attachment_url, i.attachment_path, i.notes,
	i.payment_paid_at, i.payment_method, i.payment_amount_paid,
	COALESCE(u.name, i.created_by::text, ''), i.created_at, i.updated_at`

const invoiceFrom = ` FROM invoices i LEFT JOIN users u ON u.id = i.created_by`

func (r *pgRepository) Create(ctx context.Context, input CreateInvoiceInput) (string, error) {
	status := input.Status
	if status == "" {
		status = StatusDraft
	}

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (supplier_id, supplier_name_snapshot, invoice_number,
			invoice_date, due_date, total_amount, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		input.SupplierID, input.SupplierNameSnapshot, input.InvoiceNumber,
		dateArg(input.InvoiceDate), dateArg(input.DueDate), input.TotalAmount,
		string(status), input.Notes, uuidArg(input.CreatedBy),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCreateFailed
		}
		return "", fmt.Errorf("invoices: create: %w", err)
	}
	if id == "" {
		return "", ErrCreateFailed
	}
	return id, nil
}

func (r *pgRepository) Get(ctx context.Context, id string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+invoiceFrom+` WHERE i.id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *pgRepository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + invoiceFrom + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if req.SupplierID != "" {
		argCount++
		query += ` AND i.supplier_id = $` + strconv.Itoa(argCount)
		args = append(args, req.SupplierID)
	}
	if req.Status != "" {
		argCount++
		query += ` AND i.status = $` + strconv.Itoa(argCount)
		args = append(args, string(req.Status))
	}
	query += ` ORDER BY i.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, id string, patch UpdateInvoiceInput) error {
	sets := []string{}
	args := []interface{}{}
	argCount := 0

	add := func(column string, value interface{}) {
		argCount++
		sets = append(sets, column+" = $"+strconv.Itoa(argCount))
		args = append(args, value)
	}

	if patch.SupplierID != nil {
		add("supplier_id", *patch.SupplierID)
	}
	if patch.SupplierNameSnapshot != nil {
		add("supplier_name_snapshot", *patch.SupplierNameSnapshot)
	}
	if patch.InvoiceNumber != nil {
		add("invoice_number", *patch.InvoiceNumber)
	}
	if patch.InvoiceDate != nil {
		add("invoice_date", dateArg(*patch.InvoiceDate))
	}
	if patch.DueDate != nil {
		add("due_date", dateArg(*patch.DueDate))
	}
	if patch.TotalAmount != nil {
		add("total_amount", *patch.TotalAmount)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.Payment != nil {
		add("payment_paid_at", patch.Payment.PaidAt)
		add("payment_method", patch.Payment.Method)
		add("payment_amount_paid", patch.Payment.AmountPaid)
	}
	if patch.Attachment.Set {
		if patch.Attachment.Value == nil {
			add("attachment_url", nil)
			add("attachment_path", nil)
		} else {
			add("attachment_url", patch.Attachment.Value.URL)
			add("attachment_path", patch.Attachment.Value.StoragePath)
		}
	}

	add("updated_at", time.Now())

	argCount++
	query := `UPDATE invoices SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(argCount)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("invoices: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("invoices: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *pgRepository) CountDuplicates(ctx context.Context, supplierID, invoiceNumber, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM invoices WHERE supplier_id = $1 AND invoice_number = $2`
	args := []interface{}{supplierID, invoiceNumber}
	if excludeID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *pgRepository) AppendEvent(ctx context.Context, invoiceID string, eventType EventType, byUserID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invoice_events (invoice_id, type, by_user_id, details)
		VALUES ($1, $2, $3, '{}'::jsonb)`,
		invoiceID, string(eventType), uuidArg(byUserID))
	return err
}

func (r *pgRepository) ListEvents(ctx context.Context, invoiceID string) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.invoice_id, e.type, COALESCE(u.name, e.by_user_id::text, ''), e.created_at, e.details
		FROM invoice_events e
		LEFT JOIN users u ON u.id = e.by_user_id
		WHERE e.invoice_id = $1
		ORDER BY e.created_at DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var details []byte
		if err := rows.Scan(&ev.ID, &ev.InvoiceID, &ev.Type, &ev.By, &ev.At, &details); err != nil {
			return nil, err
		}
		ev.Details = map[string]any{}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &ev.Details)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// scanInvoice maps one persisted row to the domain model. The attachment
// file name falls back to the URL's last path segment and the storage path
// is re-derived from the URL when the column is empty, so rows written
// before the attachment_path column existed still resolve.
func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv           Invoice
		invoiceDate   pgtype.Date
		dueDate       pgtype.Date
		attachmentURL pgtype.Text
		attachPath    pgtype.Text
		notes         pgtype.Text
		paidAt        pgtype.Timestamptz
		payMethod     pgtype.Text
		payAmount     pgtype.Float8
	)

	err := row.Scan(&inv.ID, &inv.SupplierID, &inv.SupplierNameSnapshot, &inv.InvoiceNumber,
		&invoiceDate, &dueDate, &inv.TotalAmount, &inv.Status,
		&attachmentURL, &attachPath, &notes,
		&paidAt, &payMethod, &payAmount,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}

	inv.InvoiceDate = invoiceDate.Time
	inv.DueDate = dueDate.Time
	inv.Notes = notes.String
	inv.Attachment = buildAttachment(attachmentURL, attachPath)

	if paidAt.Valid {
		inv.Payment = &Payment{
			PaidAt:     paidAt.Time,
			Method:     payMethod.String,
			AmountPaid: payAmount.Float64,
		}
	}
	return inv, nil
}

func buildAttachment(urlCol, pathCol pgtype.Text) *attachments.FileAttachment {
	if !urlCol.Valid || urlCol.String == "" {
		return nil
	}
	att := &attachments.FileAttachment{
		URL:         urlCol.String,
		FileName:    fileNameFromURL(urlCol.String),
		StoragePath: pathCol.String,
	}
	if att.StoragePath == "" {
		if path, ok := attachments.ExtractStoragePathFromURL(att.URL); ok {
			att.StoragePath = path
		}
	}
	return att
}

func fileNameFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 && idx+1 < len(trimmed) {
		return trimmed[idx+1:]
	}
	return "documento"
}

func dateArg(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: !t.IsZero()}
}

// uuidArg maps an empty id to NULL so optional uuid columns accept it.
func uuidArg(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}
