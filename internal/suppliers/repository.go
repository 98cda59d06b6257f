package suppliers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmatrack/farmatrack/internal/platform/db"
	"github.com/farmatrack/farmatrack/internal/shared"
)

// ErrSupplierInUse is returned when deleting a supplier that still has invoices.
var ErrSupplierInUse = errors.New("supplier has invoices and cannot be deleted")

// ErrDuplicateName is returned when a supplier with the same name already exists.
var ErrDuplicateName = errors.New("supplier name already exists")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Supplier, error)
	Get(ctx context.Context, id string) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id string, supplier Supplier) error
	Delete(ctx context.Context, id string) error
	InvoiceCount(ctx context.Context, id string) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	query := `SELECT id, name, email, phone, active, created_at, updated_at FROM suppliers WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.ActiveOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Supplier, error) {
	query := `SELECT id, name, email, phone, active, created_at, updated_at FROM suppliers WHERE id = $1`
	var s Supplier
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	query := `INSERT INTO suppliers (name, email, phone, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, supplier.Name, supplier.Email, supplier.Phone, supplier.Active).
		Scan(&supplier.ID, &supplier.CreatedAt, &supplier.UpdatedAt)
	if isUniqueViolation(err) {
		return Supplier{}, ErrDuplicateName
	}
	if err != nil {
		return Supplier{}, err
	}
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id string, supplier Supplier) error {
	query := `UPDATE suppliers SET name = $1, email = $2, phone = $3, active = $4, updated_at = now() WHERE id = $5`
	tag, err := r.db.Exec(ctx, query, supplier.Name, supplier.Email, supplier.Phone, supplier.Active, id)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete re-checks the invoice count inside the transaction so a
// concurrent invoice insert cannot slip past the service-level guard.
func (r *repository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE supplier_id = $1`, id).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return ErrSupplierInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *repository) InvoiceCount(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE supplier_id = $1`, id).Scan(&count)
	return count, err
}
