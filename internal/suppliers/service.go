package suppliers

import (
	"context"
	"errors"
	"strings"
)

// ValidationError carries the full list of payload problems.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id string) (Supplier, error) {
	if id == "" {
		return Supplier{}, errors.New("invalid supplier ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if errs := validationErrors(supplier); len(errs) > 0 {
		return Supplier{}, &ValidationError{Errors: errs}
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id string, supplier Supplier) error {
	if id == "" {
		return errors.New("invalid supplier ID")
	}
	supplier.Name = strings.TrimSpace(supplier.Name)
	if errs := validationErrors(supplier); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return s.repo.Update(ctx, id, supplier)
}

// Delete refuses to remove suppliers with invoices so historical
// snapshots keep a live reference.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid supplier ID")
	}
	count, err := s.repo.InvoiceCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrSupplierInUse
	}
	return s.repo.Delete(ctx, id)
}
