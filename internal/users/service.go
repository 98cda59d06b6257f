package users

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmatrack/farmatrack/internal/shared"
)

// ErrSelfDelete is returned when a manager tries to remove their own account.
var ErrSelfDelete = errors.New("cannot delete own account")

var validate = validator.New()

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

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, errors.New("invalid user ID")
	}
	return s.repo.Get(ctx, id)
}

// Create provisions a new account. The role defaults to staff when none is
// given; unknown roles are rejected.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if input.Role == "" {
		input.Role = shared.RoleStaff
	}

	var errs []string
	if input.Name == "" {
		errs = append(errs, "Nome é obrigatório")
	}
	if validate.Var(input.Email, "required,email") != nil {
		errs = append(errs, "Email inválido")
	}
	if len(input.Password) < 6 {
		errs = append(errs, "Password deve ter pelo menos 6 caracteres")
	}
	if !input.Role.Valid() {
		errs = append(errs, "Função inválida")
	}
	if len(errs) > 0 {
		return User{}, &ValidationError{Errors: errs}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{Name: input.Name, Email: input.Email, Role: input.Role}
	return s.repo.Create(ctx, user, string(hash))
}

func (s *Service) UpdateRole(ctx context.Context, id string, role shared.UserRole) error {
	if id == "" {
		return errors.New("invalid user ID")
	}
	if !role.Valid() {
		return &ValidationError{Errors: []string{"Função inválida"}}
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// Delete removes an account. Managers cannot remove their own account.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	if id == "" {
		return errors.New("invalid user ID")
	}
	if id == actorID {
		return ErrSelfDelete
	}
	return s.repo.Delete(ctx, id)
}
