package suppliers

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validationErrors collects every problem with the supplier payload,
// with messages matching the rest of the API.
func validationErrors(sup Supplier) []string {
	var errs []string
	if strings.TrimSpace(sup.Name) == "" {
		errs = append(errs, "Nome é obrigatório")
	}
	if sup.Email != "" {
		if err := validate.Var(sup.Email, "email"); err != nil {
			errs = append(errs, "Email inválido")
		}
	}
	if sup.Phone != "" {
		normalized := strings.NewReplacer(" ", "", "-", "").Replace(sup.Phone)
		if err := validate.Var(normalized, "e164|number"); err != nil {
			errs = append(errs, "Telefone inválido")
		}
	}
	return errs
}
