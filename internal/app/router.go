package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmatrack/farmatrack/internal/auth"
	"github.com/farmatrack/farmatrack/internal/invoices"
	"github.com/farmatrack/farmatrack/internal/shared"
	"github.com/farmatrack/farmatrack/internal/suppliers"
	"github.com/farmatrack/farmatrack/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	Roles            shared.RoleMiddleware
	AuthHandler      *auth.Handler
	InvoiceHandler   *invoices.Handler
	SuppliersHandler *suppliers.Handler
	UsersHandler     *users.Handler
	Pool             *pgxpool.Pool
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.Roles.RequireAuth)
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
			r.Route("/users", params.UsersHandler.MountRoutes)
		})
	})

	return r
}
