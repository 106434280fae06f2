package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/holdfast/auth-service/internal/transport/http/middleware"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	OAuthCallback(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	AdminPing(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler

	// AuthenticateMW resolves the bearer token; it never rejects.
	AuthenticateMW func(http.Handler) http.Handler
	RequireAuthMW  func(http.Handler) http.Handler
	AdminMW        func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.AuthenticateMW == nil {
		return nil, fmt.Errorf("nil Authenticate middleware")
	}
	if deps.RequireAuthMW == nil {
		return nil, fmt.Errorf("nil RequireAuth middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth/v1", func(r chi.Router) {
		r.Use(deps.AuthenticateMW)

		r.Post("/oauth/{provider}/callback", deps.Auth.OAuthCallback)
		r.Post("/refresh", deps.Auth.Refresh)
		r.Post("/logout", deps.Auth.Logout)

		r.With(deps.RequireAuthMW).Get("/me", deps.Auth.Me)
		r.With(deps.AdminMW).Get("/admin/ping", deps.Auth.AdminPing)
	})

	return r, nil
}
