package http_handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/logger"
	"github.com/holdfast/auth-service/internal/provider"
	"github.com/holdfast/auth-service/internal/transport/http/dto"
	"github.com/holdfast/auth-service/internal/transport/http/middleware"
	"github.com/holdfast/auth-service/internal/transport/http/response"
)

// AuthService is the slice of auth.Service the HTTP layer drives.
type AuthService interface {
	HandleCallback(ctx context.Context, providerID, idToken, nonce string) (auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.AuthTokens, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// OAuthCallback completes a federated login with a client obtained ID token.
// POST /auth/v1/oauth/{provider}/callback
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")

	var req dto.CallbackRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.HandleCallback(r.Context(), providerID, req.IDToken, req.Nonce)
	if err != nil {
		middleware.LoginAttemptsTotal.WithLabelValues(metricProvider(err, providerID), codeOrInternal(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.LoginAttemptsTotal.WithLabelValues(metricProvider(nil, providerID), "success").Inc()

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.Account.ID).
		Str("provider", providerID).
		Bool("new_account", res.IsNewAccount).
		Msg("oauth_login")

	response.Tokens(w, dto.NewLoginData(res))
}

// POST /auth/v1/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	tokens, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.TokenRefreshTotal.WithLabelValues(refreshStatus(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.TokenRefreshTotal.WithLabelValues("success").Inc()

	response.Tokens(w, dto.NewTokensView(tokens))
}

// Logout revokes the presented refresh token. Access tokens simply expire.
// POST /auth/v1/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.Revoke(r.Context(), req.RefreshToken); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.NoContent(w)
}

// GET /auth/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())

	response.OK(w, dto.MeData{ID: uid, Role: role})
}

// GET /auth/v1/admin/ping
func (h *AuthHandler) AdminPing(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	response.OK(w, dto.AdminData{Message: "pong", ID: uid})
}

// refreshStatus buckets a refresh failure for token_refresh_total.
func refreshStatus(err error) string {
	switch {
	case domain.Is(err, "token_expired"):
		return "expired"
	case errors.Is(err, domain.ReasonRefreshReused):
		return "reused"
	default:
		return "invalid"
	}
}

// metricProvider keeps unknown provider ids out of the label set.
func metricProvider(err error, providerID string) string {
	if domain.Is(err, "provider_not_supported") {
		return "unknown"
	}
	return string(provider.Normalize(providerID))
}

func codeOrInternal(err error) string {
	if c := domain.CodeOf(err); c != "" {
		return c
	}
	return "internal_error"
}
