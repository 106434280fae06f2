package middleware

import (
	"net/http"
	"strings"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/logger"
)

type TokenParser interface {
	Parse(token string) (auth.TokenInfo, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Authenticate resolves "Authorization: Bearer <access_token>" into a user in
// the request context. It never rejects: a missing, malformed, expired or
// non-access token leaves the request anonymous. Use RequireAuth to enforce.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			info, err := parser.Parse(raw)
			if err != nil {
				logger.WithCtx(r.Context()).Debug().
					Str("code", domain.CodeOf(err)).
					Msg("bearer token ignored")
				next.ServeHTTP(w, r)
				return
			}
			if info.Kind != domain.TokenAccess || strings.TrimSpace(info.Subject) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), info.Subject, info.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with token_missing.
func RequireAuth(writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}

	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}
