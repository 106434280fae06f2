package http_handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/transport/http/dto"
	"github.com/holdfast/auth-service/internal/transport/http/middleware"
)

type fakeService struct {
	login    auth.LoginResult
	loginErr error
	tokens   auth.AuthTokens
	refErr   error
	revErr   error

	gotProvider, gotIDToken, gotNonce string
	gotRefresh, gotRevoke             string
}

func (f *fakeService) HandleCallback(_ context.Context, providerID, idToken, nonce string) (auth.LoginResult, error) {
	f.gotProvider, f.gotIDToken, f.gotNonce = providerID, idToken, nonce
	return f.login, f.loginErr
}

func (f *fakeService) Refresh(_ context.Context, refreshToken string) (auth.AuthTokens, error) {
	f.gotRefresh = refreshToken
	return f.tokens, f.refErr
}

func (f *fakeService) Revoke(_ context.Context, refreshToken string) error {
	f.gotRevoke = refreshToken
	return f.revErr
}

func sampleTokens() auth.AuthTokens {
	now := time.Now().UTC()
	return auth.AuthTokens{
		AccessToken:      "access-1",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     "refresh-1",
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		ExpiresIn:        900,
		TokenType:        "Bearer",
	}
}

func callback(t *testing.T, h *AuthHandler, provider string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/v1/oauth/"+provider+"/callback", mustJSONBody(t, body))
	req = withURLParam(req, "provider", provider)
	rr := httptest.NewRecorder()
	h.OAuthCallback(rr, req)
	return rr
}

func TestOAuthCallback_Success(t *testing.T) {
	svc := &fakeService{login: auth.LoginResult{
		Account:      domain.Account{ID: "acc-1", Nickname: "Alex", Role: "user"},
		Tokens:       sampleTokens(),
		IsNewAccount: true,
	}}
	h := NewAuthHandler(svc)
	success := middleware.LoginAttemptsTotal.WithLabelValues("kakao", "success")
	before := testutil.ToFloat64(success)

	rr := callback(t, h, "Kakao", map[string]string{"id_token": "a.b.c", "nonce": "n-1"})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Kakao", svc.gotProvider)
	assert.Equal(t, "a.b.c", svc.gotIDToken)
	assert.Equal(t, "n-1", svc.gotNonce)
	assert.Equal(t, 1.0, testutil.ToFloat64(success)-before)

	var data dto.LoginData
	mustReadData(t, rr.Body, &data)
	assert.Equal(t, "access-1", data.AccessToken)
	assert.Equal(t, "refresh-1", data.RefreshToken)
	assert.Equal(t, "Bearer", data.TokenType)
	assert.Equal(t, "acc-1", data.Account.ID)
	assert.True(t, data.IsNewAccount)
}

func TestOAuthCallback_Errors(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		svcErr   error
		wantCode int
		wantErr  string
		called   bool
	}{
		{"bad json", `{"id_token":`, nil, http.StatusBadRequest, "invalid_json", false},
		{"missing id_token", `{"nonce":"n"}`, nil, http.StatusBadRequest, "missing_field", false},
		{"unknown provider", `{"id_token":"t"}`, domain.ErrProviderNotSupported("okta"), http.StatusBadRequest, "provider_not_supported", true},
		{"expired", `{"id_token":"t"}`, domain.ErrTokenExpired(), http.StatusUnauthorized, "token_expired", true},
		{"replayed nonce", `{"id_token":"t","nonce":"n"}`, domain.ErrInvalidNonce(domain.ReasonNonceReplayed), http.StatusUnauthorized, "invalid_nonce", true},
		{"nickname exhausted", `{"id_token":"t"}`, domain.ErrNicknameUnavailable(), http.StatusConflict, "nickname_unavailable", true},
		{"store down", `{"id_token":"t"}`, domain.ErrDBUnavailable(nil), http.StatusServiceUnavailable, "db_unavailable", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{loginErr: tc.svcErr}
			h := NewAuthHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tc.body))
			req = withURLParam(req, "provider", "kakao")
			rr := httptest.NewRecorder()
			h.OAuthCallback(rr, req)

			require.Equal(t, tc.wantCode, rr.Code, rr.Body.String())
			assert.Equal(t, tc.wantErr, errorCode(t, rr))
			assert.Equal(t, tc.called, svc.gotIDToken != "")
		})
	}
}

func TestRefresh_Success(t *testing.T) {
	svc := &fakeService{tokens: sampleTokens()}
	h := NewAuthHandler(svc)
	success := middleware.TokenRefreshTotal.WithLabelValues("success")
	before := testutil.ToFloat64(success)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/refresh", mustJSONBody(t, map[string]string{"refresh_token": " rt-0 "}))
	rr := httptest.NewRecorder()
	h.Refresh(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "rt-0", svc.gotRefresh)
	assert.Equal(t, 1.0, testutil.ToFloat64(success)-before)

	var data dto.TokensView
	mustReadData(t, rr.Body, &data)
	assert.Equal(t, "access-1", data.AccessToken)
	assert.Equal(t, "refresh-1", data.RefreshToken)
}

func TestRefresh_FailureStatusBuckets(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   string
		wantCode string
	}{
		{"expired", domain.ErrTokenExpired(), "expired", "token_expired"},
		{"reused", domain.ErrTokenInvalidBecause(domain.ReasonRefreshReused), "reused", "token_invalid"},
		{"invalid", domain.ErrTokenInvalidBecause(domain.ReasonWrongTokenKind), "invalid", "token_invalid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&fakeService{refErr: tc.err})
			counter := middleware.TokenRefreshTotal.WithLabelValues(tc.status)
			before := testutil.ToFloat64(counter)

			req := httptest.NewRequest(http.MethodPost, "/auth/v1/refresh", mustJSONBody(t, map[string]string{"refresh_token": "rt"}))
			rr := httptest.NewRecorder()
			h.Refresh(rr, req)

			require.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rr))
			assert.Equal(t, 1.0, testutil.ToFloat64(counter)-before)
			// the reuse reason stays in the logs
			assert.NotContains(t, rr.Body.String(), "reused")
		})
	}
}

func TestLogout(t *testing.T) {
	t.Run("revokes and returns 204", func(t *testing.T) {
		svc := &fakeService{}
		req := httptest.NewRequest(http.MethodPost, "/auth/v1/logout", mustJSONBody(t, map[string]string{"refresh_token": "rt"}))
		rr := httptest.NewRecorder()
		NewAuthHandler(svc).Logout(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "rt", svc.gotRevoke)
	})

	t.Run("missing token", func(t *testing.T) {
		svc := &fakeService{}
		req := httptest.NewRequest(http.MethodPost, "/auth/v1/logout", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		NewAuthHandler(svc).Logout(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, svc.gotRevoke)
	})

	t.Run("ledger down", func(t *testing.T) {
		svc := &fakeService{revErr: domain.ErrRedisUnavailable(nil)}
		req := httptest.NewRequest(http.MethodPost, "/auth/v1/logout", mustJSONBody(t, map[string]string{"refresh_token": "rt"}))
		rr := httptest.NewRecorder()
		NewAuthHandler(svc).Logout(rr, req)

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestMe(t *testing.T) {
	h := NewAuthHandler(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/v1/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), "acc-9", "setter"))
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var data dto.MeData
	mustReadData(t, rr.Body, &data)
	assert.Equal(t, dto.MeData{ID: "acc-9", Role: "setter"}, data)

	anon := httptest.NewRecorder()
	h.Me(anon, httptest.NewRequest(http.MethodGet, "/auth/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
}
