package dto

import (
	"time"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/domain"
)

type AccountView struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TokensView is the token pair returned by login and refresh.
type TokensView struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"` // "Bearer"
	ExpiresIn        int64     `json:"expires_in"` // seconds
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginData is returned by the OAuth callback.
type LoginData struct {
	TokensView
	Account      AccountView `json:"account"`
	IsNewAccount bool        `json:"is_new_account"`
}

type MeData struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type AdminData struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func NewAccountView(a domain.Account) AccountView {
	return AccountView{
		ID:        a.ID,
		Nickname:  a.Nickname,
		Role:      a.Role,
		AvatarURL: a.AvatarURL,
		CreatedAt: a.CreatedAt,
	}
}

func NewTokensView(t auth.AuthTokens) TokensView {
	return TokensView{
		AccessToken:      t.AccessToken,
		TokenType:        t.TokenType,
		ExpiresIn:        t.ExpiresIn,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

func NewLoginData(res auth.LoginResult) LoginData {
	return LoginData{
		TokensView:   NewTokensView(res.Tokens),
		Account:      NewAccountView(res.Account),
		IsNewAccount: res.IsNewAccount,
	}
}
