package domain

// IdentityClaims is the normalized result of a verified identity assertion.
// It is consumed immediately to resolve an account and never persisted as-is.
type IdentityClaims struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
}

// TokenKind distinguishes the two session credentials.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

func (k TokenKind) Valid() bool {
	return k == TokenAccess || k == TokenRefresh
}
