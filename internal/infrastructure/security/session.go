package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/domain"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// SessionIssuer mints and parses our own HS256 session tokens.
// It holds no state beyond signing material and a clock.
type SessionIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type SessionConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewSessionIssuer(cfg SessionConfig) *SessionIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &SessionIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for iat/exp and validation.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

type sessionClaims struct {
	Kind string `json:"typ"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *SessionIssuer) IssueAccess(subject, role string) (string, time.Time, error) {
	return s.sign(subject, domain.TokenAccess, role, s.accessTTL)
}

func (s *SessionIssuer) IssueRefresh(subject string) (string, time.Time, error) {
	return s.sign(subject, domain.TokenRefresh, "", s.refreshTTL)
}

func (s *SessionIssuer) sign(subject string, kind domain.TokenKind, role string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, domain.ErrMissingField("subject")
	}

	now := s.now()
	exp := now.Add(ttl)
	claims := sessionClaims{
		Kind: string(kind),
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, domain.ErrTokenSignFailed(err)
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry. A well-formed token past its
// expiry yields token_expired; anything else that fails yields token_invalid.
func (s *SessionIssuer) Parse(token string) (auth.TokenInfo, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if isExpiredOnly(err) {
			return auth.TokenInfo{}, domain.ErrTokenExpired()
		}
		return auth.TokenInfo{}, domain.ErrTokenInvalidBecause(err)
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return auth.TokenInfo{}, domain.ErrTokenInvalid()
	}

	kind := domain.TokenKind(claims.Kind)
	if !kind.Valid() || strings.TrimSpace(claims.Subject) == "" {
		return auth.TokenInfo{}, domain.ErrTokenInvalid()
	}

	info := auth.TokenInfo{
		ID:      claims.ID,
		Subject: claims.Subject,
		Kind:    kind,
		Role:    claims.Role,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// isExpiredOnly is true when expiry is the only reason validation failed.
// jwt/v5 joins validation errors, so a forged token that is also expired still
// reports ErrTokenSignatureInvalid and must not be classified as merely expired.
func isExpiredOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	return !errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenMalformed) &&
		!errors.Is(err, jwt.ErrTokenUnverifiable) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer)
}
