package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/holdfast/auth-service/internal/domain"
)

type Service struct {
	verifier IdentityVerifier
	accounts AccountStore
	stats    StatStore
	events   AccountEvents
	issuer   SessionIssuer
	ledger   RefreshLedger

	accessTTL        time.Duration
	defaultRole      string
	nicknameAttempts int

	audit  func(ctx context.Context, action string, fields map[string]string)
	suffix func() (string, error)
}

type Config struct {
	AccessTTL        time.Duration
	DefaultRole      string
	NicknameAttempts int
}

func NewService(
	verifier IdentityVerifier,
	accounts AccountStore,
	stats StatStore,
	issuer SessionIssuer,
	ledger RefreshLedger,
	cfg Config,
) *Service {
	role := cfg.DefaultRole
	if !domain.IsValidRole(role) {
		role = string(domain.RoleUser)
	}
	attempts := cfg.NicknameAttempts
	if attempts <= 0 {
		attempts = 5
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Service{
		verifier: verifier,
		accounts: accounts,
		stats:    stats,
		issuer:   issuer,
		ledger:   ledger,

		accessTTL:        accessTTL,
		defaultRole:      role,
		nicknameAttempts: attempts,

		audit:  func(context.Context, string, map[string]string) {},
		suffix: randomSuffix,
	}
}

func (s *Service) WithAudit(fn func(ctx context.Context, action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithEvents(pub AccountEvents) *Service {
	s.events = pub
	return s
}

// AuthTokens is the common token output for handlers/DTO mapping.
type AuthTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	ExpiresIn        int64  // access token lifetime in seconds
	TokenType        string // "Bearer"
}

// issueTokens issues an access token + refresh token for an account.
func (s *Service) issueTokens(accountID, role string) (AuthTokens, error) {
	access, accessExp, err := s.issuer.IssueAccess(accountID, role)
	if err != nil {
		return AuthTokens{}, err
	}

	refresh, refreshExp, err := s.issuer.IssueRefresh(accountID)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.accessTTL.Seconds()),
	}, nil
}

// randomSuffix returns 4 hex chars.
func randomSuffix() (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
