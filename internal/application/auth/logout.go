package auth

import (
	"context"
	"strings"

	"github.com/holdfast/auth-service/internal/domain"
)

// Revoke blacklists a refresh token (logout). Tokens that are blank, already
// expired or not refresh tokens need no revocation and are ignored.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	info, err := s.issuer.Parse(refreshToken)
	if err != nil || info.Kind != domain.TokenRefresh {
		return nil
	}

	if err := s.ledger.Blacklist(ctx, refreshToken); err != nil {
		return err
	}

	s.audit(ctx, "logout", map[string]string{
		"user_id": info.Subject,
	})
	return nil
}
