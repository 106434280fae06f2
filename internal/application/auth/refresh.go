package auth

import (
	"context"
	"strings"

	"github.com/holdfast/auth-service/internal/domain"
)

// Refresh exchanges a refresh token for a new pair. Each refresh token is
// single use: it is blacklisted before the replacement is issued.
// Expired tokens surface as token_expired; every other failure as token_invalid,
// with the reason kept in the error cause and the audit log.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthTokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return s.rejectRefresh(ctx, "missing", domain.ErrTokenInvalid())
	}

	// Early reject leaves the ledger untouched.
	black, err := s.ledger.IsBlacklisted(ctx, refreshToken)
	if err != nil {
		return s.rejectRefresh(ctx, "ledger_unavailable", domain.ErrTokenInvalidBecause(err))
	}
	if black {
		return s.rejectRefresh(ctx, "reused", domain.ErrTokenInvalidBecause(domain.ReasonRefreshReused))
	}

	info, err := s.issuer.Parse(refreshToken)
	if err != nil {
		if domain.Is(err, "token_expired") {
			return s.rejectRefresh(ctx, "expired", domain.ErrTokenExpired())
		}
		return s.rejectRefresh(ctx, "invalid", domain.ErrTokenInvalidBecause(err))
	}
	if info.Kind != domain.TokenRefresh {
		return s.rejectRefresh(ctx, "wrong_kind", domain.ErrTokenInvalidBecause(domain.ReasonWrongTokenKind))
	}

	acc, err := s.accounts.FindByID(ctx, info.Subject)
	if err != nil {
		return s.rejectRefresh(ctx, "account_lookup_failed", domain.ErrTokenInvalidBecause(err))
	}
	if acc == nil {
		return s.rejectRefresh(ctx, "user_not_found", domain.ErrTokenInvalidBecause(domain.ErrUserNotFound()))
	}

	// Blacklist first; only the caller that wins the claim gets new tokens.
	won, err := s.ledger.Claim(ctx, refreshToken)
	if err != nil {
		return s.rejectRefresh(ctx, "ledger_unavailable", domain.ErrTokenInvalidBecause(err))
	}
	if !won {
		return s.rejectRefresh(ctx, "reused", domain.ErrTokenInvalidBecause(domain.ReasonRefreshReused))
	}

	tokens, err := s.issueTokens(acc.ID, acc.Role)
	if err != nil {
		return s.rejectRefresh(ctx, "issue_failed", domain.ErrTokenInvalidBecause(err))
	}

	s.audit(ctx, "token_refreshed", map[string]string{
		"user_id": acc.ID,
	})
	return tokens, nil
}

func (s *Service) rejectRefresh(ctx context.Context, reason string, err *domain.Error) (AuthTokens, error) {
	s.audit(ctx, "token_refresh_rejected", map[string]string{
		"reason": reason,
	})
	return AuthTokens{}, err
}
