package auth

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/logger"
)

const (
	defaultNickname = "climber"
	maxNicknameLen  = 20
)

var errLinkVanished = errors.New("identity link conflict but no linked account found")

type LoginResult struct {
	Account      domain.Account
	Tokens       AuthTokens
	IsNewAccount bool
}

// HandleCallback completes a federated login: verify the provider ID token,
// resolve or create the local account, then issue a token pair.
// Verifier and store errors are returned unchanged.
func (s *Service) HandleCallback(ctx context.Context, providerID, idToken, nonce string) (LoginResult, error) {
	claims, err := s.verifier.Verify(ctx, providerID, idToken, nonce)
	if err != nil {
		s.audit(ctx, "oauth_login_failed", map[string]string{
			"provider": providerID,
			"code":     domain.CodeOf(err),
		})
		return LoginResult{}, err
	}

	acc, err := s.accounts.FindByProviderIdentity(ctx, claims.Provider, claims.Subject)
	if err != nil {
		return LoginResult{}, err
	}

	isNew := false
	if acc == nil {
		created, err := s.createAccount(ctx, claims)
		switch {
		case err == nil:
			acc = &created
			isNew = true
		case domain.Is(err, "identity_already_linked"):
			// a concurrent first login for the same identity got there first
			acc, err = s.accounts.FindByProviderIdentity(ctx, claims.Provider, claims.Subject)
			if err != nil {
				return LoginResult{}, err
			}
			if acc == nil {
				return LoginResult{}, domain.ErrInternal(errLinkVanished)
			}
		default:
			return LoginResult{}, err
		}
	}

	tokens, err := s.issueTokens(acc.ID, acc.Role)
	if err != nil {
		return LoginResult{}, err
	}

	if isNew {
		s.audit(ctx, "oauth_register", map[string]string{
			"user_id":  acc.ID,
			"provider": claims.Provider,
		})
	} else {
		s.audit(ctx, "oauth_login", map[string]string{
			"user_id":  acc.ID,
			"provider": claims.Provider,
		})
	}

	return LoginResult{Account: *acc, Tokens: tokens, IsNewAccount: isNew}, nil
}

// createAccount creates the account with its primary link, then its stats row.
func (s *Service) createAccount(ctx context.Context, claims domain.IdentityClaims) (domain.Account, error) {
	nickname, err := s.allocateNickname(ctx, claims.DisplayName)
	if err != nil {
		return domain.Account{}, err
	}

	acc, err := s.accounts.CreateLinked(ctx, domain.NewAccount{
		Nickname:  nickname,
		Role:      s.defaultRole,
		AvatarURL: claims.AvatarURL,
	}, claims.Provider, claims.Subject)
	if err != nil {
		return domain.Account{}, err
	}

	if err := s.stats.Initialize(ctx, acc.ID); err != nil {
		return domain.Account{}, err
	}

	if s.events != nil {
		evt := AccountCreatedEvent{
			AccountID: acc.ID,
			Nickname:  acc.Nickname,
			Provider:  claims.Provider,
			CreatedAt: acc.CreatedAt,
		}
		if err := s.events.PublishAccountCreated(ctx, evt); err != nil {
			logger.WithCtx(ctx).Warn().Err(err).Str("user_id", acc.ID).Msg("account_created_publish_failed")
		}
	}

	return acc, nil
}

// allocateNickname returns the display name if free, otherwise the name with a
// random "#xxxx" suffix. It gives up after nicknameAttempts tries.
func (s *Service) allocateNickname(ctx context.Context, displayName string) (string, error) {
	base := normalizeNickname(displayName)

	candidate := base
	for i := 0; i < s.nicknameAttempts; i++ {
		taken, err := s.accounts.NicknameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		sfx, err := s.suffix()
		if err != nil {
			return "", domain.ErrRandomFailed(err)
		}
		candidate = base + "#" + sfx
	}
	return "", domain.ErrNicknameUnavailable()
}

func normalizeNickname(displayName string) string {
	name := strings.Join(strings.Fields(displayName), " ")
	if name == "" {
		return defaultNickname
	}
	if utf8.RuneCountInString(name) > maxNicknameLen {
		name = string([]rune(name)[:maxNicknameLen])
	}
	return name
}
