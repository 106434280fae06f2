package auth

import (
	"context"
	"time"

	"github.com/holdfast/auth-service/internal/domain"
)

/*
AccountStore
------------
Persistence port for local accounts and their provider links.
Lookups return (nil, nil) when nothing matches.
CreateLinked creates an account together with its primary link in one step;
when the identity is already linked it fails with identity_already_linked
and leaves no account behind.
*/
type AccountStore interface {
	FindByProviderIdentity(ctx context.Context, provider, providerSubject string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	NicknameTaken(ctx context.Context, nickname string) (bool, error)
	Create(ctx context.Context, a domain.NewAccount) (domain.Account, error)
	LinkIdentity(ctx context.Context, link domain.AccountLink) error
	CreateLinked(ctx context.Context, a domain.NewAccount, provider, providerSubject string) (domain.Account, error)
}

/*
StatStore
---------
Creates the per-account statistics row (solved problems, ranking points).
*/
type StatStore interface {
	Initialize(ctx context.Context, accountID string) error
}

/*
AccountEvents
-------------
Announces new accounts to downstream services (ranking, feed).
Publishing is best effort: a failure never fails the login.
*/
type AccountEvents interface {
	PublishAccountCreated(ctx context.Context, evt AccountCreatedEvent) error
}

type AccountCreatedEvent struct {
	AccountID string    `json:"account_id"`
	Nickname  string    `json:"nickname"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

/*
IdentityVerifier
----------------
Verifies a provider ID token (signature, issuer, audience, expiry, nonce)
and returns normalized claims.
*/
type IdentityVerifier interface {
	Verify(ctx context.Context, providerID, idToken, nonce string) (domain.IdentityClaims, error)
}

/*
SessionIssuer
-------------
Mints and parses our own access / refresh tokens.
Used by the service and the auth middleware.
*/
type TokenInfo struct {
	ID        string
	Subject   string
	Kind      domain.TokenKind
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type SessionIssuer interface {
	IssueAccess(subject, role string) (token string, expiresAt time.Time, err error)
	IssueRefresh(subject string) (token string, expiresAt time.Time, err error)
	Parse(token string) (TokenInfo, error)
}

/*
RefreshLedger
-------------
Blacklist of refresh tokens that were exchanged or revoked.
Claim is the atomic "blacklist if absent" used by rotation.
*/
type RefreshLedger interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	Blacklist(ctx context.Context, token string) error
	Claim(ctx context.Context, token string) (won bool, err error)
}
