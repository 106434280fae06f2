// Package oidc verifies provider-issued ID tokens against the provider's
// published signing keys and maps them to normalized identity claims.
package oidc

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/provider"
)

// NonceGuard consumes a nonce exactly once.
type NonceGuard interface {
	ValidateAndConsume(ctx context.Context, nonce string) error
}

var (
	errMissingKid   = errors.New("token header missing kid")
	errIssuer       = errors.New("issuer not accepted")
	errAudience     = errors.New("audience not accepted")
	errBlankSubject = errors.New("subject claim missing")
	errBlankToken   = errors.New("id token blank")

	signingAlgorithms = []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}
)

type Verifier struct {
	registry *provider.Registry
	keys     KeySource
	guard    NonceGuard
	now      func() time.Time
}

func NewVerifier(registry *provider.Registry, keys KeySource, guard NonceGuard) *Verifier {
	return &Verifier{
		registry: registry,
		keys:     keys,
		guard:    guard,
		now:      time.Now,
	}
}

func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify checks signature, issuer, audience and expiry, then the nonce.
// The nonce is consumed only once everything else has passed.
func (v *Verifier) Verify(ctx context.Context, providerID, idToken, nonce string) (domain.IdentityClaims, error) {
	desc, err := v.registry.Resolve(providerID)
	if err != nil {
		return domain.IdentityClaims{}, err
	}
	if strings.TrimSpace(idToken) == "" {
		return domain.IdentityClaims{}, domain.ErrTokenInvalidBecause(errBlankToken)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods(signingAlgorithms),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	_, err = parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKid
		}
		key, err := v.keys.Key(ctx, desc.JWKSURL, kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ReasonKeyDiscovery, err)
		}
		return key, nil
	})

	expired := false
	if err != nil {
		if !isExpiredOnly(err) {
			return domain.IdentityClaims{}, domain.ErrTokenInvalidBecause(err)
		}
		expired = true
	}

	// Checked even for expired tokens: a foreign token must never look merely expired.
	if iss, _ := claims.GetIssuer(); !desc.AcceptsIssuer(iss) {
		return domain.IdentityClaims{}, domain.ErrTokenInvalidBecause(errIssuer)
	}
	if aud, _ := claims.GetAudience(); !desc.AcceptsAudience(aud) {
		return domain.IdentityClaims{}, domain.ErrTokenInvalidBecause(errAudience)
	}
	if expired {
		return domain.IdentityClaims{}, domain.ErrTokenExpired()
	}

	if desc.NonceRequired {
		if err := checkNonce(claims, nonce); err != nil {
			return domain.IdentityClaims{}, err
		}
	}

	identity := desc.Claims(claims)
	identity.Provider = string(desc.ID)
	if strings.TrimSpace(identity.Subject) == "" {
		return domain.IdentityClaims{}, domain.ErrTokenInvalidBecause(errBlankSubject)
	}

	if desc.NonceRequired {
		if err := v.guard.ValidateAndConsume(ctx, nonce); err != nil {
			if domain.Is(err, "invalid_nonce") {
				return domain.IdentityClaims{}, err
			}
			// guard store failure; nothing was consumed so the login can be retried
			return domain.IdentityClaims{}, domain.ErrTokenInvalidBecause(err)
		}
	}
	return identity, nil
}

// checkNonce treats an absent claim and a different value the same way
// externally; the cause tells them apart in logs.
func checkNonce(claims jwt.MapClaims, supplied string) error {
	got, _ := claims["nonce"].(string)
	if strings.TrimSpace(got) == "" {
		return domain.ErrInvalidNonce(domain.ReasonNonceMissing)
	}
	if strings.TrimSpace(supplied) == "" {
		return domain.ErrInvalidNonce(domain.ReasonNonceBlank)
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(supplied)) != 1 {
		return domain.ErrInvalidNonce(domain.ReasonNonceMismatch)
	}
	return nil
}

// isExpiredOnly is true when expiry is the only reason parsing failed.
func isExpiredOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	return !errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenMalformed) &&
		!errors.Is(err, jwt.ErrTokenUnverifiable) &&
		!errors.Is(err, jwt.ErrTokenNotValidYet) &&
		!errors.Is(err, jwt.ErrTokenUsedBeforeIssued)
}
