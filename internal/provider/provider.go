// Package provider holds the static configuration of every supported identity
// provider and the per-provider claim mapping applied after verification.
package provider

import (
	"strings"

	"github.com/holdfast/auth-service/internal/domain"
)

// ID identifies an identity provider. The set is closed.
type ID string

const (
	Kakao  ID = "kakao"
	Google ID = "google"
	Apple  ID = "apple"
)

// Known returns every supported provider id.
func Known() []ID {
	return []ID{Kakao, Google, Apple}
}

// Normalize lower-cases and trims a caller-supplied provider id.
func Normalize(raw string) ID {
	return ID(strings.ToLower(strings.TrimSpace(raw)))
}

// ClaimMapper extracts normalized identity attributes from verified token claims.
type ClaimMapper func(claims map[string]any) domain.IdentityClaims

// Descriptor is the immutable per-provider configuration.
type Descriptor struct {
	ID            ID       `validate:"required"`
	ClientID      string   `validate:"required"`
	JWKSURL       string   `validate:"required,url"`
	Issuers       []string `validate:"required,min=1,dive,required"`
	Audiences     []string `validate:"required,min=1,dive,required"`
	NonceRequired bool
	Claims        ClaimMapper `validate:"-"`
}

// AcceptsIssuer reports whether iss is one of the descriptor's issuers.
func (d Descriptor) AcceptsIssuer(iss string) bool {
	for _, v := range d.Issuers {
		if v == iss {
			return true
		}
	}
	return false
}

// AcceptsAudience reports whether any of aud is one of the descriptor's audiences.
func (d Descriptor) AcceptsAudience(aud []string) bool {
	for _, a := range aud {
		for _, v := range d.Audiences {
			if a == v {
				return true
			}
		}
	}
	return false
}

// variant is the fixed, publicly documented part of a provider.
type variant struct {
	jwksURL string
	issuers []string
	nonce   bool
	claims  ClaimMapper
}

var variants = map[ID]variant{
	Kakao: {
		jwksURL: "https://kauth.kakao.com/.well-known/jwks.json",
		issuers: []string{"https://kauth.kakao.com"},
		nonce:   true,
		claims:  kakaoClaims,
	},
	Google: {
		jwksURL: "https://www.googleapis.com/oauth2/v3/certs",
		issuers: []string{"https://accounts.google.com", "accounts.google.com"},
		nonce:   true,
		claims:  googleClaims,
	},
	Apple: {
		jwksURL: "https://appleid.apple.com/auth/keys",
		issuers: []string{"https://appleid.apple.com"},
		nonce:   true,
		claims:  appleClaims,
	},
}

// Settings overrides a variant's defaults. Empty fields keep the default.
type Settings struct {
	ClientID      string
	JWKSURL       string
	Issuers       []string
	Audiences     []string
	NonceRequired *bool
}

// Describe builds the descriptor of a known provider. Audiences default to the client id.
func Describe(id ID, s Settings) (Descriptor, error) {
	v, ok := variants[id]
	if !ok {
		return Descriptor{}, domain.ErrProviderNotSupported(string(id))
	}

	d := Descriptor{
		ID:            id,
		ClientID:      strings.TrimSpace(s.ClientID),
		JWKSURL:       v.jwksURL,
		Issuers:       v.issuers,
		Audiences:     []string{strings.TrimSpace(s.ClientID)},
		NonceRequired: v.nonce,
		Claims:        v.claims,
	}
	if s.JWKSURL != "" {
		d.JWKSURL = s.JWKSURL
	}
	if len(s.Issuers) > 0 {
		d.Issuers = s.Issuers
	}
	if len(s.Audiences) > 0 {
		d.Audiences = s.Audiences
	}
	if s.NonceRequired != nil {
		d.NonceRequired = *s.NonceRequired
	}
	return d, nil
}
