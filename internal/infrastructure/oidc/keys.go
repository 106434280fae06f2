package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// KeySource returns the public key a provider signed with, looked up by kid.
type KeySource interface {
	Key(ctx context.Context, jwksURL, kid string) (any, error)
}

var errKeyNotFound = errors.New("key id not found in JWKS")

// JWKSCache fetches provider key sets lazily and keeps them refreshed in the
// background. Unknown kids trigger at most one forced refresh per minRefresh.
// A key set whose first fetch failed is fetched again on demand, at most once
// per retryInterval.
type JWKSCache struct {
	cache           *jwk.Cache
	registerTimeout time.Duration
	minRefresh      time.Duration
	retryInterval   time.Duration

	mu      sync.Mutex
	entries map[string]*jwksEntry
	now     func() time.Time
}

// jwksEntry serializes fetches for one URL so a slow endpoint only
// holds up logins for its own provider.
type jwksEntry struct {
	mu          sync.Mutex
	lastRefresh time.Time
	lastAttempt time.Time
}

type JWKSOptions struct {
	HTTPClient      *http.Client
	RegisterTimeout time.Duration
	MinRefresh      time.Duration
	RetryInterval   time.Duration
}

// NewJWKSCache starts the cache workers; they stop when ctx is cancelled.
func NewJWKSCache(ctx context.Context, opts JWKSOptions) (*JWKSCache, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.RegisterTimeout <= 0 {
		opts.RegisterTimeout = 5 * time.Second
	}
	if opts.MinRefresh <= 0 {
		opts.MinRefresh = time.Minute
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(hc)))
	if err != nil {
		return nil, fmt.Errorf("create JWKS cache: %w", err)
	}
	return &JWKSCache{
		cache:           cache,
		registerTimeout: opts.RegisterTimeout,
		minRefresh:      opts.MinRefresh,
		retryInterval:   opts.RetryInterval,
		entries:         make(map[string]*jwksEntry),
		now:             time.Now,
	}, nil
}

func (c *JWKSCache) entry(url string) *jwksEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		e = &jwksEntry{}
		c.entries[url] = e
	}
	return e
}

// ensureRegistered registers url on first use. jwk.Cache keeps a URL
// registered even when its first fetch fails; that case is not an error
// here and is recovered by fetchIfNotReady.
func (c *JWKSCache) ensureRegistered(ctx context.Context, url string, e *jwksEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c.cache.IsRegistered(ctx, url) {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.registerTimeout)
	defer cancel()
	err := c.cache.Register(rctx, url)
	switch {
	case err == nil:
		e.lastRefresh = c.now()
		return nil
	case errors.Is(err, httprc.ErrNotReady()):
		e.lastAttempt = c.now()
		return nil
	default:
		return fmt.Errorf("register JWKS %s: %w", url, err)
	}
}

// fetchIfNotReady returns the cached set, fetching it synchronously when the
// URL is registered but has never been fetched successfully.
func (c *JWKSCache) fetchIfNotReady(ctx context.Context, url string, e *jwksEntry) (jwk.Set, error) {
	if set, err := c.cache.Lookup(ctx, url); err == nil {
		return set, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// another caller may have fetched it while we waited
	if set, err := c.cache.Lookup(ctx, url); err == nil {
		return set, nil
	}
	if c.now().Sub(e.lastAttempt) < c.retryInterval {
		return nil, fmt.Errorf("JWKS %s not available yet", url)
	}
	e.lastAttempt = c.now()

	rctx, cancel := context.WithTimeout(ctx, c.registerTimeout)
	defer cancel()
	set, err := c.cache.Refresh(rctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	e.lastRefresh = c.now()
	return set, nil
}

func (c *JWKSCache) Key(ctx context.Context, jwksURL, kid string) (any, error) {
	e := c.entry(jwksURL)
	if err := c.ensureRegistered(ctx, jwksURL, e); err != nil {
		return nil, err
	}

	set, err := c.fetchIfNotReady(ctx, jwksURL, e)
	if err != nil {
		return nil, err
	}

	key, found := set.LookupKeyID(kid)
	if !found {
		// provider may have rotated keys since the last fetch
		set, err = c.forceRefresh(ctx, jwksURL, e)
		if err != nil {
			return nil, err
		}
		if key, found = set.LookupKeyID(kid); !found {
			return nil, fmt.Errorf("%w: %s", errKeyNotFound, kid)
		}
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("export key %s: %w", kid, err)
	}
	return raw, nil
}

func (c *JWKSCache) forceRefresh(ctx context.Context, url string, e *jwksEntry) (jwk.Set, error) {
	e.mu.Lock()
	if c.now().Sub(e.lastRefresh) < c.minRefresh {
		e.mu.Unlock()
		return nil, errKeyNotFound
	}
	e.lastRefresh = c.now()
	e.mu.Unlock()

	set, err := c.cache.Refresh(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("refresh JWKS: %w", err)
	}
	return set, nil
}
