package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/holdfast/auth-service/internal/domain"
)

const (
	DefaultNonceTTL      = 10 * time.Minute
	DefaultNonceCapacity = 50_000
)

// ReplayGuard accepts each nonce at most once within its TTL.
// Oldest entries are evicted once capacity is reached.
type ReplayGuard struct {
	mu   sync.Mutex
	used *expirable.LRU[string, struct{}]
}

func NewReplayGuard(capacity int, ttl time.Duration) *ReplayGuard {
	if capacity <= 0 {
		capacity = DefaultNonceCapacity
	}
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &ReplayGuard{used: expirable.NewLRU[string, struct{}](capacity, nil, ttl)}
}

func (g *ReplayGuard) ValidateAndConsume(_ context.Context, nonce string) error {
	if strings.TrimSpace(nonce) == "" {
		return domain.ErrInvalidNonce(domain.ReasonNonceBlank)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Peek honours expiry; Contains does not.
	if _, seen := g.used.Peek(nonce); seen {
		return domain.ErrInvalidNonce(domain.ReasonNonceReplayed)
	}
	g.used.Add(nonce, struct{}{})
	return nil
}

func (g *ReplayGuard) Len() int { return g.used.Len() }
