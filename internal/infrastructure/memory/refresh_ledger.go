package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultLedgerTTL      = 7 * 24 * time.Hour
	DefaultLedgerCapacity = 100_000
)

// RefreshLedger is the in-process refresh-token blacklist.
// Entries are never touched on read, so eviction follows write order.
type RefreshLedger struct {
	mu      sync.Mutex
	revoked *expirable.LRU[string, time.Time]
}

func NewRefreshLedger(capacity int, ttl time.Duration) *RefreshLedger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RefreshLedger{revoked: expirable.NewLRU[string, time.Time](capacity, nil, ttl)}
}

func (l *RefreshLedger) IsBlacklisted(_ context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.revoked.Peek(token)
	return ok, nil
}

// Blacklist is idempotent and ignores blank tokens.
func (l *RefreshLedger) Blacklist(_ context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.revoked.Peek(token); !ok {
		l.revoked.Add(token, time.Now())
	}
	return nil
}

// Claim blacklists token and reports whether this call was the one that did.
func (l *RefreshLedger) Claim(_ context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.revoked.Peek(token); ok {
		return false, nil
	}
	l.revoked.Add(token, time.Now())
	return true, nil
}

func (l *RefreshLedger) Len() int { return l.revoked.Len() }
