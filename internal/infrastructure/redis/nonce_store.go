package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holdfast/auth-service/internal/domain"
)

var errNonceStoreNotConfigured = errors.New("redis nonce store not configured")

// NonceStore is the shared Replay Guard: SET NX decides the single winner
// across every replica.
type NonceStore struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewNonceStore(c *Client, ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &NonceStore{
		rdb:    rdbOf(c),
		prefix: "nonce:",
		ttl:    ttl,
	}
}

func (s *NonceStore) ValidateAndConsume(ctx context.Context, nonce string) error {
	if strings.TrimSpace(nonce) == "" {
		return domain.ErrInvalidNonce(domain.ReasonNonceBlank)
	}
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNonceStoreNotConfigured)
	}

	ok, err := s.rdb.SetNX(ctx, s.prefix+nonce, "1", s.ttl).Result()
	if err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	if !ok {
		return domain.ErrInvalidNonce(domain.ReasonNonceReplayed)
	}
	return nil
}
