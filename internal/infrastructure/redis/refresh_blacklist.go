package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holdfast/auth-service/internal/domain"
)

var errBlacklistNotConfigured = errors.New("redis refresh blacklist not configured")

// RefreshBlacklist is the Redis-backed Credential Ledger.
// Keys hold a SHA-256 digest so raw refresh tokens never sit in Redis.
type RefreshBlacklist struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRefreshBlacklist(c *Client, ttl time.Duration) *RefreshBlacklist {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RefreshBlacklist{
		rdb:    rdbOf(c),
		prefix: "rtbl:",
		ttl:    ttl,
	}
}

func (b *RefreshBlacklist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return b.prefix + hex.EncodeToString(sum[:])
}

func (b *RefreshBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if b.rdb == nil {
		return false, domain.ErrRedisUnavailable(errBlacklistNotConfigured)
	}

	n, err := b.rdb.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, domain.ErrRedisUnavailable(err)
	}
	return n > 0, nil
}

// Blacklist is a no-op for blank tokens. An existing entry keeps its TTL.
func (b *RefreshBlacklist) Blacklist(ctx context.Context, token string) error {
	_, err := b.Claim(ctx, token)
	return err
}

func (b *RefreshBlacklist) Claim(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if b.rdb == nil {
		return false, domain.ErrRedisUnavailable(errBlacklistNotConfigured)
	}

	won, err := b.rdb.SetNX(ctx, b.key(token), time.Now().UTC().Format(time.RFC3339), b.ttl).Result()
	if err != nil {
		return false, domain.ErrRedisUnavailable(err)
	}
	return won, nil
}
