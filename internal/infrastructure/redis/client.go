package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client shared by the nonce store and the refresh blacklist.
type Client struct {
	rdb *goredis.Client
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

func New(opts Options) *Client {
	return &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// Ping uses a short timeout so bootstrap can fall back to memory quickly.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func rdbOf(c *Client) *goredis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}
