package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace  = "warung"
	revokedPrefix = "revoked_token"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Exists(context.Context, ...string) *redis.IntCmd
}

// Client wraps the redis connection used for the token denylist.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// New parses url, connects and verifies connectivity.
func New(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

// RevokedTokenKey namespaces a token id.
func RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf("%s:%s:%s", keyNamespace, revokedPrefix, tokenID)
}

// RevokeToken marks tokenID as revoked for ttl.
func (c *Client) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	if tokenID == "" {
		return errors.New("token id is required")
	}
	return c.store.Set(ctx, RevokedTokenKey(tokenID), "1", ttl).Err()
}

// IsTokenRevoked reports whether tokenID has been revoked.
func (c *Client) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	n, err := c.store.Exists(ctx, RevokedTokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revoked token: %w", err)
	}
	return n > 0, nil
}

// Ping checks redis availability.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
