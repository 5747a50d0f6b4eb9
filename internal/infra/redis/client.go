package redis

import (
	"ai-chat/internal/config"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Client wraps the shared redis connection
type Client struct {
	cli *redis.Client
}

// NewClient connects to redis and verifies the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.URL, err)
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Close() error { return c.cli.Close() }
