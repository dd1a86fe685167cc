// SPDX-License-Identifier: MIT
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis reads addresses with GET key.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// DialRedis creates a client for addr.
func DialRedis(addr string) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis GET %s: %w", key, err)
	}
	return normalize(v)
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
