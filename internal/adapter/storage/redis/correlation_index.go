package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// CorrelationIndex implements ports.CorrelationIndex using Redis keys of
// the form payment:<address>.
type CorrelationIndex struct {
	client *goredis.Client
	prefix string
}

// NewCorrelationIndex creates a new Redis-backed correlation index.
func NewCorrelationIndex(client *goredis.Client) *CorrelationIndex {
	return &CorrelationIndex{
		client: client,
		prefix: "payment:",
	}
}

// Track maps address to paymentID for ttl.
func (c *CorrelationIndex) Track(ctx context.Context, address string, paymentID uuid.UUID, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+address, paymentID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis correlation set: %w", err)
	}
	return nil
}

// Lookup returns the payment that requested address. ok is false when no
// live mapping exists.
func (c *CorrelationIndex) Lookup(ctx context.Context, address string) (uuid.UUID, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+address).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("redis correlation get: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis correlation: corrupt entry for %s: %w", address, err)
	}
	return id, true, nil
}
