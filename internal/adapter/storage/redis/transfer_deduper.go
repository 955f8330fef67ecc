package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TransferDeduper implements ports.TransferDeduper using Redis SET NX.
type TransferDeduper struct {
	client *goredis.Client
	prefix string
}

// NewTransferDeduper creates a new Redis-backed transfer deduper.
func NewTransferDeduper(client *goredis.Client) *TransferDeduper {
	return &TransferDeduper{
		client: client,
		prefix: "transfer:",
	}
}

// Claim atomically marks key as seen. Returns true if this caller is the
// first to see it within ttl.
func (s *TransferDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.prefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Key already exists
			return false, nil
		}
		return false, fmt.Errorf("redis transfer claim: %w", err)
	}
	return result == "OK", nil
}

// Release forgets key so a later delivery can be processed again.
func (s *TransferDeduper) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis transfer release: %w", err)
	}
	return nil
}
