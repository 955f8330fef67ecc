package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// FragmentStore implements ports.FragmentStore. Entries live under the
// KeyID's own string form: keypart:<i> and address:<pubkey>.
type FragmentStore struct {
	client *goredis.Client
}

// NewFragmentStore creates a new Redis-backed fragment store.
func NewFragmentStore(client *goredis.Client) *FragmentStore {
	return &FragmentStore{client: client}
}

// Put stores value under id. A non-positive ttl stores without expiry.
func (s *FragmentStore) Put(ctx context.Context, id domain.KeyID, value string, ttl time.Duration) error {
	if id.IsZero() {
		return fmt.Errorf("redis fragment put: empty key id")
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, id.String(), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis fragment put: %w", err)
	}
	return nil
}

// Get returns ok=false when the entry is missing or expired.
func (s *FragmentStore) Get(ctx context.Context, id domain.KeyID) (string, bool, error) {
	val, err := s.client.Get(ctx, id.String()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis fragment get: %w", err)
	}
	return val, true, nil
}

// Delete removes the entry. Deleting a missing entry is not an error.
func (s *FragmentStore) Delete(ctx context.Context, id domain.KeyID) error {
	if err := s.client.Del(ctx, id.String()).Err(); err != nil {
		return fmt.Errorf("redis fragment delete: %w", err)
	}
	return nil
}
