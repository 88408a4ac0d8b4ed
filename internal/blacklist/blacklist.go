// Package blacklist tracks revoked refresh-token ids in Redis. Entries
// carry a TTL equal to the token's remaining lifetime, so the set cleans
// itself and never needs a sweep.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis transport failures.
var ErrUnavailable = errors.New("blacklist backend unavailable")

// minTTL keeps revocations of tokens at the very end of their lifetime
// visible long enough for idempotent re-revokes to observe them.
const minTTL = time.Second

// Store is the revoked-id set.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore wires a Store over the given Redis client.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "bl"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// Add blacklists the id unconditionally. Idempotent: re-adding an already
// revoked id succeeds and refreshes nothing important.
func (s *Store) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(tokenID), "1", clampTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AddNX blacklists the id only if it is not already present and reports
// whether this caller performed the write. Rotation rides on this: of two
// concurrent exchanges of the same token, exactly one wins the SET NX and
// only the winner is handed a new pair.
func (s *Store) AddNX(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.key(tokenID), "1", clampTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Contains reports whether the id is blacklisted.
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
