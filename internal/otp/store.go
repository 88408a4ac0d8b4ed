// Package otp holds the ephemeral one-time-code records in Redis. Records
// are digests only; plaintext codes never reach the store.
package otp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersionV1 = 1

var (
	// ErrNotFound means no live record exists: never issued, expired, or
	// already consumed.
	ErrNotFound = errors.New("otp record not found")
	// ErrMismatch means the supplied code's digest did not match.
	ErrMismatch = errors.New("otp digest mismatch")
	// ErrExhausted means the attempt bound was exceeded and the record was
	// invalidated.
	ErrExhausted = errors.New("otp attempts exceeded")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("otp backend unavailable")
)

// Record is the stored shape for one (account, purpose) pair.
type Record struct {
	Digest    [32]byte
	ExpiresAt int64 // unix seconds
	Attempts  uint16
}

// Store reads and writes Records under a configurable key prefix.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore wires a Store over the given Redis client.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "otp"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(purpose, accountID string) string {
	return s.prefix + ":" + purpose + ":" + accountID
}

// DigestCode is the one-way digest stored instead of the plaintext code.
func DigestCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// Save overwrites any prior record for the pair and resets its attempt
// counter, enforcing the one-live-record invariant.
func (s *Store) Save(ctx context.Context, purpose, accountID string, rec *Record, ttl time.Duration) error {
	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(purpose, accountID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the record unconditionally.
func (s *Store) Delete(ctx context.Context, purpose, accountID string) error {
	if err := s.redis.Del(ctx, s.key(purpose, accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume performs the whole verify step as one logical read-increment-
// compare inside a WATCH transaction, so two parallel verifies can never
// both slip under the attempt bound. On a digest match the record is
// deleted before ok is returned (single-use semantics).
func (s *Store) Consume(ctx context.Context, purpose, accountID string, providedDigest [32]byte, maxAttempts int) error {
	const maxRetries = 4
	key := s.key(purpose, accountID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrNotFound
				}
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}

			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > rec.ExpiresAt {
				return deleteInTx(ctx, tx, key, ErrNotFound)
			}

			rec.Attempts++
			if int(rec.Attempts) > maxAttempts {
				return deleteInTx(ctx, tx, key, ErrExhausted)
			}

			if subtle.ConstantTimeCompare(rec.Digest[:], providedDigest[:]) == 1 {
				return deleteInTx(ctx, tx, key, nil)
			}

			ttl := time.Until(time.Unix(rec.ExpiresAt, 0))
			if ttl <= 0 {
				return deleteInTx(ctx, tx, key, ErrNotFound)
			}
			encoded, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			}); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return ErrMismatch
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // key changed under us, retry the transaction
		}
		return err
	}
	return fmt.Errorf("%w: transaction contention", ErrUnavailable)
}

// deleteInTx deletes the key inside the transaction and returns result,
// unless the pipeline itself fails.
func deleteInTx(ctx context.Context, tx *redis.Tx, key string, result error) error {
	if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result
}

func encodeRecord(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("nil otp record")
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(recordVersionV1)
	buf.Write(rec.Digest[:])
	if err := binary.Write(buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, rec.Attempts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	const wantLen = 1 + 32 + 8 + 2
	if len(data) != wantLen || data[0] != recordVersionV1 {
		return nil, errors.New("malformed otp record")
	}
	rec := &Record{}
	copy(rec.Digest[:], data[1:33])
	rec.ExpiresAt = int64(binary.BigEndian.Uint64(data[33:41]))
	rec.Attempts = binary.BigEndian.Uint16(data[41:43])
	return rec, nil
}
