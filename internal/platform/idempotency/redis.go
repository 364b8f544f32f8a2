package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisAttempts = 3

// RedisStore keeps records as JSON values under <prefix>:idem:<sha256(key)>. Redis expiry
// removes records once their TTL passes.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	attempts int
}

// NewRedisStore binds the store to client.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "storefront"
	}
	return &RedisStore{client: client, prefix: prefix, attempts: defaultRedisAttempts}, nil
}

// Reserve implements Store. The read and the write run under WATCH so two concurrent requests
// cannot both receive ReservationStateNew.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := s.key(key)

	var result Reservation
	err := s.watch(ctx, redisKey, func(tx *redis.Tx) error {
		existing, found, err := s.load(ctx, tx, redisKey)
		if err != nil {
			return err
		}
		if found {
			result, err = reservationFor(existing, fingerprint)
			return err
		}
		record := newPendingRecord(key, fingerprint, now, ttl)
		if err := s.write(ctx, tx, redisKey, record, ttl); err != nil {
			return err
		}
		result = Reservation{State: ReservationStateNew, Record: record}
		return nil
	})
	return result, err
}

// SaveResponse implements Store.
func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := s.key(key)

	return s.watch(ctx, redisKey, func(tx *redis.Tx) error {
		record, found, err := s.load(ctx, tx, redisKey)
		if err != nil {
			return err
		}
		if found && record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if !found {
			record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		}
		return s.write(ctx, tx, redisKey, completeRecord(record, resp, now, ttl), ttl)
	})
}

// Release implements Store. Only the reservation holding fingerprint is removed.
func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	redisKey := s.key(key)
	return s.watch(ctx, redisKey, func(tx *redis.Tx) error {
		record, found, err := s.load(ctx, tx, redisKey)
		if err != nil || !found || record.Fingerprint != fingerprint {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisKey)
			return nil
		})
		return err
	})
}

func (s *RedisStore) watch(ctx context.Context, redisKey string, fn func(tx *redis.Tx) error) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		err = s.client.Watch(ctx, fn, redisKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("idempotency: redis transaction kept conflicting: %w", err)
}

func (s *RedisStore) load(ctx context.Context, tx *redis.Tx, redisKey string) (Record, bool, error) {
	data, err := tx.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: redis get: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, true, nil
}

func (s *RedisStore) write(ctx context.Context, tx *redis.Tx, redisKey string, record Record, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey, data, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":idem:" + storageKey(key)
}

var _ Store = (*RedisStore)(nil)
