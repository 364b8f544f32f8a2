package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps blobs as plain string values under <namespace>:blob:<name>. Values never expire.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore binds the store to client. An empty namespace defaults to "storefront".
func NewRedisStore(client redis.UniversalClient, namespace string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis store: client is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "storefront"
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get %s: %w", name, err)
	}
	return data, nil
}

// Save implements Store. SET replaces the value atomically.
func (s *RedisStore) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("redis store: set %s: %w", name, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("redis store: delete %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:blob:%s", s.namespace, name)
}

var _ Store = (*RedisStore)(nil)
