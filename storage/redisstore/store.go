// Package redisstore keeps the portal session slots in Redis.
package redisstore

import (
	"context"
	"errors"
	"time"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/redis/go-redis/v9"
)

// Store is a Redis backed auth.TokenStore.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ auth.TokenStore = (*Store)(nil)

// Option customizes the store.
type Option func(*Store)

// WithTTL expires both slots after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New returns a store whose keys live under "portal:<namespace>:".
func New(client *redis.Client, namespace string, opts ...Option) *Store {
	if namespace == "" {
		namespace = "default"
	}
	s := &Store{
		client: client,
		prefix: "portal:" + namespace + ":",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Dial connects to addr and verifies the connection with a PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Get implements auth.TokenStore.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set implements auth.TokenStore.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

// Remove implements auth.TokenStore.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
