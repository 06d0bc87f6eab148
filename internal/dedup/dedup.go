// Package dedup records which event IDs have already been processed so the
// event endpoint can drop redeliveries. Stores are selected by type, the
// in-memory one for a single process and Redis when several replicas share
// one event stream.
package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType names a dedup backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// DefaultTTL is how long an event ID is remembered.
const DefaultTTL = 24 * time.Hour

const defaultKeyPrefix = "ragpdf:event:"

var (
	// ErrInvalidStoreType is returned by NewStore for an unknown StoreType.
	ErrInvalidStoreType = errors.New("dedup: invalid store type")
	// ErrInvalidConfig is returned when a store is missing a required option.
	ErrInvalidConfig = errors.New("dedup: invalid config")
)

// Store remembers event IDs for a TTL.
type Store interface {
	// Seen records id and reports whether it was already recorded and not
	// yet expired.
	Seen(ctx context.Context, id string) (bool, error)
	// Forget drops id so the next Seen for it reports false.
	Forget(ctx context.Context, id string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
	keyPrefix   string
}

// WithRedisClient sets the client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithTTL sets how long an ID is remembered.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) { c.keyPrefix = prefix }
}

// NewStore creates a Store of the given type. The Redis store requires
// WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = DefaultTTL
	}
	if cfg.keyPrefix == "" {
		cfg.keyPrefix = defaultKeyPrefix
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(cfg.ttl), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client: cfg.redisClient,
			ttl:    cfg.ttl,
			prefix: cfg.keyPrefix,
		}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}
