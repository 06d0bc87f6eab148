package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC and
// confirms the configured collection still exists.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
	// collection is checked for existence when non-empty.
	collection string
}

// NewQdrantPinger constructs a QdrantPinger for the given client and collection.
func NewQdrantPinger(client *qdrant.Client, collection string) *QdrantPinger {
	return &QdrantPinger{client: client, collection: collection}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Target returns the collection the vector store reads and writes.
func (p *QdrantPinger) Target() string { return p.collection }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if p.collection == "" {
		return nil
	}
	exists, err := p.client.CollectionExists(ctx, p.collection)
	if err != nil {
		return fmt.Errorf("collection check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q does not exist", p.collection)
	}
	return nil
}

// RedisPinger probes the Redis instance backing event deduplication.
type RedisPinger struct {
	// client is the Redis client to probe.
	client *redis.Client
}

// NewRedisPinger constructs a RedisPinger for the given client.
func NewRedisPinger(client *redis.Client) *RedisPinger {
	return &RedisPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *RedisPinger) Name() string { return "redis" }

// Target returns the Redis address holding seen event IDs.
func (p *RedisPinger) Target() string { return p.client.Options().Addr }

// Ping sends PING and expects PONG.
func (p *RedisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// funcPinger adapts a ping function to the Pinger interface.
type funcPinger struct {
	name   string
	target string
	fn     func(context.Context) error
}

// PingerFunc returns a Pinger named name that calls fn and reports target
// in readiness responses. Used for dependencies like the SQLite ledger that
// already expose Ping.
func PingerFunc(name, target string, fn func(context.Context) error) Pinger {
	return &funcPinger{name: name, target: target, fn: fn}
}

func (p *funcPinger) Name() string                   { return p.name }
func (p *funcPinger) Target() string                 { return p.target }
func (p *funcPinger) Ping(ctx context.Context) error { return p.fn(ctx) }
