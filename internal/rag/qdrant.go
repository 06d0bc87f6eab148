package rag

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultQdrantURL is the Qdrant endpoint used when none is configured.
	DefaultQdrantURL = "http://localhost:6333"

	// DefaultTimeout bounds every call made to Qdrant.
	DefaultTimeout = 30 * time.Second

	// qdrantRESTPort is Qdrant's HTTP port. The Go client speaks gRPC, so a
	// URL pointing at the REST port is redirected to qdrantGRPCPort.
	qdrantRESTPort = 6333
	qdrantGRPCPort = 6334
)

// pointNamespace seeds the UUIDv5 derived for ids that are neither UUIDs nor
// unsigned integers. Changing it orphans every previously stored point.
var pointNamespace = uuid.MustParse("6f1c2b1e-7a43-5d2e-9c1a-3b8f0e4d2a17")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// URL is the Qdrant endpoint (default: http://localhost:6333).
	// An https scheme enables TLS.
	URL string

	// Collection is the Qdrant collection name (default: docs).
	Collection string

	// Dim is the dimensionality of the collection's vectors (default: 3072).
	Dim int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// Timeout bounds every request to Qdrant (default: 30s).
	Timeout time.Duration
}

// QdrantStore implements VectorStore backed by a Qdrant collection.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore connects to Qdrant and ensures the target collection exists,
// creating it with cfg.Dim and cosine distance if absent. An existing
// collection is used as-is and its vector size overrides cfg.Dim.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg == nil {
		cfg = &QdrantConfig{}
	}
	if cfg.URL == "" {
		cfg.URL = DefaultQdrantURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dim <= 0 {
		cfg.Dim = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// Client returns the underlying Qdrant client, e.g. for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// Collection returns the name of the collection this store writes to.
func (s *QdrantStore) Collection() string { return s.cfg.Collection }

// collectionAdmin is the part of *qdrant.Client used to bootstrap and
// inspect a collection.
type collectionAdmin interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
}

// VectorSize reports the vector size of the existing collection.
func (s *QdrantStore) VectorSize(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return collectionSize(ctx, s.client, s.cfg.Collection)
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return ensureCollection(ctx, s.client, s.cfg)
}

// ensureCollection creates cfg.Collection with cfg.Dim and cosine distance if
// it is absent. An existing collection is never recreated; its vector size
// replaces cfg.Dim so that vectors are checked against what Qdrant stores.
func ensureCollection(ctx context.Context, admin collectionAdmin, cfg *QdrantConfig) error {
	exists, err := admin.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		size, err := collectionSize(ctx, admin, cfg.Collection)
		if err != nil {
			return err
		}
		// Named or multi-vector collections report no single size.
		if size > 0 {
			cfg.Dim = size
		}
		return nil
	}

	err = admin.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(cfg.Dim), //nolint:gosec // Dim is validated positive
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", cfg.Collection, err)
	}

	return nil
}

// collectionSize reads the single-vector size configured on a collection.
func collectionSize(ctx context.Context, admin collectionAdmin, name string) (int, error) {
	info, err := admin.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("qdrant: failed to get collection %q: %w", name, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	return int(size), nil //nolint:gosec // vector sizes are small
}

// Upsert stores or replaces a batch of points in one request.
func (s *QdrantStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []Payload) error {
	if err := validateBatch(s.cfg.Dim, ids, vectors, payloads); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(ids))
	for i, id := range ids {
		payload, err := qdrant.TryValueMap(payloads[i])
		if err != nil {
			return fmt.Errorf("qdrant: payload for id %q: %w", id, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and collates the top-k payloads.
func (s *QdrantStore) Search(ctx context.Context, query []float32, topK int) (*SearchResult, error) {
	if err := validateQuery(s.cfg.Dim, query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	return collateScoredPoints(points), nil
}

// Delete removes points from the collection by their ids.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// collateScoredPoints extracts text and source from ranked Qdrant results.
func collateScoredPoints(points []*qdrant.ScoredPoint) *SearchResult {
	c := newCollector()
	for _, p := range points {
		if p == nil {
			continue
		}
		var text, source string
		if v, ok := p.GetPayload()[PayloadText]; ok {
			text = v.GetStringValue()
		}
		if v, ok := p.GetPayload()[PayloadSource]; ok {
			source = v.GetStringValue()
		}
		c.add(text, source)
	}
	return c.result()
}

// pointID maps an external string id onto a Qdrant point id. UUIDs and
// unsigned integers are used natively; anything else becomes a stable UUIDv5.
func pointID(id string) *qdrant.PointId {
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String())
	}
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

// parseQdrantURL splits a Qdrant URL into gRPC host, port and TLS flag.
// A missing scheme is treated as http; a missing port or the REST port
// resolves to the gRPC port.
func parseQdrantURL(raw string) (string, int, bool, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("qdrant: failed to parse url %q: %w", raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("qdrant: url %q has no host", raw)
	}

	port := qdrantGRPCPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant: invalid port in %q: %w", raw, err)
		}
		if n != qdrantRESTPort {
			port = n
		}
	}

	return host, port, u.Scheme == "https", nil
}
