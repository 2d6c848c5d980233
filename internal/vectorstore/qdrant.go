package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	cserrors "github.com/llamaha/codesem/internal/errors"
)

// QdrantConfig configures the remote Store.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStore is the production Store: a thin wrapper over the Qdrant gRPC
// client. Collections are cosine-distance, on-disk storage disabled (spec
// §4.3's "create_collection" note), and not-found is detected by matching
// the client's error text since the client has no typed not-found error.
// Writes and searches go through a circuit breaker so a wedged Qdrant
// instance fails fast instead of stalling every ingest/search call behind
// a dial timeout.
type QdrantStore struct {
	client  *qdrant.Client
	cfg     QdrantConfig
	breaker *cserrors.CircuitBreaker
	retry   cserrors.RetryConfig
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore dials a Qdrant instance.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantStore{
		client: client,
		cfg:    cfg,
		breaker: cserrors.NewCircuitBreaker("qdrant",
			cserrors.WithMaxFailures(5),
			cserrors.WithResetTimeout(30*time.Second)),
		retry: cserrors.RetryConfig{
			MaxRetries:   2,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
	}, nil
}

// CreateCollection implements Store.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dims int) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}

	onDisk := false
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
			OnDisk:   &onDisk,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	return nil
}

// CollectionExists implements Store. Qdrant's client surfaces a missing
// collection as a plain error rather than a typed not-found value, so
// absence is detected the same way the original Rust client does: by
// substring-matching the returned error text.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return cserrors.CircuitExecuteWithResult(s.breaker,
		func() (bool, error) {
			_, err := s.client.GetCollectionInfo(ctx, name)
			if err == nil {
				return true, nil
			}
			if isNotFoundErr(err) {
				return false, nil
			}
			return false, fmt.Errorf("get collection info %q: %w", name, err)
		},
		func() (bool, error) {
			return false, fmt.Errorf("get collection info %q: %w", name, cserrors.ErrCircuitOpen)
		})
}

func isNotFoundErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "doesn't exist") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "not exist")
}

// InsertDocuments implements Store.
func (s *QdrantStore) InsertDocuments(ctx context.Context, name string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		payload := metadataToPayload(doc.Metadata)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: payload,
		})
	}

	wait := true
	return s.breaker.Execute(func() error {
		return cserrors.Retry(ctx, s.retry, func() error {
			_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: name,
				Points:         points,
				Wait:           &wait,
			})
			if err != nil {
				return fmt.Errorf("upsert %d documents into %q: %w", len(docs), name, err)
			}
			return nil
		})
	})
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, name string, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	req := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          ptrUint64(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold != nil {
		req.ScoreThreshold = opts.ScoreThreshold
	}

	var points []*qdrant.ScoredPoint
	err := s.breaker.Execute(func() error {
		var err error
		points, err = s.client.Query(ctx, req)
		if err != nil {
			return fmt.Errorf("search %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, scoredPointToResult(p))
	}
	return results, nil
}

// DeleteDocuments implements Store. Ids that do not exist in the collection
// are silently ignored by Qdrant's own delete semantics.
func (s *QdrantStore) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	return s.breaker.Execute(func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("delete %d documents from %q: %w", len(ids), name, err)
		}
		return nil
	})
}

// Close implements Store.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func ptrUint64(v uint64) *uint64 { return &v }

func metadataToPayload(m DocumentMetadata) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"file_path":    qdrant.NewValueString(m.FilePath),
		"start_line":   qdrant.NewValueInt(int64(m.StartLine)),
		"end_line":     qdrant.NewValueInt(int64(m.EndLine)),
		"content":      qdrant.NewValueString(m.Content),
		"language":     qdrant.NewValueString(m.Language),
		"element_type": qdrant.NewValueString(m.ElementType),
		"project_id":   qdrant.NewValueString(m.ProjectID),
		"worktree_id":  qdrant.NewValueString(m.WorktreeID),
	}
}

func scoredPointToResult(p *qdrant.ScoredPoint) SearchResult {
	var id string
	if p.Id != nil {
		switch v := p.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			id = v.Uuid
		case *qdrant.PointId_Num:
			id = fmt.Sprintf("%d", v.Num)
		}
	}

	get := func(key string) string {
		v, ok := p.Payload[key]
		if !ok {
			return ""
		}
		return v.GetStringValue()
	}
	getInt := func(key string) int {
		v, ok := p.Payload[key]
		if !ok {
			return 0
		}
		return int(v.GetIntegerValue())
	}

	return SearchResult{
		ID:          id,
		Score:       p.Score,
		FilePath:    get("file_path"),
		StartLine:   getInt("start_line"),
		EndLine:     getInt("end_line"),
		Content:     get("content"),
		Language:    get("language"),
		ElementType: get("element_type"),
	}
}
