package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// MemoryStore is the in-process stand-in Store backed by coder/hnsw. It has
// no durability and no network hop, so tests and offline runs use it in
// place of QdrantStore; it implements the identical Store contract so
// callers never branch on which one they hold.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	closed      bool
}

type memoryCollection struct {
	dims  int
	graph *hnsw.Graph[uint64]

	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]DocumentMetadata
	nextKey uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// CreateCollection implements Store.
func (s *MemoryStore) CreateCollection(ctx context.Context, name string, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}
	if _, exists := s.collections[name]; exists {
		return nil
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	s.collections[name] = &memoryCollection{
		dims:   dims,
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		meta:   make(map[string]DocumentMetadata),
	}
	return nil
}

// CollectionExists implements Store.
func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// InsertDocuments implements Store.
func (s *MemoryStore) InsertDocuments(ctx context.Context, name string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("vectorstore: collection %q does not exist", name)
	}

	for _, doc := range docs {
		if len(doc.Embedding) != col.dims {
			return fmt.Errorf("vectorstore: embedding has %d dims, collection %q expects %d", len(doc.Embedding), name, col.dims)
		}

		// Upsert by id: lazily orphan the old graph node rather than
		// deleting it, working around coder/hnsw's last-node deletion bug.
		if existingKey, exists := col.idMap[doc.ID]; exists {
			delete(col.keyMap, existingKey)
		}

		key := col.nextKey
		col.nextKey++

		vec := normalizeVector(doc.Embedding)
		col.graph.Add(hnsw.MakeNode(key, vec))

		col.idMap[doc.ID] = key
		col.keyMap[key] = doc.ID
		col.meta[doc.ID] = doc.Metadata
	}
	return nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, name string, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("vectorstore: collection %q does not exist", name)
	}
	if len(queryVector) != col.dims {
		return nil, fmt.Errorf("vectorstore: query has %d dims, collection %q expects %d", len(queryVector), name, col.dims)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if col.graph.Len() == 0 {
		return nil, nil
	}

	normalized := normalizeVector(queryVector)
	// Overfetch past lazily-orphaned nodes so the limit is honored after
	// filtering stale ids out.
	nodes := col.graph.Search(normalized, limit+col.graph.Len()-len(col.keyMap)+limit)

	results := make([]SearchResult, 0, limit)
	for _, node := range nodes {
		id, exists := col.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := col.graph.Distance(normalized, node.Value)
		score := float32(1.0 - distance/2.0) // cosine distance in [0,2] -> similarity in [-1,1]

		if opts.ScoreThreshold != nil && score < *opts.ScoreThreshold {
			continue
		}

		meta := col.meta[id]
		results = append(results, SearchResult{
			ID:          id,
			Score:       score,
			FilePath:    meta.FilePath,
			StartLine:   meta.StartLine,
			EndLine:     meta.EndLine,
			Content:     meta.Content,
			Language:    meta.Language,
			ElementType: meta.ElementType,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteDocuments implements Store.
func (s *MemoryStore) DeleteDocuments(ctx context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("vectorstore: collection %q does not exist", name)
	}

	for _, id := range ids {
		if key, exists := col.idMap[id]; exists {
			delete(col.keyMap, key)
			delete(col.idMap, id)
			delete(col.meta, id)
		}
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.collections = nil
	return nil
}

// normalizeVector returns v scaled to unit length; a zero vector is
// returned unchanged since it has no direction to normalize.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return append([]float32(nil), v...)
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
