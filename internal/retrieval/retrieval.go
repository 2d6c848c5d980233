// Package retrieval implements the query side of semantic search: embed the
// query text, search the vector store, and return ranked hits. There is no
// re-ranking beyond the store's own cosine similarity ordering.
package retrieval

import (
	"context"
	"fmt"

	"github.com/llamaha/codesem/internal/embed"
	"github.com/llamaha/codesem/internal/vectorstore"
)

// Result is one ranked hit surfaced to a caller.
type Result struct {
	FilePath    string
	StartLine   int
	EndLine     int
	Content     string
	Language    string
	ElementType string
	Score       float32
}

// DefaultLimit is used when a caller requests zero or a negative limit.
const DefaultLimit = 10

// Retriever ties an embedding provider to a named collection in a vector
// store.
type Retriever struct {
	embedder   embed.Embedder
	store      vectorstore.Store
	collection string
}

// New constructs a Retriever.
func New(embedder embed.Embedder, store vectorstore.Store, collection string) *Retriever {
	return &Retriever{embedder: embedder, store: store, collection: collection}
}

// Search embeds query, searches the collection, and returns results in the
// store's descending-score order.
func (r *Retriever) Search(ctx context.Context, query string, limit int, scoreThreshold *float32) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval: query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, r.collection, vec, vectorstore.SearchOptions{
		Limit:          limit,
		ScoreThreshold: scoreThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: search %q: %w", r.collection, err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			FilePath:    h.FilePath,
			StartLine:   h.StartLine,
			EndLine:     h.EndLine,
			Content:     h.Content,
			Language:    h.Language,
			ElementType: h.ElementType,
			Score:       h.Score,
		})
	}
	return results, nil
}
