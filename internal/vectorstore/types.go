// Package vectorstore implements the §4.3 vector storage contract: named
// collections of embedded documents, searchable by cosine similarity.
package vectorstore

import "context"

// DocumentMetadata is the payload carried alongside a document's embedding.
// Every field here round-trips through a SearchResult.
type DocumentMetadata struct {
	FilePath    string
	StartLine   int
	EndLine     int
	Content     string
	Language    string
	ElementType string
	ProjectID   string
	WorktreeID  string
}

// Document pairs an id and embedding with its metadata for insertion.
type Document struct {
	ID        string
	Embedding []float32
	Metadata  DocumentMetadata
}

// SearchResult is one ranked hit returned from Search, in descending score
// order. Score is cosine similarity in [-1, 1] for a collection created
// with cosine distance.
type SearchResult struct {
	ID          string
	Score       float32
	FilePath    string
	StartLine   int
	EndLine     int
	Content     string
	Language    string
	ElementType string
}

// SearchOptions bounds a Search call.
type SearchOptions struct {
	Limit          int
	ScoreThreshold *float32 // nil means no threshold filtering
}

// Store is the vector storage contract: create/verify a collection, upsert
// documents into it, search it, and delete by id. Implementations:
// qdrant.go (remote, gRPC) and memory.go (in-process stand-in for tests
// and offline mode).
type Store interface {
	// CreateCollection creates a named collection sized for dims-dimensional
	// cosine-distance vectors. It is idempotent: calling it on an existing
	// collection with a compatible dimension is a no-op, not an error.
	CreateCollection(ctx context.Context, name string, dims int) error

	// CollectionExists reports whether name has been created.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// InsertDocuments upserts docs into name by id: an existing id's vector
	// and metadata are replaced, not duplicated.
	InsertDocuments(ctx context.Context, name string, docs []Document) error

	// Search returns the opts.Limit nearest neighbors to queryVector by
	// cosine similarity, filtered by opts.ScoreThreshold when set, in
	// descending score order.
	Search(ctx context.Context, name string, queryVector []float32, opts SearchOptions) ([]SearchResult, error)

	// DeleteDocuments removes ids from name. Ids that do not exist are
	// silently ignored.
	DeleteDocuments(ctx context.Context, name string, ids []string) error

	// Close releases any underlying connection or resources.
	Close() error
}
