package ingest

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/llamaha/codesem/internal/chunk"
)

// chunkNamespace roots the deterministic UUIDs chunkID derives. Any fixed
// UUID works here; it only needs to stay constant across runs so the same
// (path, content) pair always derives the same point id.
var chunkNamespace = uuid.MustParse("6f1f0d3a-6c3e-4e6a-9a1d-2c6b2f0e7a21")

// chunkID derives a content-addressable UUID from a chunk's file path and
// content, in the shape vectorstore.Store's Qdrant backend requires for
// point ids. Identical content in the same file always yields the same id,
// so re-ingesting an unchanged chunk is a no-op upsert rather than a
// duplicate insert; changed content naturally gets a new id and is
// re-embedded.
func chunkID(filePath string, c *chunk.Chunk) string {
	name := fmt.Sprintf("%s:%s", filePath, c.Content)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
