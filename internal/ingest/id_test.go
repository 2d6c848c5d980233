package ingest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/llamaha/codesem/internal/chunk"
)

func TestChunkID_StableForSameContentAndPath(t *testing.T) {
	c := &chunk.Chunk{Content: "func main() {}"}
	assert.Equal(t, chunkID("main.go", c), chunkID("main.go", c))
}

func TestChunkID_ChangesWithContent(t *testing.T) {
	a := &chunk.Chunk{Content: "func main() {}"}
	b := &chunk.Chunk{Content: "func main() { println(1) }"}
	assert.NotEqual(t, chunkID("main.go", a), chunkID("main.go", b))
}

func TestChunkID_ChangesWithPath(t *testing.T) {
	c := &chunk.Chunk{Content: "func main() {}"}
	assert.NotEqual(t, chunkID("main.go", c), chunkID("other.go", c))
}

func TestChunkID_IsAValidUUID(t *testing.T) {
	c := &chunk.Chunk{Content: "func main() {}"}
	_, err := uuid.Parse(chunkID("main.go", c))
	assert.NoError(t, err)
}
