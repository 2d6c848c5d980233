package embed

// Static768Dimensions matches DefaultDimensions (768), so a project indexed
// with a 768-dimension model can switch to the static embedder without a
// dimension mismatch against an existing Qdrant collection. It does not
// match the GPU reference provider, which emits GPUEmbeddingDim (1536).
const Static768Dimensions = 768

// StaticEmbedder768 is StaticEmbedder at Static768Dimensions: the same
// hash-based algorithm, sized to match a collection built with a
// 768-dimension model instead of the narrower 256-dimension default.
type StaticEmbedder768 struct {
	*StaticEmbedder
}

// NewStaticEmbedder768 creates a dimension-compatible static embedder.
func NewStaticEmbedder768() *StaticEmbedder768 {
	return &StaticEmbedder768{StaticEmbedder: newStaticEmbedderAt(Static768Dimensions)}
}

// ModelName returns the model identifier.
func (e *StaticEmbedder768) ModelName() string {
	return "static768"
}

var _ Embedder = (*StaticEmbedder768)(nil)
