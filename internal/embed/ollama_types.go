package embed

import "time"

// Ollama API constants. Ollama is the CLI's default local-daemon embedding
// backend: no native library to dlopen, just a model pulled once with
// `ollama pull` and served over localhost HTTP.
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model requested from
	// Ollama. Chosen for code search quality over general text embedding.
	DefaultOllamaModel = "qwen3-embedding:0.6b"

	// OllamaConnectTimeout is the default OllamaConfig.ConnectTimeout. The
	// startup health check is bounded by DefaultColdTimeout, not by this.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize is the HTTP connection pool size for the embed client.
	OllamaPoolSize = 4
)

// FallbackOllamaModels are tried in order when DefaultOllamaModel isn't
// pulled locally. Only code-capable embedding models belong here — a
// general text embedder silently degrades code search relevance rather
// than failing loudly.
var FallbackOllamaModels = []string{
	"embeddinggemma",
	"mxbai-embed-large",
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to request.
	Model string

	// FallbackModels are tried in order if Model isn't pulled.
	FallbackModels []string

	// Dimensions overrides auto-detection (0 = auto-detect from a probe
	// embedding call).
	Dimensions int

	// BatchSize bounds how many texts go into one /api/embed request.
	BatchSize int

	// Timeout is retained for API compatibility with older callers; the
	// embedder derives its actual per-request timeout from warm/cold state
	// and batch progress (see getProgressiveTimeout).
	Timeout time.Duration

	// ConnectTimeout is retained for API compatibility and is not read; the
	// startup health check uses DefaultColdTimeout.
	ConnectTimeout time.Duration

	// MaxRetries is the number of attempts before an embed call fails.
	MaxRetries int

	// PoolSize is the HTTP connection pool size.
	PoolSize int

	// SkipHealthCheck skips the startup model-availability probe; used by
	// tests that talk to a fake server with no "list models" endpoint.
	SkipHealthCheck bool

	// ProgressFunc is called with (completed, total) texts after each batch.
	ProgressFunc func(completed, total int)

	// InterBatchDelay pauses between batches. Zero by default; a caller
	// indexing a large repository on thermally-limited hardware (e.g. a
	// laptop GPU) can set this to spread load over time.
	InterBatchDelay time.Duration

	// TimeoutProgression scales the per-request timeout up as batch index
	// grows, so a long indexing run's later batches — when the local
	// inference backend may be running hotter and slower — get more room
	// before being treated as failed. 1.0 disables progression.
	TimeoutProgression float64

	// RetryTimeoutMultiplier scales the timeout upward on each retry
	// attempt within a single batch. 1.0 disables scaling.
	RetryTimeoutMultiplier float64
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:                   DefaultOllamaHost,
		Model:                  DefaultOllamaModel,
		FallbackModels:         FallbackOllamaModels,
		Dimensions:             0,
		BatchSize:              DefaultBatchSize,
		Timeout:                DefaultTimeout,
		ConnectTimeout:         OllamaConnectTimeout,
		MaxRetries:             DefaultMaxRetries,
		PoolSize:               OllamaPoolSize,
		InterBatchDelay:        DefaultInterBatchDelay,
		TimeoutProgression:     DefaultTimeoutProgression,
		RetryTimeoutMultiplier: DefaultRetryTimeoutMultiplier,
	}
}

// OllamaEmbedRequest is the Ollama /api/embed request body.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the Ollama /api/embed response body.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the Ollama /api/tags response body.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes one model Ollama has pulled locally.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
