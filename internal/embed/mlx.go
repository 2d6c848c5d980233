package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	cserrors "github.com/llamaha/codesem/internal/errors"
)

// MLX model dimensions, keyed by the server's "small"/"medium"/"large" size
// names.
const (
	MLXSmallDimensions  = 1024 // Qwen3-Embedding-0.6B
	MLXMediumDimensions = 2560 // Qwen3-Embedding-4B
	MLXLargeDimensions  = 4096 // Qwen3-Embedding-8B
)

// MLX default configuration. MLX is the Apple Silicon fast-path backend: a
// small local HTTP server (outside this process) that runs the embedding
// model on the Neural Engine/GPU, reachable far faster than Ollama's
// general-purpose daemon.
const (
	DefaultMLXEndpoint    = "http://localhost:9659"
	DefaultMLXModel       = "small"
	DefaultMLXBaseTimeout = 60 * time.Second
	DefaultMLXMaxRetries  = 2
	DefaultMLXBatchSize   = 32
)

// MLXConfig holds configuration for the MLX embedder.
type MLXConfig struct {
	// Endpoint is the MLX server URL.
	Endpoint string

	// Model is the model size: "small" (0.6B), "medium" (4B), or "large" (8B).
	Model string

	// SkipHealthCheck skips the startup health check; used by tests.
	SkipHealthCheck bool
}

// DefaultMLXConfig returns default MLX configuration.
func DefaultMLXConfig() MLXConfig {
	return MLXConfig{
		Endpoint: DefaultMLXEndpoint,
		Model:    DefaultMLXModel,
	}
}

// MLXEmbedder generates embeddings by calling a local MLX server's
// /embed and /embed_batch endpoints.
type MLXEmbedder struct {
	client *http.Client
	config MLXConfig
	dims   int
	model  string

	mu           sync.RWMutex
	closed       bool
	batchIndex   int
	isFinalBatch bool
}

var _ Embedder = (*MLXEmbedder)(nil)

// NewMLXEmbedder dials a local MLX server and resolves the configured
// model's embedding dimension.
func NewMLXEmbedder(ctx context.Context, cfg MLXConfig) (*MLXEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMLXEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultMLXModel
	}

	// http.Client.Timeout is deliberately left unset; EmbedBatch applies a
	// per-attempt context timeout instead (getProgressiveTimeout).
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	e := &MLXEmbedder{
		client: client,
		config: cfg,
		model:  cfg.Model,
		dims:   dimensionsForModel(cfg.Model),
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := e.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("mlx health check failed: %w", err)
		}
		if dims, err := e.getDimensionsFromServer(checkCtx); err == nil {
			e.dims = dims
		}
	}

	slog.Debug("mlx_embedder_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", e.dims))

	return e, nil
}

func dimensionsForModel(model string) int {
	switch model {
	case "small":
		return MLXSmallDimensions
	case "medium":
		return MLXMediumDimensions
	default:
		return MLXLargeDimensions
	}
}

func (e *MLXEmbedder) healthCheck(ctx context.Context) error {
	var health mlxHealthResponse
	if err := e.getJSON(ctx, "/health", &health); err != nil {
		return fmt.Errorf("connect to mlx server: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("mlx server status: %s", health.Status)
	}
	return nil
}

func (e *MLXEmbedder) getDimensionsFromServer(ctx context.Context) (int, error) {
	var result mlxModelsResponse
	if err := e.getJSON(ctx, "/models", &result); err != nil {
		return 0, err
	}
	model, ok := result.Models[e.config.Model]
	if !ok {
		return 0, fmt.Errorf("model %s not found", e.config.Model)
	}
	return model.Dimensions, nil
}

func (e *MLXEmbedder) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (e *MLXEmbedder) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (status %d): %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Embed generates an embedding for a single text.
func (e *MLXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}

	var result mlxEmbedResponse
	if err := e.postJSON(ctx, "/embed", mlxEmbedRequest{Text: text, Model: e.config.Model}, &result); err != nil {
		return nil, err
	}

	embedding := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts, retrying transient
// failures with a timeout that grows with batch progress.
func (e *MLXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}

	cfg := cserrors.RetryConfig{
		MaxRetries:   DefaultMLXMaxRetries - 1,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}

	attempt := 0
	return cserrors.RetryWithResult(ctx, cfg, func() ([][]float32, error) {
		timeout := e.getProgressiveTimeout()
		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		slog.Debug("mlx_embedding_attempt",
			slog.Int("attempt", attempt+1),
			slog.Int("batch_index", e.batchIndex),
			slog.Duration("timeout", timeout),
			slog.Bool("final_batch", e.isFinalBatch),
			slog.Int("texts_count", len(texts)))

		embeddings, err := e.doEmbedBatch(timeoutCtx, texts)
		attempt++
		if err != nil {
			slog.Debug("mlx_embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Duration("timeout_used", timeout),
				slog.String("error", err.Error()))
		}
		return embeddings, err
	})
}

func (e *MLXEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *MLXEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result mlxEmbedBatchResponse
	if err := e.postJSON(ctx, "/embed_batch", mlxEmbedBatchRequest{Texts: texts, Model: e.config.Model}, &result); err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = make([]float32, len(emb))
		for j, v := range emb {
			embeddings[i][j] = float32(v)
		}
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MLXEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *MLXEmbedder) ModelName() string {
	return fmt.Sprintf("mlx-qwen3-embedding-%s", e.model)
}

// Available reports whether the MLX server answers a health check.
func (e *MLXEmbedder) Available(ctx context.Context) bool {
	if e.isClosed() {
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.healthCheck(checkCtx) == nil
}

// Close releases the embedder's HTTP connections.
func (e *MLXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if transport, ok := e.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// SetBatchIndex sets the batch counter that drives progressive timeout
// scaling, used when resuming an indexing run from a checkpoint.
func (e *MLXEmbedder) SetBatchIndex(idx int) {
	e.mu.Lock()
	e.batchIndex = idx
	e.mu.Unlock()
}

// SetFinalBatch marks whether the next batch is the last of a run, enabling
// the extra timeout boost in getProgressiveTimeout.
func (e *MLXEmbedder) SetFinalBatch(isFinal bool) {
	e.mu.Lock()
	e.isFinalBatch = isFinal
	e.mu.Unlock()
}

// getProgressiveTimeout scales the base timeout with batch progress (up to
// 2x every 2000 chunks processed) plus a 1.5x boost on the final batch,
// mirroring the same headroom-under-sustained-load rationale as the Ollama
// backend's timeout scaling.
func (e *MLXEmbedder) getProgressiveTimeout() time.Duration {
	e.mu.RLock()
	batchIdx := e.batchIndex
	isFinal := e.isFinalBatch
	e.mu.RUnlock()

	progression := 1.0 + float64(batchIdx*DefaultMLXBatchSize)/2000.0
	progression = min(progression, 2.0)

	finalBoost := 1.0
	if isFinal {
		finalBoost = 1.5
	}

	return time.Duration(float64(DefaultMLXBaseTimeout) * progression * finalBoost)
}

// MLX API request/response types.

type mlxHealthResponse struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
	LoadedModel string `json:"loaded_model"`
}

type mlxModelsResponse struct {
	Models map[string]mlxModelInfo `json:"models"`
}

type mlxModelInfo struct {
	Dimensions int `json:"dimensions"`
}

type mlxEmbedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type mlxEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type mlxEmbedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type mlxEmbedBatchResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
