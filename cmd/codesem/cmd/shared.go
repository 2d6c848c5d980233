package cmd

import (
	"context"
	"net/url"
	"strconv"

	"github.com/llamaha/codesem/internal/config"
	"github.com/llamaha/codesem/internal/embed"
	"github.com/llamaha/codesem/internal/errors"
	"github.com/llamaha/codesem/internal/vectorstore"
)

// buildStore returns the vector store backing an index/search run. Qdrant is
// only used when GPU embeddings are enabled; otherwise codesem falls back to
// an in-memory store so index/search work offline with no external service.
func buildStore(useQdrant bool, qdrantURL string) (vectorstore.Store, error) {
	if !useQdrant || qdrantURL == "" {
		return vectorstore.NewMemoryStore(), nil
	}

	u, err := url.Parse(qdrantURL)
	if err != nil {
		return nil, errors.ConfigError("invalid gpu_embeddings.qdrant_url", err)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:   host,
		Port:   port,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, errors.NetworkError("connect to qdrant", err)
	}
	return store, nil
}

// buildEmbedder selects an embedding provider from cfg: the GPU-resident
// model when gpu_embeddings.enabled is set, a static hash embedder
// otherwise (so `codesem index`/`search` work offline with no external
// service by default).
func buildEmbedder(ctx context.Context, cfg *config.Config, backend string) (embed.Embedder, error) {
	if backend != "" {
		return embed.NewEmbedder(ctx, embed.ParseProvider(backend), "")
	}

	if cfg.GPUEmbedding.Enabled {
		embed.SetGPUConfig(embed.GPUConfig{
			ModelPath:    cfg.GPUEmbedding.ModelPath,
			Device:       embed.GPUDevice(cfg.GPUEmbedding.Device),
			BatchSize:    cfg.GPUEmbedding.BatchSize,
			Quantization: embed.GPUQuantization(cfg.GPUEmbedding.Quantization),
		})
		return embed.NewEmbedder(ctx, embed.ProviderGPU, "")
	}

	return embed.NewEmbedder(ctx, embed.ProviderStatic, "")
}
