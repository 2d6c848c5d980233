package embed

import (
	"context"
	"time"

	cserrors "github.com/llamaha/codesem/internal/errors"
)

// RetryConfig configures retry behavior for model downloads. It is a
// narrower view of errors.RetryConfig (no jitter — a model download is a
// single large transfer, not a thundering-herd-prone RPC).
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default retry configuration for a model
// file download: three retries, one second up to sixteen.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// DownloadWithRetry retries fn with exponential backoff, built on top of
// the same errors.Retry helper the vector store uses for transient Qdrant
// failures.
func DownloadWithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	return cserrors.Retry(ctx, cserrors.RetryConfig{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
	}, fn)
}
