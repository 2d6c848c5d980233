// Package embed provides embedding functionality for Codesem.
// This file implements downloading and caching the GPU-resident reference
// model's files (tokenizer and native weights) from Hugging Face.
package embed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// GPUModelDownloadTimeout bounds a single file download of the reference
	// model.
	GPUModelDownloadTimeout = 30 * time.Minute

	// gpuModelRepoBaseURL is the Hugging Face resolve URL prefix for
	// GPUModelID's files.
	gpuModelRepoBaseURL = "https://huggingface.co/" + GPUModelID + "/resolve/main/"
)

// gpuModelFiles lists the files EnsureModel fetches into the model
// directory: the tokenizer vocabulary and the quantized weights the native
// inference library expects.
var gpuModelFiles = []string{
	"tokenizer.json",
	"config.json",
	"model.safetensors",
}

// ModelManager downloads and caches the GPU-resident reference model's
// files under modelsDir, guarded by a FileLock so concurrent codesem
// processes never race on the same download.
type ModelManager struct {
	modelsDir string
	lock      *FileLock
	mu        sync.Mutex
}

// NewModelManager creates a model manager rooted at modelsDir, typically
// GPUModelCacheDir(DefaultModelsDir(), namespace).
func NewModelManager(modelsDir string) *ModelManager {
	return &ModelManager{modelsDir: modelsDir}
}

// ModelPath returns the directory EnsureModel populates; this is the value
// GPUConfig.ModelPath should be set to once EnsureModel succeeds.
func (m *ModelManager) ModelPath() string {
	return m.modelsDir
}

// ModelExists reports whether every file in gpuModelFiles is already cached.
func (m *ModelManager) ModelExists() bool {
	for _, name := range gpuModelFiles {
		info, err := os.Stat(filepath.Join(m.modelsDir, name))
		if err != nil || info.Size() == 0 {
			return false
		}
	}
	return true
}

// EnsureModel ensures every file the GPU embedder needs is present under
// ModelPath(), downloading any that are missing. Safe for concurrent callers
// across processes via a FileLock on modelsDir.
func (m *ModelManager) EnsureModel(ctx context.Context, progressFn func(downloaded, total int64)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ModelExists() {
		return m.modelsDir, nil
	}

	if err := os.MkdirAll(m.modelsDir, 0o755); err != nil {
		return "", fmt.Errorf("create models directory: %w", err)
	}

	m.lock = NewFileLock(m.modelsDir)
	if err := m.lock.Lock(); err != nil {
		return "", fmt.Errorf("acquire download lock: %w", err)
	}
	defer func() { _ = m.lock.Unlock() }()

	if m.ModelExists() {
		return m.modelsDir, nil
	}

	retryCfg := DefaultRetryConfig()
	for _, name := range gpuModelFiles {
		destPath := filepath.Join(m.modelsDir, name)
		if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
			continue
		}

		url := gpuModelRepoBaseURL + name
		err := DownloadWithRetry(ctx, retryCfg, func() error {
			return downloadFile(ctx, url, destPath, progressFn)
		})
		if err != nil {
			return "", fmt.Errorf("download %s: %w", name, err)
		}
	}

	return m.modelsDir, nil
}

// DeleteModel removes every cached file under ModelPath().
func (m *ModelManager) DeleteModel() error {
	return os.RemoveAll(m.modelsDir)
}

// DefaultModelsDir returns the default root directory model caches live
// under, following the common per-user dotfile cache convention.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".codesem", "models")
}

// downloadFile streams url to destPath via a temp file and atomic rename, so
// a failed or interrupted download never leaves a partial file at destPath.
func downloadFile(ctx context.Context, url, destPath string, progressFn func(downloaded, total int64)) error {
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "codesem/1.0")

	client := &http.Client{Timeout: GPUModelDownloadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer file.Close()

	totalSize := resp.ContentLength

	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write: %w", writeErr)
			}
			downloaded += int64(n)
			if progressFn != nil {
				progressFn(downloaded, totalSize)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read: %w", readErr)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(tmpPath, destPath)
}
