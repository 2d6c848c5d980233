// Package embed provides embedding functionality for the semantic index.
// This file implements the GPU-resident reference embedding provider: a
// dlopen bridge to a native inference shared library, loaded lazily and
// called under a single mutex the way a local accelerator forward pass
// must be serialized per device.
package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	// GPUModelID identifies the reference embedding model. The cache layout
	// follows the familiar <cache>/<namespace>/models/<id> convention used
	// by Hugging Face-style model hubs, with slashes in the id replaced by
	// dashes since they can't appear in a single path segment.
	GPUModelID = "Alibaba-NLP/gte-Qwen2-1.5B-instruct"

	// GPUEmbeddingDim is the output dimensionality of GPUModelID.
	GPUEmbeddingDim = 1536

	// GPUMaxSequenceLength caps the number of tokens fed to the model in a
	// single forward pass.
	GPUMaxSequenceLength = 8192

	// GPUDefaultBatchSize matches the reference implementation's default.
	GPUDefaultBatchSize = 32
)

// GPUDevice selects the compute device the native library should target.
type GPUDevice string

const (
	GPUDeviceAuto  GPUDevice = "auto"
	GPUDeviceCUDA  GPUDevice = "cuda"
	GPUDeviceMetal GPUDevice = "metal"
	GPUDeviceCPU   GPUDevice = "cpu"
)

// GPUQuantization selects the weight quantization the model was cached in.
type GPUQuantization string

const (
	GPUQuantizationNone GPUQuantization = "none"
	GPUQuantizationInt8 GPUQuantization = "int8"
)

// GPUConfig configures the GPU-resident provider, matching the
// gpu_embeddings settings block in config.yaml.
type GPUConfig struct {
	ModelPath     string
	Device        GPUDevice
	BatchSize     int
	Quantization  GPUQuantization
	LibraryPath   string // path to the native inference shared library
	CacheDir      string // override for DefaultModelsDir-style caching
}

// DefaultGPUConfig returns the gpu_embeddings block's documented defaults.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		Device:       GPUDeviceAuto,
		BatchSize:    GPUDefaultBatchSize,
		Quantization: GPUQuantizationInt8,
	}
}

// nativeForwardFunc is the function pointer signature bound via purego:
// it takes packed token ids, an attention mask, sequence count and length,
// and a destination buffer for the pooled, unnormalized embeddings.
type nativeForwardFunc func(tokenIDs *int32, attentionMask *int32, numSeqs int32, seqLen int32, out *float32) int32

// GPUEmbedder is the GPU-resident reference EmbeddingProvider. It loads a
// native inference library with purego, tokenizes with a bundled
// tokenizer.json vocabulary, and serializes every forward pass behind a
// single mutex — one GPUEmbedder per device, never shared across devices.
type GPUEmbedder struct {
	mu sync.Mutex

	cfg       GPUConfig
	modelPath string
	libHandle uintptr
	forward   nativeForwardFunc

	tokenizer *wordPieceTokenizer
	dims      int
	batchSize int
	closed    bool
}

var _ Embedder = (*GPUEmbedder)(nil)

// NewGPUEmbedder constructs a GPUEmbedder. It loads tokenizer.json from
// cfg.ModelPath (downloading the model into the cache first when ModelPath
// is empty) but defers opening the native library until the first Embed
// call.
func NewGPUEmbedder(ctx context.Context, cfg GPUConfig) (*GPUEmbedder, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = GPUDefaultBatchSize
	}
	if cfg.Device == "" {
		cfg.Device = GPUDeviceAuto
	}
	if cfg.Quantization == "" {
		cfg.Quantization = GPUQuantizationInt8
	}

	modelPath := cfg.ModelPath
	if modelPath == "" {
		cacheRoot := cfg.CacheDir
		if cacheRoot == "" {
			cacheRoot = DefaultModelsDir()
		}
		manager := NewModelManager(GPUModelCacheDir(cacheRoot, "codesem"))
		resolved, err := manager.EnsureModel(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("gpu embedder: download model: %w", err)
		}
		modelPath = resolved
	}

	e := &GPUEmbedder{
		cfg:       cfg,
		modelPath: modelPath,
		dims:      GPUEmbeddingDim,
		batchSize: cfg.BatchSize,
	}

	tok, err := loadWordPieceTokenizer(filepath.Join(modelPath, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("gpu embedder: load tokenizer: %w", err)
	}
	e.tokenizer = tok

	return e, nil
}

// GPUModelCacheDir returns the cache directory for GPUModelID, following the
// original implementation's <cache>/<namespace>/models/<id-with-/-as--> join
// order.
func GPUModelCacheDir(cacheRoot, namespace string) string {
	safeID := strings.ReplaceAll(GPUModelID, "/", "-")
	return filepath.Join(cacheRoot, namespace, "models", safeID)
}

// ensureLibrary lazily dlopens the native inference library and binds the
// forward-pass symbol. Guarded by e.mu from the caller.
func (e *GPUEmbedder) ensureLibrary() error {
	if e.libHandle != 0 {
		return nil
	}

	libPath := e.cfg.LibraryPath
	if libPath == "" {
		libPath = defaultNativeLibraryPath(e.resolveDevice())
	}

	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("gpu embedder: dlopen %s: %w", libPath, err)
	}
	e.libHandle = handle

	var forward nativeForwardFunc
	purego.RegisterLibFunc(&forward, handle, "codesem_embed_forward")
	e.forward = forward
	return nil
}

// resolveDevice turns "auto" into a concrete device based on GOOS/GOARCH:
// Metal on darwin/arm64, CUDA everywhere else. It only picks the library
// variant to load; it does not check that CUDA is present, and "auto" never
// resolves to CPU.
func (e *GPUEmbedder) resolveDevice() GPUDevice {
	if e.cfg.Device != GPUDeviceAuto {
		return e.cfg.Device
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return GPUDeviceMetal
	}
	return GPUDeviceCUDA
}

func defaultNativeLibraryPath(device GPUDevice) string {
	name := "libcodesem_embed"
	switch runtime.GOOS {
	case "darwin":
		return name + "_" + string(device) + ".dylib"
	case "windows":
		return name + "_" + string(device) + ".dll"
	default:
		return name + "_" + string(device) + ".so"
	}
}

// Embed implements Embedder.
func (e *GPUEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch implements Embedder. It tokenizes every input, right-pads to
// the batch's longest sequence (capped at GPUMaxSequenceLength), builds an
// attention mask, and performs one serialized forward pass through the
// native library, which returns one pooled row per input; each row is then
// L2-normalized here.
func (e *GPUEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.tokenizer == nil {
		return nil, fmt.Errorf("gpu embedder: no tokenizer loaded, ModelPath required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("gpu embedder: closed")
	}
	if err := e.ensureLibrary(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tokenized := make([][]int32, len(texts))
	maxLen := 0
	for i, t := range texts {
		ids := e.tokenizer.Encode(t)
		if len(ids) > GPUMaxSequenceLength {
			ids = ids[:GPUMaxSequenceLength]
		}
		tokenized[i] = ids
		if len(ids) > maxLen {
			maxLen = len(ids)
		}
	}
	if maxLen == 0 {
		maxLen = 1
	}

	numSeqs := len(texts)
	tokenIDs := make([]int32, numSeqs*maxLen)
	attentionMask := make([]int32, numSeqs*maxLen)
	for i, ids := range tokenized {
		base := i * maxLen
		for j, id := range ids {
			tokenIDs[base+j] = id
			attentionMask[base+j] = 1
		}
		// remaining positions stay zero: padding token id 0, mask 0.
	}

	out := make([]float32, numSeqs*e.dims)
	rc := e.forward(
		(*int32)(unsafe.Pointer(&tokenIDs[0])),
		(*int32)(unsafe.Pointer(&attentionMask[0])),
		int32(numSeqs),
		int32(maxLen),
		(*float32)(unsafe.Pointer(&out[0])),
	)
	if rc != 0 {
		return nil, fmt.Errorf("gpu embedder: native forward pass failed with code %d", rc)
	}

	embeddings := make([][]float32, numSeqs)
	for i := 0; i < numSeqs; i++ {
		row := out[i*e.dims : (i+1)*e.dims]
		embeddings[i] = normalizeVector(append([]float32(nil), row...))
	}
	return embeddings, nil
}

// Dimensions implements Embedder.
func (e *GPUEmbedder) Dimensions() int { return e.dims }

// ModelName implements Embedder.
func (e *GPUEmbedder) ModelName() string { return GPUModelID }

// Available implements Embedder. It reports readiness without performing a
// forward pass: the tokenizer must be loaded and the configured model
// directory must exist.
func (e *GPUEmbedder) Available(ctx context.Context) bool {
	if e.tokenizer == nil || e.modelPath == "" {
		return false
	}
	info, err := os.Stat(e.modelPath)
	return err == nil && info.IsDir()
}

// Close releases the native library handle.
func (e *GPUEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.libHandle != 0 {
		return purego.Dlclose(e.libHandle)
	}
	return nil
}

// SetBatchIndex and SetFinalBatch exist to satisfy Embedder; the GPU
// provider has no thermal-throttling timeout progression, unlike the Ollama
// embedder, so both are no-ops.
func (e *GPUEmbedder) SetBatchIndex(idx int)      {}
func (e *GPUEmbedder) SetFinalBatch(isFinal bool) {}

// wordPieceTokenizer is a minimal tokenizer.json reader: enough vocabulary
// lookup to turn text into token ids for the native forward pass. Full
// subword merge rules live in the native library; this only needs the
// vocabulary table to match its expectations.
type wordPieceTokenizer struct {
	vocab   map[string]int32
	unkID   int32
}

type tokenizerJSON struct {
	Model struct {
		Vocab map[string]int32 `json:"vocab"`
	} `json:"model"`
}

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc tokenizerJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	unk, ok := doc.Model.Vocab["[UNK]"]
	if !ok {
		unk = 0
	}
	return &wordPieceTokenizer{vocab: doc.Model.Vocab, unkID: unk}, nil
}

// Encode splits on whitespace and looks up each token, falling back to the
// unknown-token id. This intentionally does not implement full WordPiece
// subword splitting; the native library receives pre-tokenized ids and is
// responsible for any subword handling its weights require.
func (t *wordPieceTokenizer) Encode(text string) []int32 {
	fields := strings.Fields(text)
	ids := make([]int32, 0, len(fields))
	for _, f := range fields {
		if id, ok := t.vocab[f]; ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, t.unkID)
		}
	}
	return ids
}
