package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamaha/codesem/internal/chunk"
	"github.com/llamaha/codesem/internal/scanner"
	"github.com/llamaha/codesem/internal/vectorstore"
)

// fakeEmbedder returns a fixed-dimension zero vector regardless of input,
// enough to exercise the pipeline's fan-out and upsert wiring without a
// real model.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                     { return f.dims }
func (f *fakeEmbedder) ModelName() string                   { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool  { return true }
func (f *fakeEmbedder) Close() error                        { return nil }
func (f *fakeEmbedder) SetBatchIndex(idx int)                {}
func (f *fakeEmbedder) SetFinalBatch(isFinal bool)           {}

func writeTempProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(
		"package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), []byte(
		"package main\n\nfunc helper() int {\n\treturn 1\n}\n"), 0o644))
	return dir
}

func TestPipeline_Run_IndexesFiles(t *testing.T) {
	dir := writeTempProject(t)

	sc, err := scanner.New()
	require.NoError(t, err)

	store := vectorstore.NewMemoryStore()
	p := New(sc, chunk.NewCodeChunker(), &fakeEmbedder{dims: 4}, store, Config{
		Collection: "code",
		ProjectID:  "proj",
	}, nil)

	var last Progress
	err = p.Run(context.Background(), dir, func(pr Progress) { last = pr })
	require.NoError(t, err)

	assert.Equal(t, 2, last.FilesTotal)
	assert.Equal(t, 2, last.FilesProcessed)
	assert.Greater(t, last.ChunksIndexed, 0)
	assert.Empty(t, last.Errors)

	results, err := store.Search(context.Background(), "code", make([]float32, 4), vectorstore.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestPipeline_Run_SkipsAlreadyCheckpointedChunks(t *testing.T) {
	dir := writeTempProject(t)

	sc, err := scanner.New()
	require.NoError(t, err)

	store := vectorstore.NewMemoryStore()
	cp, err := OpenCheckpointStore("")
	require.NoError(t, err)
	defer cp.Close()

	p := New(sc, chunk.NewCodeChunker(), &fakeEmbedder{dims: 4}, store, Config{
		Collection: "code",
	}, nil).WithCheckpoint(cp)

	ctx := context.Background()
	require.NoError(t, p.Run(ctx, dir, nil))

	var second Progress
	require.NoError(t, p.Run(ctx, dir, func(pr Progress) { second = pr }))
	assert.Equal(t, 0, second.ChunksIndexed)
}
