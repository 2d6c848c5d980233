package embed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelManager_ModelExists_FalseWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	m := NewModelManager(dir)
	assert.False(t, m.ModelExists())
}

func TestModelManager_ModelExists_TrueWhenAllFilesPresent(t *testing.T) {
	dir := t.TempDir()
	for _, name := range gpuModelFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644))
	}
	m := NewModelManager(dir)
	assert.True(t, m.ModelExists())
}

func TestModelManager_EnsureModel_SkipsDownloadWhenCached(t *testing.T) {
	dir := t.TempDir()
	for _, name := range gpuModelFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("cached"), 0o644))
	}

	m := NewModelManager(dir)
	path, err := m.EnsureModel(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, dir, path)
}

func TestModelManager_DeleteModel_RemovesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte("{}"), 0o644))

	m := NewModelManager(dir)
	require.NoError(t, m.DeleteModel())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFile_WritesContentAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.safetensors")
	err := downloadFile(context.Background(), srv.URL, dest, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFile_NonOKStatus_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.safetensors")
	err := downloadFile(context.Background(), srv.URL, dest, nil)
	assert.Error(t, err)
}

func TestDefaultModelsDir_UsesHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Contains(t, DefaultModelsDir(), home)
}
