package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitChanged(w *modelWatcher, d time.Duration) bool {
	select {
	case <-w.Changed():
		return true
	case <-time.After(d):
		return false
	}
}

func TestWatchModelSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "cube.obj")
	require.NoError(t, os.WriteFile(model, []byte("o cube\n"), 0o644))

	w, err := watchModel(model, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(model, []byte("o cube\nv 0 0 0\n"), 0o644))
	assert.True(t, waitChanged(w, 2*time.Second), "write to model should signal")
}

func TestWatchModelSignalsOnSiblingMaterial(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "cube.obj")
	require.NoError(t, os.WriteFile(model, []byte("o cube\n"), 0o644))

	w, err := watchModel(model, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.mtl"), []byte("newmtl red\n"), 0o644))
	assert.True(t, waitChanged(w, 2*time.Second), "material library shares the model stem")
}

func TestWatchModelIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "cube.obj")
	require.NoError(t, os.WriteFile(model, []byte("o cube\n"), 0o644))

	w, err := watchModel(model, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	assert.False(t, waitChanged(w, 200*time.Millisecond))
}

func TestWatchModelMissingDirectory(t *testing.T) {
	_, err := watchModel(filepath.Join(t.TempDir(), "missing", "cube.obj"), zap.NewNop())
	assert.Error(t, err)
}
