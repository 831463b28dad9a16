package vectorindex

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotLoadRoundTripPreservesSearchResults(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx := NewFlat(3)
	require.NoError(t, idx.Add(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, 2, []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, 3, []float32{0, 0, 1}))

	require.NoError(t, Snapshot(idx, dir, "model-v1"))

	loaded, meta, err := Load(dir, 3, "model-v1")
	require.NoError(t, err)
	assert.Equal(t, 3, meta.VectorCount)
	assert.Equal(t, "model-v1", meta.EmbeddingModel)

	want, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsModelMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := NewFlat(2)
	require.NoError(t, Snapshot(idx, dir, "model-v1"))

	_, _, err := Load(dir, 2, "model-v2")
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := NewFlat(2)
	require.NoError(t, idx.Add(context.Background(), 1, []float32{1, 0}))
	require.NoError(t, Snapshot(idx, dir, "model-v1"))

	// Corrupt the payload in place.
	path := dir + "/" + vectorsFileName
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, _, err = Load(dir, 2, "model-v1")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}
