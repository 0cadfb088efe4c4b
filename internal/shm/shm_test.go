package shm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAttachRoundTrip(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("tuplebox shared segment payload")

	require.NoError(t, Create(dir, "seg-a", payload))

	data, closer, err := Attach(dir, "seg-a", len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NoError(t, closer())
	_, statErr := os.Stat(filepath.Join(dir, "seg-a"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestZeroLengthSegment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Create(dir, "seg-empty", nil))
	data, closer, err := Attach(dir, "seg-empty", 0)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.NoError(t, closer())
}
