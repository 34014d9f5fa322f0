package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runContract(t *testing.T, repo SessionRepository) {
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, KeySessionID, "abc-123"))
	require.NoError(t, repo.Set(ctx, KeySystemInstruction, "Be brief."))

	v, ok, err := repo.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc-123", v)

	require.NoError(t, repo.Set(ctx, KeySessionID, "def-456"))
	v, _, _ = repo.Get(ctx, KeySessionID)
	assert.Equal(t, "def-456", v)

	require.NoError(t, repo.Clear(ctx, KeySystemInstruction))
	_, ok, err = repo.Get(ctx, KeySystemInstruction)
	require.NoError(t, err)
	assert.False(t, ok)

	// clearing a missing key is not an error
	require.NoError(t, repo.Clear(ctx, "nope"))
}

func TestMemorySessionRepository(t *testing.T) {
	runContract(t, NewMemorySessionRepository())
}

func TestFileSessionRepository(t *testing.T) {
	runContract(t, NewFileSessionRepository(filepath.Join(t.TempDir(), "nested", "session.json")))
}

func TestFileSessionRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	first := NewFileSessionRepository(path)
	require.NoError(t, first.Set(ctx, KeySessionID, "persisted"))

	second := NewFileSessionRepository(path)
	v, ok, err := second.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestFileSessionRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, _, err := NewFileSessionRepository(path).Get(context.Background(), KeySessionID)
	assert.Error(t, err)
}
