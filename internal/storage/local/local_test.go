package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopipe-systems/ecopipe/internal/storage"
)

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	location, err := s.Write(ctx, "raw/source_a/file.jsonl", []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, location)

	data, err := s.Read(ctx, "raw/source_a/file.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.Read(ctx, "raw/nope.jsonl")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListReturnsLogicalKeys(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.Write(ctx, "processed/a/year=2022/part.jsonl", []byte("1"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "processed/a/year=2023/part.jsonl", []byte("2"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "processed/b/part.jsonl", []byte("3"))
	require.NoError(t, err)

	keys, err := s.List(ctx, "processed/a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"processed/a/year=2022/part.jsonl",
		"processed/a/year=2023/part.jsonl",
	}, keys)

	// A prefix with no artifacts is not an error.
	keys, err = s.List(ctx, "curated")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestEmptyTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	type row struct {
		Name string `json:"name"`
	}

	// A zero-row write must still produce a listable artifact.
	_, err := storage.WriteTable(ctx, s, "raw/a/empty.jsonl", []row{})
	require.NoError(t, err)

	keys, err := s.List(ctx, "raw/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/a/empty.jsonl"}, keys)

	rows, err := storage.ReadTable[row](ctx, s, "raw/a/empty.jsonl")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
