package indexsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndexUpsertAndRemove(t *testing.T) {
	index := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, Document{"_type": "Story", "_pk": "1", "title": "alpha"}, false))
	require.NoError(t, index.Upsert(ctx, Document{"_type": "Story", "_pk": "2", "title": "beta"}, false))

	doc, ok := index.Get("Story", "1")
	require.True(t, ok)
	assert.Equal(t, "alpha", doc["title"])
	assert.Equal(t, 2, index.Len("Story"))

	require.NoError(t, index.Remove(ctx, "Story", "1", false))
	_, ok = index.Get("Story", "1")
	assert.False(t, ok)
	assert.Equal(t, 1, index.Len("Story"))

	assert.Equal(t, []string{
		"upsert Story 1",
		"upsert Story 2",
		"remove Story 1",
	}, index.Calls)
}

func TestMemoryIndexBulkOps(t *testing.T) {
	index := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, index.BulkUpsert(ctx, []Document{
		{"_type": "Story", "_pk": "1"},
		{"_type": "Story", "_pk": "2"},
		{"_type": "Profile", "_pk": "9"},
	}, false))
	assert.Equal(t, 2, index.Len("Story"))
	assert.Equal(t, 1, index.Len("Profile"))

	require.NoError(t, index.BulkRemove(ctx, "Story", []string{"1", "2"}, false))
	assert.Zero(t, index.Len("Story"))
	assert.Equal(t, 1, index.Len("Profile"))
}

func TestMemoryIndexRejectsUntaggedDocument(t *testing.T) {
	index := NewMemoryIndex()

	err := index.Upsert(context.Background(), Document{"title": "alpha"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing _type or _pk")
}
