package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

func seedStories(t *testing.T, repo *Repository) []*Record {
	t.Helper()
	ctx := context.Background()
	var recs []*Record
	for _, v := range []schema.Values{
		{"title": "alpha", "author": "alice"},
		{"title": "beta", "author": "bob"},
		{"title": "gamma", "author": "alice"},
	} {
		rec, err := repo.Create(ctx, v)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

func TestGetResource(t *testing.T) {
	access, _ := setupRecordTest(t)
	repo := storyRepo(t, access)
	seedStories(t, repo)
	ctx := context.Background()

	rec, err := repo.GetResource(ctx, map[string]any{"id": "2"})
	require.NoError(t, err)
	assert.Equal(t, "beta", rec.Get("title"))

	// Missing rows raise not-found by default.
	_, err = repo.GetResource(ctx, map[string]any{"id": "404"})
	require.Error(t, err)
	assert.True(t, apierror.IsNotFound(err))

	// A key that cannot match the column type also reads as not-found.
	_, err = repo.GetResource(ctx, map[string]any{"id": "abc"})
	require.Error(t, err)
	assert.True(t, apierror.IsNotFound(err))
}

func TestGetReturnsNilWhenAbsent(t *testing.T) {
	access, _ := setupRecordTest(t)
	repo := storyRepo(t, access)
	seedStories(t, repo)

	rec, err := repo.Get(context.Background(), map[string]any{"author": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetOrCreate(t *testing.T) {
	access, _ := setupRecordTest(t)
	repo := storyRepo(t, access)
	seedStories(t, repo)
	ctx := context.Background()

	rec, created, err := repo.GetOrCreate(ctx, map[string]any{"title": "beta"}, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2), rec.PK())

	rec, created, err = repo.GetOrCreate(ctx,
		map[string]any{"title": "delta"},
		schema.Values{"author": "carol"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "delta", rec.Get("title"))
	assert.Equal(t, "carol", rec.Get("author"))

	_, _, err = repo.GetOrCreate(ctx, map[string]any{"author": "alice"}, nil)
	require.Error(t, err)
	assert.True(t, apierror.IsBadRequest(err))
}

func TestGetByIDs(t *testing.T) {
	access, _ := setupRecordTest(t)
	repo := storyRepo(t, access)
	seedStories(t, repo)

	recs, err := repo.GetByIDs(context.Background(),
		[]any{int64(1), int64(3)}, map[string]any{"_sort": "id"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "alpha", recs[0].Get("title"))
	assert.Equal(t, "gamma", recs[1].Get("title"))
}

func TestFilterObjects(t *testing.T) {
	access, _ := setupRecordTest(t)
	repo := storyRepo(t, access)
	all := seedStories(t, repo)
	ctx := context.Background()

	matched, err := repo.FilterObjects(ctx, all, false, map[string]any{"author": "alice"})
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	first, err := repo.FilterObjects(ctx, all, true, map[string]any{"author": "bob"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "beta", first[0].Get("title"))

	_, err = repo.FilterObjects(ctx, all, true, map[string]any{"author": "nobody"})
	require.Error(t, err)
	assert.True(t, apierror.IsNotFound(err))
}

func TestRepositoryGetCollection(t *testing.T) {
	access, _ := setupRecordTest(t)
	repo := storyRepo(t, access)
	seedStories(t, repo)

	res, err := repo.GetCollection(context.Background(), map[string]any{
		"author": "alice",
		"_limit": "10",
		"_sort":  "-id",
	})
	require.NoError(t, err)

	recs := repo.Records(res)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].PK())
	assert.True(t, recs[0].Persisted())
}
