package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/pkg/schema"
)

func seedRelated(t *testing.T, access *Access) (profile, story1, story2 *Record) {
	t.Helper()
	ctx := context.Background()

	profiles, err := access.Repo("Profile")
	require.NoError(t, err)
	profile, err = profiles.Create(ctx, schema.Values{"email": "alice@example.com", "name": "Alice"})
	require.NoError(t, err)

	stories := storyRepo(t, access)
	story1, err = stories.Create(ctx, schema.Values{"title": "alpha", "profile_id": profile.PK()})
	require.NoError(t, err)
	story2, err = stories.Create(ctx, schema.Values{"title": "beta", "profile_id": profile.PK()})
	require.NoError(t, err)
	return profile, story1, story2
}

func TestToDictEmbedsNestedRelationship(t *testing.T) {
	access, _ := setupRecordTest(t)
	profile, story1, _ := seedRelated(t, access)
	ctx := context.Background()

	doc, err := access.Serializer().ToDict(ctx, story1)
	require.NoError(t, err)
	assert.Equal(t, "Story", doc["_type"])
	assert.Equal(t, "1", doc["_pk"])

	embedded, ok := doc["profile"].(map[string]any)
	require.True(t, ok, "profile should be embedded at depth 1")
	assert.Equal(t, "Profile", embedded["_type"])
	assert.Equal(t, "alice@example.com", embedded["email"])
	assert.Equal(t, profile.PK(), embedded["id"])
}

func TestToDictDepthZeroEmitsReferences(t *testing.T) {
	access, _ := setupRecordTest(t)
	profile, story1, _ := seedRelated(t, access)
	ctx := context.Background()

	doc, err := access.Serializer().ToDictDepth(ctx, story1, 0)
	require.NoError(t, err)

	// Depth exhausted: the relationship collapses to its key value.
	assert.Equal(t, profile.PK(), doc["profile"])
}

func TestToDictToManyWithoutNesting(t *testing.T) {
	access, _ := setupRecordTest(t)
	profile, story1, story2 := seedRelated(t, access)
	ctx := context.Background()

	// Profile.stories is not declared nested, so even the default depth
	// emits a key list, ordered by the target's primary key.
	doc, err := access.Serializer().ToDict(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, []any{story1.PK(), story2.PK()}, doc["stories"])
}

func TestToDictNilForeignKey(t *testing.T) {
	access, _ := setupRecordTest(t)
	stories := storyRepo(t, access)
	rec, err := stories.Create(context.Background(), schema.Values{"title": "loner"})
	require.NoError(t, err)

	doc, err := access.Serializer().ToDict(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, doc["profile"])
}

func TestLoadByPK(t *testing.T) {
	access, _ := setupRecordTest(t)
	_, story1, _ := seedRelated(t, access)
	ctx := context.Background()

	m := story1.Model()
	rec, err := LoadByPK(ctx, access.Session(), m, "1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alpha", rec.Get("title"))

	rec, err = LoadByPK(ctx, access.Session(), m, 404)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
