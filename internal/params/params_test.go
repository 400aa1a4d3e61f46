package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/pkg/apierror"
)

func TestNormalizeDirectives(t *testing.T) {
	d, residual, err := Normalize(map[string]any{
		"_limit":  "10",
		"_page":   "2",
		"_sort":   "-id,title",
		"_fields": "title,author",
		"author":  "alice",
	})
	require.NoError(t, err)

	require.NotNil(t, d.Limit)
	assert.Equal(t, int64(10), *d.Limit)
	require.NotNil(t, d.Page)
	assert.Equal(t, int64(2), *d.Page)
	assert.Nil(t, d.Start)
	assert.Equal(t, []string{"-id", "title"}, d.Sort)
	assert.Equal(t, []string{"title", "author"}, d.Fields)
	assert.True(t, d.Strict)
	assert.False(t, d.Count)

	assert.Equal(t, map[string]any{"author": "alice"}, residual)
}

func TestNormalizePresenceFlags(t *testing.T) {
	d, _, err := Normalize(map[string]any{
		"_count":           nil,
		"_explain":         nil,
		"__raise_on_empty": nil,
	})
	require.NoError(t, err)
	assert.True(t, d.Count)
	assert.True(t, d.Explain)
	assert.True(t, d.RaiseOnEmpty)
}

func TestNormalizeStrictOverride(t *testing.T) {
	d, _, err := Normalize(map[string]any{"__strict": "false"})
	require.NoError(t, err)
	assert.False(t, d.Strict)
}

func TestNormalizeInvalidLimit(t *testing.T) {
	_, _, err := Normalize(map[string]any{"_limit": "ten"})
	require.Error(t, err)
	assert.True(t, apierror.IsBadRequest(err))
}

func TestNormalizeListSuffixes(t *testing.T) {
	_, residual, err := Normalize(map[string]any{
		"tags__in":  "golang, sql",
		"tags__all": []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "sql"}, residual["tags__in"])
	assert.Equal(t, []string{"a", "b"}, residual["tags__all"])
}

func TestNormalizeBoolSuffix(t *testing.T) {
	_, residual, err := Normalize(map[string]any{"published__bool": "true"})
	require.NoError(t, err)
	assert.Equal(t, true, residual["published"])
	_, kept := residual["published__bool"]
	assert.False(t, kept)

	_, _, err = Normalize(map[string]any{"published__bool": "maybe"})
	require.Error(t, err)
	assert.True(t, apierror.IsBadRequest(err))
}

func TestNormalizeDropsLegacyKeys(t *testing.T) {
	_, residual, err := Normalize(map[string]any{
		"__privileged": "yes",
		"author":       "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"author": "alice"}, residual)
}

func TestNormalizeDropsAllSentinel(t *testing.T) {
	_, residual, err := Normalize(map[string]any{
		"author": "_all",
		"title":  "real",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "real"}, residual)
}

func TestSplitValue(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitValue("a, b"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitValue([]string{"a,b", "c"}))
	assert.Nil(t, SplitValue(nil))
	assert.Nil(t, SplitValue(""))
}
