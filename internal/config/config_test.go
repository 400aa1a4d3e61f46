package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/pkg/schema"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultSerializerDepth, cfg.SerializerDepth)
	assert.True(t, cfg.StrictDefault)
	assert.False(t, cfg.IndexRefresh)
	assert.Empty(t, cfg.Models)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: app.db
http_addr: ":9090"
strict_default: false

models:
  - name: Story
    fields:
      - name: id
        type: int
        primary_key: true
      - name: title
        unique: true
      - name: profile_id
        type: int
        nullable: true
    relationships:
      - name: profile
        target: Profile
        foreign_key: profile_id
        nested: true
  - name: Profile
    nesting_depth: 2
    fields:
      - name: id
        type: int
        primary_key: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "app.db", cfg.Database)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.False(t, cfg.StrictDefault)
	require.Len(t, cfg.Models, 2)

	models, err := cfg.BuildModels()
	require.NoError(t, err)
	require.Len(t, models, 2)

	story := models[0]
	assert.Equal(t, "Story", story.Name)
	assert.Equal(t, DefaultSerializerDepth, story.NestingDepth)
	require.Len(t, story.Fields, 3)
	assert.Equal(t, schema.KindInt, story.Fields[0].Kind)
	assert.True(t, story.Fields[0].PrimaryKey)
	// An omitted type reads as string.
	assert.Equal(t, schema.KindString, story.Fields[1].Kind)
	assert.True(t, story.Fields[1].Unique)
	require.Len(t, story.Relationships, 1)
	assert.Equal(t, "Profile", story.Relationships[0].Target)
	assert.True(t, story.Relationships[0].Nested)

	// A declared depth wins over the inherited one.
	assert.Equal(t, 2, models[1].NestingDepth)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("RELSTORE_DATABASE", "env.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
}

func TestBuildModelsErrors(t *testing.T) {
	cfg := &Config{Models: []ModelDecl{{
		Name:   "Story",
		Fields: []FieldDecl{{Name: "id", Type: "uuid", PrimaryKey: true}},
	}}}
	_, err := cfg.BuildModels()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field type "uuid"`)

	cfg = &Config{Models: []ModelDecl{{}}}
	_, err = cfg.BuildModels()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a name")
}
