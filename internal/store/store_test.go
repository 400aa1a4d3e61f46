package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/pkg/schema"
)

func testModel(t *testing.T) *schema.Model {
	t.Helper()
	registry := schema.NewRegistry()
	m := &schema.Model{
		Name: "Story",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.KindInt, PrimaryKey: true},
			{Name: "title", Kind: schema.KindString, Unique: true},
			{Name: "views", Kind: schema.KindInt, Nullable: true},
			{Name: "rating", Kind: schema.KindFloat, Nullable: true},
			{Name: "published", Kind: schema.KindBool, Nullable: true},
			{Name: "tags", Kind: schema.KindList, Nullable: true},
		},
	}
	require.NoError(t, registry.Register(m))
	return m
}

func TestTableDDL(t *testing.T) {
	ddl := TableDDL(testModel(t))

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS story")
	assert.Contains(t, ddl, "id INTEGER PRIMARY KEY")
	assert.Contains(t, ddl, "title TEXT NOT NULL UNIQUE")
	assert.Contains(t, ddl, "views INTEGER")
	assert.Contains(t, ddl, "rating REAL")
	assert.Contains(t, ddl, "published INTEGER")
	assert.Contains(t, ddl, "tags TEXT")
	assert.Contains(t, ddl, "_version INTEGER NOT NULL DEFAULT 0")
	assert.Contains(t, ddl, "_updated_at TEXT")
}

func TestOpenAndInitSchema(t *testing.T) {
	st, err := Open(":memory:", Options{})
	require.NoError(t, err)
	defer st.Close()

	m := testModel(t)
	require.NoError(t, st.InitSchema(m))
	// Idempotent.
	require.NoError(t, st.InitSchema(m))

	sess := st.Session()
	_, err = sess.ExecContext(context.Background(),
		"INSERT INTO story (id, title) VALUES (1, 'hello')")
	require.NoError(t, err)

	var title string
	err = sess.QueryRowContext(context.Background(),
		"SELECT title FROM story WHERE id = ?", 1).Scan(&title)
	require.NoError(t, err)
	assert.Equal(t, "hello", title)
}

func TestTransactionalSession(t *testing.T) {
	st, err := Open(":memory:", Options{})
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.InitSchema(testModel(t)))

	ctx := context.Background()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO story (id, title) VALUES (1, 'kept')")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = st.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO story (id, title) VALUES (2, 'dropped')")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var n int
	err = st.Session().QueryRowContext(ctx, "SELECT COUNT(*) FROM story").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
