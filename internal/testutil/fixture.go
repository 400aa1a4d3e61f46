package testutil

import (
	"testing"

	"github.com/relstack-labs/relstore/internal/store"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// StoryModel returns the model used by most tests: every field kind, a
// unique column, and a nested to-one relationship to Profile.
func StoryModel() *schema.Model {
	return &schema.Model{
		Name: "Story",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.KindInt, PrimaryKey: true},
			{Name: "title", Kind: schema.KindString, Unique: true},
			{Name: "author", Kind: schema.KindString, Nullable: true},
			{Name: "views", Kind: schema.KindInt, Nullable: true, Default: int64(0)},
			{Name: "rating", Kind: schema.KindFloat, Nullable: true},
			{Name: "published", Kind: schema.KindBool, Nullable: true},
			{Name: "tags", Kind: schema.KindList, Nullable: true},
			{Name: "meta", Kind: schema.KindMap, Nullable: true},
			{Name: "profile_id", Kind: schema.KindInt, Nullable: true},
		},
		Relationships: []schema.Relationship{
			{
				Name:       "profile",
				Target:     "Profile",
				ForeignKey: "profile_id",
				Nested:     true,
				Backref:    "stories",
			},
		},
	}
}

// ProfileModel returns the relationship target of StoryModel.
func ProfileModel() *schema.Model {
	return &schema.Model{
		Name: "Profile",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.KindInt, PrimaryKey: true},
			{Name: "email", Kind: schema.KindString, Unique: true},
			{Name: "name", Kind: schema.KindString, Nullable: true},
		},
		Relationships: []schema.Relationship{
			{
				Name:       "stories",
				Target:     "Story",
				ToMany:     true,
				ForeignKey: "profile_id",
				Backref:    "profile",
			},
		},
	}
}

// NewRegistry returns a registry with the fixture models registered.
func NewRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	for _, m := range []*schema.Model{StoryModel(), ProfileModel()} {
		if err := registry.Register(m); err != nil {
			t.Fatalf("register %s: %v", m.Name, err)
		}
	}
	return registry
}

// OpenStore opens an in-memory store with the fixture tables created.
func OpenStore(t testing.TB) (*store.Store, *schema.Registry) {
	t.Helper()
	registry := NewRegistry(t)

	st, err := store.Open(":memory:", store.Options{Logger: NewTestLogger(t)})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(registry.All()...); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st, registry
}
