package indexsync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relstack-labs/relstore/internal/testutil"
)

// stubLoader serves canned documents keyed by "Model/pk" and can be told
// to fail for specific records.
type stubLoader struct {
	docs map[string]Document
	refs map[string]map[string][]Document
	fail map[string]error
}

func loaderKey(model string, pk any) string {
	return fmt.Sprintf("%s/%v", model, pk)
}

func (s *stubLoader) Document(_ context.Context, model string, pk any) (Document, error) {
	if err := s.fail[loaderKey(model, pk)]; err != nil {
		return nil, err
	}
	if doc, ok := s.docs[loaderKey(model, pk)]; ok {
		return doc, nil
	}
	return Document{"_type": model, "_pk": fmt.Sprintf("%v", pk)}, nil
}

func (s *stubLoader) ReferenceDocuments(_ context.Context, model string, pk any) (map[string][]Document, error) {
	return s.refs[loaderKey(model, pk)], nil
}

func setupPropagator(t *testing.T, loader *stubLoader) (*Propagator, *MemoryIndex) {
	t.Helper()
	if loader.fail == nil {
		loader.fail = make(map[string]error)
	}
	index := NewMemoryIndex()
	prop := NewPropagator(index, loader, Options{Logger: testutil.NewTestLogger(t)})
	return prop, index
}

func TestPropagatorCreatedPushesRecordAndReferences(t *testing.T) {
	loader := &stubLoader{
		refs: map[string]map[string][]Document{
			"Story/1": {
				"Profile": {{"_type": "Profile", "_pk": "9", "name": "Alice"}},
			},
		},
	}
	prop, index := setupPropagator(t, loader)

	ev := NewEvent(OpCreated, "Story")
	ev.PK = int64(1)
	require.NoError(t, prop.Handle(context.Background(), ev))

	_, ok := index.Get("Story", "1")
	assert.True(t, ok)
	doc, ok := index.Get("Profile", "9")
	require.True(t, ok)
	assert.Equal(t, "Alice", doc["name"])
}

func TestPropagatorDeletedUsesCapturedReferences(t *testing.T) {
	prop, index := setupPropagator(t, &stubLoader{})
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, Document{"_type": "Story", "_pk": "1"}, false))

	// The record is gone from the store, so its embedders travel on the
	// event instead of being reloaded.
	ev := NewEvent(OpDeleted, "Story")
	ev.PK = int64(1)
	ev.Refs = map[string][]Document{
		"Profile": {{"_type": "Profile", "_pk": "9"}},
	}
	require.NoError(t, prop.Handle(ctx, ev))

	_, ok := index.Get("Story", "1")
	assert.False(t, ok)
	_, ok = index.Get("Profile", "9")
	assert.True(t, ok)
}

func TestPropagatorSingularFailurePropagates(t *testing.T) {
	loader := &stubLoader{
		fail: map[string]error{"Story/1": fmt.Errorf("record vanished")},
	}
	prop, _ := setupPropagator(t, loader)

	ev := NewEvent(OpUpdated, "Story")
	ev.PK = int64(1)
	err := prop.Handle(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record vanished")
}

func TestPropagatorBulkUpdatedIsBestEffort(t *testing.T) {
	loader := &stubLoader{
		fail: map[string]error{"Story/2": fmt.Errorf("record vanished")},
	}
	prop, index := setupPropagator(t, loader)

	ev := NewEvent(OpBulkUpdated, "Story")
	ev.PKs = []any{int64(1), int64(2), int64(3)}
	require.NoError(t, prop.Handle(context.Background(), ev))

	// The failing record is logged and skipped; the rest still land.
	_, ok := index.Get("Story", "1")
	assert.True(t, ok)
	_, ok = index.Get("Story", "2")
	assert.False(t, ok)
	_, ok = index.Get("Story", "3")
	assert.True(t, ok)
}

func TestPropagatorBulkDeleted(t *testing.T) {
	prop, index := setupPropagator(t, &stubLoader{})
	ctx := context.Background()

	require.NoError(t, index.BulkUpsert(ctx, []Document{
		{"_type": "Story", "_pk": "1"},
		{"_type": "Story", "_pk": "2"},
	}, false))

	ev := NewEvent(OpBulkDeleted, "Story")
	ev.PKs = []any{int64(1), int64(2)}
	ev.DeletedRefs = map[string]map[string][]Document{
		"1": {"Profile": {{"_type": "Profile", "_pk": "9"}}},
		"2": nil,
	}
	require.NoError(t, prop.Handle(ctx, ev))

	assert.Zero(t, index.Len("Story"))
	_, ok := index.Get("Profile", "9")
	assert.True(t, ok)
	assert.Len(t, index.CallsMatching("remove Story"), 2)
}

func TestPropagatorRejectsUnknownOp(t *testing.T) {
	prop, _ := setupPropagator(t, &stubLoader{})

	err := prop.Handle(context.Background(), Event{ID: "x", Op: Op(99), Model: "Story"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sync op")
}
