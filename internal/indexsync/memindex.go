package indexsync

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is an in-process Sink used by tests and the demo server. It
// keeps documents per model keyed by _pk and records every call for
// inspection.
type MemoryIndex struct {
	mu   sync.Mutex
	docs map[string]map[string]Document

	// Calls records sink operations in order, one entry per document:
	// "upsert Model pk" / "remove Model pk".
	Calls []string
}

// NewMemoryIndex returns an empty in-memory sink.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]map[string]Document)}
}

func (m *MemoryIndex) Upsert(_ context.Context, doc Document, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(doc)
}

func (m *MemoryIndex) BulkUpsert(_ context.Context, docs []Document, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if err := m.upsertLocked(doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryIndex) upsertLocked(doc Document) error {
	model, _ := doc["_type"].(string)
	pk, _ := doc["_pk"].(string)
	if model == "" || pk == "" {
		return fmt.Errorf("document missing _type or _pk: %v", doc)
	}
	if m.docs[model] == nil {
		m.docs[model] = make(map[string]Document)
	}
	m.docs[model][pk] = doc
	m.Calls = append(m.Calls, fmt.Sprintf("upsert %s %s", model, pk))
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, model, pk string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(model, pk)
	return nil
}

func (m *MemoryIndex) BulkRemove(_ context.Context, model string, pks []string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pk := range pks {
		m.removeLocked(model, pk)
	}
	return nil
}

func (m *MemoryIndex) removeLocked(model, pk string) {
	if m.docs[model] != nil {
		delete(m.docs[model], pk)
	}
	m.Calls = append(m.Calls, fmt.Sprintf("remove %s %s", model, pk))
}

// Get returns the indexed document for a model/pk pair.
func (m *MemoryIndex) Get(model, pk string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[model][pk]
	return doc, ok
}

// Len returns the number of documents indexed for a model.
func (m *MemoryIndex) Len(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[model])
}

// CallsMatching returns the recorded calls with the given prefix.
func (m *MemoryIndex) CallsMatching(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}

var _ Sink = (*MemoryIndex)(nil)
