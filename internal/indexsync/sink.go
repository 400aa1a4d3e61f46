// Package indexsync propagates committed mutations to a secondary
// consistent view (a search index or an event bus).
//
// The relational store is the source of truth; the secondary store is
// eventually consistent with it. Pushes after bulk operations are
// best-effort: failures are logged, never propagated, so they cannot roll
// back a committed transaction.
package indexsync

import "context"

// Document is the flat index document shape produced by the entity
// serializer: field values plus a _type tag and a _pk string.
type Document = map[string]any

// Sink is the downstream boundary: a search index or an event bus.
type Sink interface {
	Upsert(ctx context.Context, doc Document, refresh bool) error
	Remove(ctx context.Context, model, pk string, refresh bool) error
	BulkUpsert(ctx context.Context, docs []Document, refresh bool) error
	BulkRemove(ctx context.Context, model string, pks []string, refresh bool) error
}
