package record

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/relstack-labs/relstore/internal/indexsync"
	"github.com/relstack-labs/relstore/internal/store"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Emitter consumes sync events at the end of lifecycle operations: either
// a propagator dispatching synchronously or an outbox queueing until
// commit.
type Emitter interface {
	Handle(ctx context.Context, ev indexsync.Event) error
}

// Access is the generic record-access component: it binds a session, the
// schema registry, and the sync emitter, and hands out per-model
// repositories. It implements indexsync.Loader so the propagator can
// reload and re-serialize records.
type Access struct {
	sess       *store.Session
	registry   *schema.Registry
	serializer *Serializer
	emitter    Emitter
	logger     *slog.Logger
}

// Options configures an Access.
type Options struct {
	Logger *slog.Logger
}

// NewAccess returns an Access over the session and registry. The sync
// emitter is attached separately with SetEmitter, since the propagator
// itself needs the Access as its loader.
func NewAccess(sess *store.Session, registry *schema.Registry, opts Options) *Access {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Access{
		sess:       sess,
		registry:   registry,
		serializer: NewSerializer(sess, registry),
		logger:     logger,
	}
}

// SetEmitter attaches the sync emitter. A nil emitter disables sync
// propagation.
func (a *Access) SetEmitter(e Emitter) {
	a.emitter = e
}

// Serializer returns the entity serializer.
func (a *Access) Serializer() *Serializer {
	return a.serializer
}

// Session returns the bound session.
func (a *Access) Session() *store.Session {
	return a.sess
}

// Registry returns the schema registry.
func (a *Access) Registry() *schema.Registry {
	return a.registry
}

// Repo returns the repository for a registered model.
func (a *Access) Repo(model string) (*Repository, error) {
	m, err := a.registry.Get(model)
	if err != nil {
		return nil, err
	}
	return &Repository{access: a, model: m}, nil
}

// MustRepo returns the repository for a model known to be registered.
func (a *Access) MustRepo(m *schema.Model) *Repository {
	return &Repository{access: a, model: m}
}

// emit dispatches a sync event if an emitter is attached.
func (a *Access) emit(ctx context.Context, ev indexsync.Event) error {
	if a.emitter == nil {
		return nil
	}
	return a.emitter.Handle(ctx, ev)
}

// Document reloads one record and serializes it. Part of the
// indexsync.Loader contract.
func (a *Access) Document(ctx context.Context, model string, pk any) (indexsync.Document, error) {
	m, err := a.registry.Get(model)
	if err != nil {
		return nil, err
	}
	rec, err := LoadByPK(ctx, a.sess, m, pk)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("'%s(%v)' resource not found", model, pk)
	}
	return a.serializer.ToDict(ctx, rec)
}

// ReferenceDocuments serializes every record whose nested representation
// embeds the given one: the targets of the record's to-one relationships.
// To-many sides are skipped; their values are already reference lists.
// Part of the indexsync.Loader contract.
func (a *Access) ReferenceDocuments(ctx context.Context, model string, pk any) (map[string][]indexsync.Document, error) {
	m, err := a.registry.Get(model)
	if err != nil {
		return nil, err
	}
	rec, err := LoadByPK(ctx, a.sess, m, pk)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return a.referenceDocuments(ctx, rec)
}

func (a *Access) referenceDocuments(ctx context.Context, rec *Record) (map[string][]indexsync.Document, error) {
	refs := make(map[string][]indexsync.Document)
	m := rec.Model()
	for i := range m.Relationships {
		rel := &m.Relationships[i]
		if rel.ToMany {
			continue
		}
		fk := rec.Get(rel.ForeignKey)
		if fk == nil {
			continue
		}
		target, err := a.registry.Get(rel.Target)
		if err != nil {
			return nil, err
		}
		related, err := LoadByPK(ctx, a.sess, target, fk)
		if err != nil {
			return nil, err
		}
		if related == nil {
			continue
		}
		doc, err := a.serializer.ToDict(ctx, related)
		if err != nil {
			return nil, err
		}
		refs[target.Name] = append(refs[target.Name], doc)
	}
	return refs, nil
}

var _ indexsync.Loader = (*Access)(nil)
