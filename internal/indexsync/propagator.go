package indexsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Loader resolves records into index documents. Implemented by the record
// layer; lookups reload from the relational store so server-computed and
// processor-derived values are captured.
type Loader interface {
	// Document reloads and serializes one record.
	Document(ctx context.Context, model string, pk any) (Document, error)
	// ReferenceDocuments returns the serialized form of every record whose
	// nested representation embeds the given one, keyed by model name.
	ReferenceDocuments(ctx context.Context, model string, pk any) (map[string][]Document, error)
}

// Propagator consumes sync events and pushes the minimal set of refreshed
// documents downstream.
type Propagator struct {
	sink    Sink
	loader  Loader
	logger  *slog.Logger
	refresh bool
}

// Options configures a Propagator.
type Options struct {
	Logger *slog.Logger
	// Refresh asks the sink to make pushes immediately visible.
	Refresh bool
}

// NewPropagator returns a propagator pushing to sink.
func NewPropagator(sink Sink, loader Loader, opts Options) *Propagator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Propagator{sink: sink, loader: loader, logger: logger, refresh: opts.Refresh}
}

// Handle consumes one event. Singular operations propagate errors to the
// caller; bulk reindex paths are best-effort and only log.
func (p *Propagator) Handle(ctx context.Context, ev Event) error {
	p.logger.Debug("sync event", "id", ev.ID, "op", ev.Op.String(), "model", ev.Model)
	switch ev.Op {
	case OpCreated, OpUpdated:
		return p.upsertWithRefs(ctx, ev.Model, ev.PK)
	case OpDeleted:
		return p.removed(ctx, ev)
	case OpBulkUpdated:
		p.bulkUpdated(ctx, ev)
		return nil
	case OpBulkDeleted:
		p.bulkDeleted(ctx, ev)
		return nil
	}
	return fmt.Errorf("unknown sync op: %d", ev.Op)
}

// upsertWithRefs reloads the record, pushes it, then re-serializes and
// pushes every record that embeds it, since those siblings' serialized
// forms are now stale.
func (p *Propagator) upsertWithRefs(ctx context.Context, model string, pk any) error {
	doc, err := p.loader.Document(ctx, model, pk)
	if err != nil {
		return err
	}
	if err := p.sink.Upsert(ctx, doc, p.refresh); err != nil {
		return fmt.Errorf("failed to push %s upsert: %w", model, err)
	}

	refs, err := p.loader.ReferenceDocuments(ctx, model, pk)
	if err != nil {
		return err
	}
	return p.pushRefs(ctx, refs)
}

func (p *Propagator) removed(ctx context.Context, ev Event) error {
	pk := fmt.Sprintf("%v", ev.PK)
	if err := p.sink.Remove(ctx, ev.Model, pk, p.refresh); err != nil {
		return fmt.Errorf("failed to push %s removal: %w", ev.Model, err)
	}
	return p.pushRefs(ctx, ev.Refs)
}

// bulkUpdated reindexes each affected record once, not once per field
// change.
func (p *Propagator) bulkUpdated(ctx context.Context, ev Event) {
	for _, pk := range ev.PKs {
		if err := p.upsertWithRefs(ctx, ev.Model, pk); err != nil {
			p.logger.Error("bulk update reindex failed",
				"model", ev.Model, "pk", pk, "error", err)
		}
	}
}

// bulkDeleted pushes one removal per deleted row, then reindexes the
// records that embedded them. Errors are logged, not propagated, so index
// failures cannot roll back the committed transaction.
func (p *Propagator) bulkDeleted(ctx context.Context, ev Event) {
	pks := make([]string, 0, len(ev.PKs))
	for _, pk := range ev.PKs {
		pks = append(pks, fmt.Sprintf("%v", pk))
	}
	if err := p.sink.BulkRemove(ctx, ev.Model, pks, p.refresh); err != nil {
		p.logger.Error("bulk delete removal failed", "model", ev.Model, "error", err)
	}
	for _, pk := range pks {
		if err := p.pushRefs(ctx, ev.DeletedRefs[pk]); err != nil {
			p.logger.Error("bulk delete reindex failed",
				"model", ev.Model, "pk", pk, "error", err)
		}
	}
}

// pushRefs pushes reference documents grouped per model, one batch each.
func (p *Propagator) pushRefs(ctx context.Context, refs map[string][]Document) error {
	if len(refs) == 0 {
		return nil
	}
	models := make([]string, 0, len(refs))
	for model := range refs {
		models = append(models, model)
	}
	sort.Strings(models)

	g, gctx := errgroup.WithContext(ctx)
	for _, model := range models {
		model := model
		docs := refs[model]
		if len(docs) == 0 {
			continue
		}
		g.Go(func() error {
			if err := p.sink.BulkUpsert(gctx, docs, p.refresh); err != nil {
				return fmt.Errorf("failed to reindex %s references: %w", model, err)
			}
			return nil
		})
	}
	return g.Wait()
}
