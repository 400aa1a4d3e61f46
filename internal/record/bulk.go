package record

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/relstack-labs/relstore/internal/indexsync"
	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// BulkDelete removes every record matched by q with one set-based
// statement and returns the number of rows deleted.
//
// A query carrying limit/offset/ordering cannot be deleted set-based;
// such a query is first re-read by primary keys only and the delete is
// re-issued against exactly that identifier set. Exactly one sync removal
// is produced per deleted row; sync errors are logged, never propagated,
// since the relational delete has already committed.
func (r *Repository) BulkDelete(ctx context.Context, q *query.Query) (int64, error) {
	q, err := r.planBulk(ctx, q)
	if err != nil {
		return 0, err
	}

	pks, err := q.PKs(ctx)
	if err != nil {
		return 0, err
	}
	if len(pks) == 0 {
		return 0, nil
	}

	// Capture reference documents before the rows disappear.
	refs := make(map[string]map[string][]indexsync.Document, len(pks))
	for _, pk := range pks {
		docs, err := r.access.ReferenceDocuments(ctx, r.model.Name, pk)
		if err != nil {
			return 0, err
		}
		refs[fmt.Sprintf("%v", pk)] = docs
	}

	sql, args, err := q.DeleteSQL()
	if err != nil {
		return 0, err
	}
	res, err := r.access.sess.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete %s: %w", r.model.Name, err)
	}
	count, _ := res.RowsAffected()

	ev := indexsync.NewEvent(indexsync.OpBulkDeleted, r.model.Name)
	ev.PKs = pks
	ev.DeletedRefs = refs
	if err := r.access.emit(ctx, ev); err != nil {
		r.access.logger.Error("bulk delete sync failed", "model", r.model.Name, "error", err)
	}
	return count, nil
}

// BulkUpdate applies the given field values to every record matched by q
// with one set-based statement and returns the number of rows updated.
// Version and modification bookkeeping advance once per row. The
// embedding-sibling reindex runs once per affected record.
func (r *Repository) BulkUpdate(ctx context.Context, q *query.Query, values schema.Values) (int64, error) {
	q, err := r.planBulk(ctx, q)
	if err != nil {
		return 0, err
	}

	pks, err := q.PKs(ctx)
	if err != nil {
		return 0, err
	}
	if len(pks) == 0 {
		return 0, nil
	}

	sets, setArgs, err := r.bulkSets(values)
	if err != nil {
		return 0, err
	}

	sql, args, err := q.UpdateSQL(sets, setArgs)
	if err != nil {
		return 0, err
	}
	res, err := r.access.sess.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, r.translateStorageError(err)
	}
	count, _ := res.RowsAffected()

	ev := indexsync.NewEvent(indexsync.OpBulkUpdated, r.model.Name)
	ev.PKs = pks
	if err := r.access.emit(ctx, ev); err != nil {
		r.access.logger.Error("bulk update sync failed", "model", r.model.Name, "error", err)
	}
	return count, nil
}

// planBulk returns a query safe for set-based mutation. When q carries
// incompatible modifiers, the matching primary keys are selected first
// and a plain identifier query replaces it.
func (r *Repository) planBulk(ctx context.Context, q *query.Query) (*query.Query, error) {
	if !q.HasModifiers() {
		return q, nil
	}
	pks, err := q.PKs(ctx)
	if err != nil {
		return nil, err
	}
	return query.New(r.access.sess, r.model).WhereIn(r.model.PKField(), pks), nil
}

// bulkSets renders the SET fragments for a bulk update, always advancing
// the bookkeeping columns. The primary key is never mutable.
func (r *Repository) bulkSets(values schema.Values) ([]string, []any, error) {
	check := make([]string, 0, len(values))
	for k := range values {
		check = append(check, k)
	}
	if err := r.model.CheckFieldsAllowed(check); err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	var sets []string
	var args []any
	for _, name := range names {
		if name == r.model.PKField() {
			continue
		}
		f, ok := r.model.Field(name)
		if !ok {
			continue
		}
		coerced, err := schema.Coerce(f, values[name])
		if err != nil {
			return nil, nil, err
		}
		enc, err := query.EncodeColumn(f, coerced)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, name+" = ?")
		args = append(args, enc)
	}
	sets = append(sets,
		query.VersionColumn+" = "+query.VersionColumn+" + 1",
		query.UpdatedAtColumn+" = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	return sets, args, nil
}
