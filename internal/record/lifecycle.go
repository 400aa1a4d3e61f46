package record

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/relstack-labs/relstore/internal/indexsync"
	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Repository owns the mutation lifecycle for one model on one session.
type Repository struct {
	access *Access
	model  *schema.Model
}

// Model returns the repository's model.
func (r *Repository) Model() *schema.Model {
	return r.model
}

// Create builds a record from input values, runs the save lifecycle, and
// returns the reloaded record.
func (r *Repository) Create(ctx context.Context, values schema.Values) (*Record, error) {
	rec, err := New(r.model, values)
	if err != nil {
		return nil, err
	}
	return r.Save(ctx, rec)
}

// Save persists a record: before-validation processors run on the changed
// fields, the row is flushed, the record is reloaded to materialize
// server-computed values, after-validation processors run, and one sync
// event is emitted. A persisted record with no real change is a no-op.
func (r *Repository) Save(ctx context.Context, rec *Record) (*Record, error) {
	wasNew := !rec.Persisted()
	now := time.Now().UTC()
	rec.bumpVersion(now)

	var changed []string
	if wasNew {
		changed = append([]string(nil), r.model.ColumnNames()...)
		sort.Strings(changed)
	} else {
		changed = rec.ChangedFields()
		if len(changed) == 0 {
			return rec, nil
		}
	}

	if err := r.applyProcessors(ctx, rec, changed, true); err != nil {
		return nil, err
	}
	if !wasNew {
		// Processors may have touched more fields.
		changed = rec.ChangedFields()
	}

	if wasNew {
		if err := r.insert(ctx, rec, now); err != nil {
			return nil, err
		}
	} else {
		if err := r.flushUpdate(ctx, rec, changed); err != nil {
			return nil, err
		}
	}

	if err := r.reload(ctx, rec); err != nil {
		return nil, err
	}
	if err := r.applyProcessors(ctx, rec, changed, false); err != nil {
		return nil, err
	}
	// After-validation processors may rewrite values past the reload; flush
	// those so the record returns clean and the store matches it.
	if post := rec.ChangedFields(); len(post) > 0 {
		if err := r.flushUpdate(ctx, rec, post); err != nil {
			return nil, err
		}
		rec.markCommitted()
	}

	op := indexsync.OpUpdated
	if wasNew {
		op = indexsync.OpCreated
	}
	ev := indexsync.NewEvent(op, r.model.Name)
	ev.PK = rec.PK()
	if err := r.access.emit(ctx, ev); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update assigns the given fields and runs the save lifecycle. The
// primary key is never mutable and is silently ignored. List and map
// fields accept the differential update grammar.
func (r *Repository) Update(ctx context.Context, rec *Record, values schema.Values) (*Record, error) {
	check := make([]string, 0, len(values))
	for k := range values {
		check = append(check, k)
	}
	if err := r.model.CheckFieldsAllowed(check); err != nil {
		return nil, err
	}

	iterables := r.model.IterableColumns()
	pk := r.model.PKField()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == pk {
			continue
		}
		if _, ok := iterables[key]; ok {
			if err := r.UpdateIterable(rec, key, values[key], true); err != nil {
				return nil, err
			}
			continue
		}
		if err := rec.Set(key, values[key]); err != nil {
			return nil, err
		}
	}
	return r.Save(ctx, rec)
}

// Delete removes the record and emits one removal event carrying the
// reference documents captured before the delete.
func (r *Repository) Delete(ctx context.Context, rec *Record) error {
	refs, err := r.access.referenceDocuments(ctx, rec)
	if err != nil {
		return err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.model.Table, r.model.PKField())
	if _, err := r.access.sess.ExecContext(ctx, sql, rec.PK()); err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.model.Name, err)
	}

	ev := indexsync.NewEvent(indexsync.OpDeleted, r.model.Name)
	ev.PK = rec.PKString()
	ev.Refs = refs
	return r.access.emit(ctx, ev)
}

// insert flushes a new record. A nil integer primary key is assigned by
// the store.
func (r *Repository) insert(ctx context.Context, rec *Record, now time.Time) error {
	rec.values[query.UpdatedAtColumn] = now

	var cols []string
	var args []any
	pkField := r.model.PK()
	for i := range r.model.Fields {
		f := &r.model.Fields[i]
		v, present := rec.values[f.Name]
		if f.PrimaryKey && v == nil {
			continue
		}
		if !present && !f.PrimaryKey {
			v = nil
		}
		enc, err := query.EncodeColumn(f, v)
		if err != nil {
			return err
		}
		cols = append(cols, f.Name)
		args = append(args, enc)
	}
	cols = append(cols, query.VersionColumn, query.UpdatedAtColumn)
	args = append(args, rec.Version(), now.Format(time.RFC3339Nano))

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.model.Table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	res, err := r.access.sess.ExecContext(ctx, sql, args...)
	if err != nil {
		return r.translateStorageError(err)
	}
	if rec.values[pkField.Name] == nil && pkField.Kind == schema.KindInt {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read assigned key: %w", err)
		}
		rec.values[pkField.Name] = id
	}
	return nil
}

// flushUpdate writes the changed columns and the bookkeeping columns.
func (r *Repository) flushUpdate(ctx context.Context, rec *Record, changed []string) error {
	var sets []string
	var args []any
	for _, name := range changed {
		f, ok := r.model.Field(name)
		if !ok {
			continue
		}
		enc, err := query.EncodeColumn(f, rec.values[name])
		if err != nil {
			return err
		}
		sets = append(sets, name+" = ?")
		args = append(args, enc)
	}
	sets = append(sets, query.VersionColumn+" = ?", query.UpdatedAtColumn+" = ?")
	args = append(args, rec.Version())
	if t, ok := rec.UpdatedAt(); ok {
		args = append(args, t.Format(time.RFC3339Nano))
	} else {
		args = append(args, nil)
	}
	args = append(args, rec.PK())

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		r.model.Table, strings.Join(sets, ", "), r.model.PKField())
	if _, err := r.access.sess.ExecContext(ctx, sql, args...); err != nil {
		return r.translateStorageError(err)
	}
	return nil
}

// reload replaces the record's values with the stored row, materializing
// server-computed defaults.
func (r *Repository) reload(ctx context.Context, rec *Record) error {
	fresh, err := LoadByPK(ctx, r.access.sess, r.model, rec.PK())
	if err != nil {
		return err
	}
	if fresh == nil {
		return fmt.Errorf("failed to reload %s %v after flush", r.model.Name, rec.PK())
	}
	rec.values = fresh.values
	rec.markCommitted()
	return nil
}

// applyProcessors runs the before- or after-validation processor chains of
// the named fields, storing results that differ from the current value.
func (r *Repository) applyProcessors(ctx context.Context, rec *Record, names []string, before bool) error {
	for _, name := range names {
		f, ok := r.model.Field(name)
		if !ok {
			continue
		}
		chain := f.AfterValidation
		if before {
			chain = f.BeforeValidation
		}
		if len(chain) == 0 {
			continue
		}
		value := rec.Get(name)
		for _, proc := range chain {
			processed, err := proc(schema.ProcessorContext{
				Value:  value,
				Field:  name,
				Record: rec.Values(),
			})
			if err != nil {
				return apierror.BadRequestWrap(err, "field %s", name)
			}
			value = processed
		}
		if !reflect.DeepEqual(value, rec.Get(name)) {
			if err := rec.Set(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// translateStorageError maps a uniqueness violation to a conflict error
// naming the model; any other storage error is re-raised unchanged.
func (r *Repository) translateStorageError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE") {
		r.access.logger.Debug("uniqueness violation",
			"model", r.model.Name, "unique_fields", r.model.UniqueFields())
		return apierror.Conflict(r.model.Name, err)
	}
	return err
}
