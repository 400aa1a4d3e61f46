// Package record implements the persisted entity layer: the record type
// with version bookkeeping, the depth-bounded entity serializer, the
// mutation lifecycle (singular and bulk), and the finders built on the
// collection query compiler.
package record

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Record is one persisted entity instance. It is exclusively owned by the
// session that loaded or created it until committed.
type Record struct {
	model  *schema.Model
	values schema.Values

	// committed is the last persisted state, used to diff proposed
	// changes. Nil until the record is first persisted.
	committed schema.Values
	// dirty is set by any Set call; one of the three conditions of the
	// modified check.
	dirty bool
}

// New returns an unpersisted record with the given field values coerced to
// their declared kinds. Declared defaults fill missing fields.
func New(m *schema.Model, values schema.Values) (*Record, error) {
	rec := &Record{model: m, values: make(schema.Values)}
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Default != nil {
			rec.values[f.Name] = f.Default
		}
	}
	for name, v := range values {
		if _, ok := m.Field(name); !ok {
			continue
		}
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	rec.dirty = false
	return rec, nil
}

// Loaded wraps a scanned row as a persisted, clean record.
func Loaded(m *schema.Model, values schema.Values) *Record {
	rec := &Record{model: m, values: values}
	rec.markCommitted()
	return rec
}

// Model returns the record's model.
func (r *Record) Model() *schema.Model {
	return r.model
}

// PK returns the primary key value.
func (r *Record) PK() any {
	return r.values[r.model.PKField()]
}

// PKString returns the string form of the primary key, the record's
// public key.
func (r *Record) PKString() string {
	return fmt.Sprintf("%v", r.PK())
}

// Get returns the named column value.
func (r *Record) Get(name string) any {
	a, ok := r.model.Accessor(name)
	if !ok {
		return nil
	}
	return a.Get(r.values)
}

// Set coerces and stores the named column value, marking the record dirty.
func (r *Record) Set(name string, v any) error {
	a, ok := r.model.Accessor(name)
	if !ok {
		return fmt.Errorf("model %s has no field %s", r.model.Name, name)
	}
	if err := a.Set(r.values, v); err != nil {
		return err
	}
	r.dirty = true
	return nil
}

// Values returns a shallow copy of the record's column values.
func (r *Record) Values() schema.Values {
	out := make(schema.Values, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Version returns the record's version counter.
func (r *Record) Version() int64 {
	if v, ok := r.values[query.VersionColumn].(int64); ok {
		return v
	}
	return 0
}

// UpdatedAt returns the last modification timestamp, if set.
func (r *Record) UpdatedAt() (time.Time, bool) {
	t, ok := r.values[query.UpdatedAtColumn].(time.Time)
	return t, ok
}

// Persisted reports whether the record exists in the store.
func (r *Record) Persisted() bool {
	return r.committed != nil
}

// IsModified reports whether the record has a real pending change. All
// three conditions must hold: the record is persisted, a field was set,
// and at least one field's before/after values actually differ.
func (r *Record) IsModified() bool {
	return r.Persisted() && r.dirty && len(r.ChangedFields()) > 0
}

// ChangedFields returns the names of fields whose current value differs
// from the committed state, sorted.
func (r *Record) ChangedFields() []string {
	if r.committed == nil {
		return nil
	}
	var changed []string
	for _, name := range r.model.ColumnNames() {
		if !reflect.DeepEqual(r.values[name], r.committed[name]) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// bumpVersion increments the version counter and stamps the modification
// time, only when a real field change is pending.
func (r *Record) bumpVersion(now time.Time) {
	if !r.IsModified() {
		return
	}
	r.values[query.VersionColumn] = r.Version() + 1
	r.values[query.UpdatedAtColumn] = now.UTC()
}

// markCommitted snapshots the current values as the persisted state and
// clears the dirty flag.
func (r *Record) markCommitted() {
	r.committed = make(schema.Values, len(r.values))
	for k, v := range r.values {
		r.committed[k] = deepCopyValue(v)
	}
	r.dirty = false
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// String implements fmt.Stringer in the "<Model: pk, v=N>" form.
func (r *Record) String() string {
	return fmt.Sprintf("<%s: %s=%v, v=%d>",
		r.model.Name, r.model.PKField(), r.PK(), r.Version())
}
