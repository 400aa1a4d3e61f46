package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relstack-labs/relstore/pkg/apierror"
)

// Directive names that are always legal in a query parameter bag.
var queryDirectives = []string{
	"_limit", "_page", "_sort", "_fields", "_count", "_start",
}

// Model is a named entity type with an ordered set of fields and
// relationships. Exactly one field must be the primary key.
type Model struct {
	Name  string
	Table string

	Fields        []Field
	Relationships []Relationship

	// NestingDepth is the default serialization depth. A depth of 1 embeds
	// one level of nested relationships; deeper links are reference-only.
	NestingDepth int

	pk        *Field
	fields    map[string]*Field
	rels      map[string]*Relationship
	accessors map[string]Accessor
}

// validate checks the declaration and builds the lookup tables.
// Called by Register.
func (m *Model) validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Table == "" {
		m.Table = strings.ToLower(m.Name)
	}
	if m.NestingDepth == 0 {
		m.NestingDepth = 1
	}

	m.fields = make(map[string]*Field, len(m.Fields))
	m.rels = make(map[string]*Relationship, len(m.Relationships))
	m.pk = nil

	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("model %s: field %d has no name", m.Name, i)
		}
		if _, dup := m.fields[f.Name]; dup {
			return fmt.Errorf("model %s: duplicate field %s", m.Name, f.Name)
		}
		m.fields[f.Name] = f
		if f.PrimaryKey {
			if m.pk != nil {
				return fmt.Errorf("model %s: multiple primary key fields (%s, %s)",
					m.Name, m.pk.Name, f.Name)
			}
			m.pk = f
		}
	}
	if m.pk == nil {
		return fmt.Errorf("model %s: no primary key field", m.Name)
	}

	for i := range m.Relationships {
		r := &m.Relationships[i]
		if r.Name == "" {
			return fmt.Errorf("model %s: relationship %d has no name", m.Name, i)
		}
		if _, dup := m.fields[r.Name]; dup {
			return fmt.Errorf("model %s: relationship %s shadows a field", m.Name, r.Name)
		}
		if r.Target == "" {
			return fmt.Errorf("model %s: relationship %s has no target", m.Name, r.Name)
		}
		if r.ForeignKey == "" {
			return fmt.Errorf("model %s: relationship %s has no foreign key", m.Name, r.Name)
		}
		m.rels[r.Name] = r
	}

	m.accessors = buildAccessors(m)
	return nil
}

// PKField returns the primary key field name.
func (m *Model) PKField() string {
	return m.pk.Name
}

// PK returns the primary key field declaration.
func (m *Model) PK() *Field {
	return m.pk
}

// Field returns the named column field, if declared.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Relationship returns the named relationship, if declared.
func (m *Model) Relationship(name string) (*Relationship, bool) {
	r, ok := m.rels[name]
	return r, ok
}

// ColumnNames returns the declared column field names, in declaration order.
func (m *Model) ColumnNames() []string {
	names := make([]string, 0, len(m.Fields))
	for i := range m.Fields {
		names = append(names, m.Fields[i].Name)
	}
	return names
}

// NativeFields returns column names followed by relationship names.
func (m *Model) NativeFields() []string {
	names := m.ColumnNames()
	for i := range m.Relationships {
		names = append(names, m.Relationships[i].Name)
	}
	return names
}

// HasField reports whether name is a native field of the model.
func (m *Model) HasField(name string) bool {
	if _, ok := m.fields[name]; ok {
		return true
	}
	_, ok := m.rels[name]
	return ok
}

// IterableColumns returns the list- and map-kind fields, keyed by name.
func (m *Model) IterableColumns() map[string]*Field {
	cols := make(map[string]*Field)
	for name, f := range m.fields {
		if f.Kind.Iterable() {
			cols[name] = f
		}
	}
	return cols
}

// FieldsToQuery returns every name legal in a query parameter bag: native
// fields plus the fixed directive names.
func (m *Model) FieldsToQuery() map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, name := range m.NativeFields() {
		allowed[name] = struct{}{}
	}
	for _, name := range queryDirectives {
		allowed[name] = struct{}{}
	}
	allowed[m.pk.Name] = struct{}{}
	return allowed
}

// CheckFieldsAllowed validates that every requested field is legal for the
// model. Names are stripped of any __suffix and leading sort/projection
// markers before the check. On failure the error lists exactly the excess
// names, sorted.
func (m *Model) CheckFieldsAllowed(fields []string) error {
	allowed := m.FieldsToQuery()
	var notAllowed []string
	seen := make(map[string]struct{})
	for _, f := range fields {
		name := BaseFieldName(f)
		if _, ok := allowed[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		notAllowed = append(notAllowed, name)
	}
	if len(notAllowed) == 0 {
		return nil
	}
	sort.Strings(notAllowed)
	return apierror.BadRequest("'%s' object does not have fields: %s",
		m.Name, strings.Join(notAllowed, ", "))
}

// NullValues returns the null value of every native field: nil for columns
// and to-one relationships, an empty list for to-many relationships.
func (m *Model) NullValues() Values {
	null := make(Values)
	for _, name := range m.ColumnNames() {
		null[name] = nil
	}
	for i := range m.Relationships {
		r := &m.Relationships[i]
		if r.ToMany {
			null[r.Name] = []any{}
		} else {
			null[r.Name] = nil
		}
	}
	return null
}

// UniqueFields returns the names of fields carrying a uniqueness
// constraint, the primary key included.
func (m *Model) UniqueFields() []string {
	var names []string
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Unique || f.PrimaryKey {
			names = append(names, f.Name)
		}
	}
	return names
}

// BaseFieldName strips a __suffix and any leading sort or projection
// marker from a query parameter name.
func BaseFieldName(name string) string {
	name = strings.TrimLeft(name, "-+")
	if i := strings.Index(name, "__"); i >= 0 {
		name = name[:i]
	}
	return name
}
