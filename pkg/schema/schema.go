// Package schema holds the model declaration surface: field and
// relationship metadata, value processors, and the model registry.
//
// Models are registered explicitly at startup via Register. Registration
// validates the declaration, builds the per-field accessor table, and makes
// the model visible to the query compiler, the mutation lifecycle, and the
// sync propagator.
package schema

// Kind is the declared semantic type of a field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	// KindList is a list of scalars, stored as a JSON text column.
	KindList
	// KindMap is a string-keyed map, stored as a JSON text column.
	KindMap
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Iterable reports whether the kind is a list or map.
func (k Kind) Iterable() bool {
	return k == KindList || k == KindMap
}

// Values is the untyped value bag backing one record.
type Values = map[string]any

// ProcessorContext is passed to field value processors.
type ProcessorContext struct {
	// Value is the field value about to be stored (before-validation) or
	// just stored (after-validation).
	Value any
	// Field is the field name the processor is attached to.
	Field string
	// Record is a read-only view of the whole record.
	Record Values
}

// Processor transforms a field value during the mutation lifecycle.
// Before-validation processors run on the proposed value prior to the
// flush; after-validation processors run on the stored value after it.
type Processor func(ProcessorContext) (any, error)

// Field declares one column of a model.
type Field struct {
	Name       string
	Kind       Kind
	Nullable   bool
	Unique     bool
	PrimaryKey bool
	Default    any

	// BeforeValidation processors run on changed values before the flush.
	BeforeValidation []Processor
	// AfterValidation processors run on stored values after the flush.
	AfterValidation []Processor
}

// Relationship declares a link to another model.
//
// For a to-one relationship, ForeignKey names the column on this model
// holding the target's primary key. For a to-many relationship, ForeignKey
// names the column on the target model referencing this model's primary key.
type Relationship struct {
	Name       string
	Target     string
	ToMany     bool
	ForeignKey string

	// Nested marks the relationship for full embedding when serializing,
	// subject to the remaining nesting depth.
	Nested bool

	// Backref names the inverse relationship on the target model, when one
	// is declared. Used by the sync propagator to find records whose
	// serialized form embeds this one.
	Backref string
}
