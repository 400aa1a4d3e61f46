package indexsync

import "github.com/relstack-labs/relstore/pkg/schema"

// Mapping returns the flat field-to-index-type mapping of a model,
// covering the _type and _pk tags the serializer attaches to every
// document. Nested relationships index as objects; plain relationships
// collapse to key references.
func Mapping(m *schema.Model) map[string]string {
	out := map[string]string{
		"_type": "keyword",
		"_pk":   "keyword",
	}
	for i := range m.Fields {
		out[m.Fields[i].Name] = indexType(m.Fields[i].Kind)
	}
	for i := range m.Relationships {
		r := &m.Relationships[i]
		if r.Nested {
			out[r.Name] = "object"
		} else {
			out[r.Name] = "keyword"
		}
	}
	return out
}

func indexType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "long"
	case schema.KindFloat:
		return "double"
	case schema.KindBool:
		return "boolean"
	case schema.KindTime:
		return "date"
	case schema.KindMap:
		return "object"
	default:
		return "keyword"
	}
}
