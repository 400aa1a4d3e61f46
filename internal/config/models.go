package config

import (
	"fmt"

	"github.com/relstack-labs/relstore/pkg/schema"
)

// BuildModels converts the declarative model definitions into schema
// models ready for registration. Models without a nesting depth inherit
// the configured serializer depth.
func (c *Config) BuildModels() ([]*schema.Model, error) {
	models := make([]*schema.Model, 0, len(c.Models))
	for _, decl := range c.Models {
		m, err := buildModel(decl, c.SerializerDepth)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func buildModel(decl ModelDecl, defaultDepth int) (*schema.Model, error) {
	if decl.Name == "" {
		return nil, fmt.Errorf("model declaration missing a name")
	}

	depth := decl.NestingDepth
	if depth == 0 {
		depth = defaultDepth
	}

	fields := make([]schema.Field, 0, len(decl.Fields))
	for _, fd := range decl.Fields {
		kind, err := parseKind(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("model %s field %s: %w", decl.Name, fd.Name, err)
		}
		fields = append(fields, schema.Field{
			Name:       fd.Name,
			Kind:       kind,
			Nullable:   fd.Nullable,
			Unique:     fd.Unique,
			PrimaryKey: fd.PrimaryKey,
			Default:    fd.Default,
		})
	}

	rels := make([]schema.Relationship, 0, len(decl.Relationships))
	for _, rd := range decl.Relationships {
		rels = append(rels, schema.Relationship{
			Name:       rd.Name,
			Target:     rd.Target,
			ToMany:     rd.ToMany,
			ForeignKey: rd.ForeignKey,
			Nested:     rd.Nested,
			Backref:    rd.Backref,
		})
	}

	return &schema.Model{
		Name:          decl.Name,
		Table:         decl.Table,
		Fields:        fields,
		Relationships: rels,
		NestingDepth:  depth,
	}, nil
}

func parseKind(s string) (schema.Kind, error) {
	switch s {
	case "string", "":
		return schema.KindString, nil
	case "int", "integer":
		return schema.KindInt, nil
	case "float":
		return schema.KindFloat, nil
	case "bool", "boolean":
		return schema.KindBool, nil
	case "time", "datetime":
		return schema.KindTime, nil
	case "list":
		return schema.KindList, nil
	case "map", "dict":
		return schema.KindMap, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}
