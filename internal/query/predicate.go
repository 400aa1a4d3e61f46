package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// PopIterables removes residual filter keys that name list- or map-typed
// fields and returns containment conditions for them instead of equality.
//
// List fields: the value (or each value of a __in/__all list) must be an
// element of the stored array; __in matches any value, __all requires all.
// Map fields: with no subkey the filter value is the key name to test for
// presence; with a "field.subkey" accessor the condition tests the
// subkey's value. Storage is JSON text, queried through json_each.
func PopIterables(m *schema.Model, residual map[string]any) ([]Cond, error) {
	var conds []Cond

	keys := make([]string, 0, len(residual))
	for k := range residual {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := residual[key]

		// Map subkey accessor: field.subkey
		if base, sub, found := strings.Cut(key, "."); found {
			f, ok := m.Field(base)
			if !ok || f.Kind != schema.KindMap {
				continue
			}
			conds = append(conds, Cond{
				Expr: fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.%s) je WHERE je.key = ? AND je.value = ?)",
					m.Table, base),
				Args: []any{sub, val},
			})
			delete(residual, key)
			continue
		}

		base := key
		suffix := ""
		if name, sfx, ok := strings.Cut(key, "__"); ok {
			base, suffix = name, sfx
		}
		f, ok := m.Field(base)
		if !ok || !f.Kind.Iterable() {
			continue
		}

		switch f.Kind {
		case schema.KindList:
			cond, err := listContains(m, f, suffix, val)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		case schema.KindMap:
			if suffix != "" {
				return nil, apierror.BadRequest(
					"unsupported query `%s` on map field %s", suffix, base)
			}
			conds = append(conds, Cond{
				Expr: fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.%s) je WHERE je.key = ?)",
					m.Table, base),
				Args: []any{val},
			})
		}
		delete(residual, key)
	}
	return conds, nil
}

// listContains builds the containment condition for one list field filter.
func listContains(m *schema.Model, f *schema.Field, suffix string, val any) (Cond, error) {
	contains := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.%s) je WHERE je.value = ?)",
		m.Table, f.Name)

	vals := flatten(val)
	if len(vals) == 0 {
		return Cond{Expr: "1 = 0"}, nil
	}
	if len(vals) == 1 {
		return Cond{Expr: contains, Args: []any{vals[0]}}, nil
	}

	exprs := make([]string, len(vals))
	args := make([]any, len(vals))
	for i, v := range vals {
		exprs[i] = contains
		args[i] = v
	}
	joiner := " AND "
	if suffix == "in" {
		joiner = " OR "
	}
	return Cond{Expr: "(" + strings.Join(exprs, joiner) + ")", Args: args}, nil
}

func flatten(v any) []any {
	switch val := v.(type) {
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []any:
		return val
	case nil:
		return nil
	default:
		return []any{val}
	}
}

// ApplyFilters compiles the remaining residual keys into plain equality
// predicates on the query, coercing each value to the field's declared
// kind. Keys suffixed __in become set-membership predicates.
func ApplyFilters(q *Query, residual map[string]any) error {
	m := q.Model()

	keys := make([]string, 0, len(residual))
	for k := range residual {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := residual[key]

		base := key
		suffix := ""
		if name, sfx, ok := strings.Cut(key, "__"); ok {
			base, suffix = name, sfx
		}

		col := base
		f, isField := m.Field(base)
		if !isField {
			rel, isRel := m.Relationship(base)
			if !isRel {
				// Unknown names were either rejected in strict mode or
				// dropped already; skip defensively.
				continue
			}
			if rel.ToMany {
				return apierror.BadRequest(
					"cannot filter on to-many relationship %s", base)
			}
			col = rel.ForeignKey
			f, _ = m.Field(col)
		}

		switch suffix {
		case "in":
			var coerced []any
			for _, v := range flatten(val) {
				cv, err := coerceFilter(f, v)
				if err != nil {
					return err
				}
				coerced = append(coerced, cv)
			}
			q.WhereIn(col, coerced)
		case "", "all":
			for _, v := range flatten(val) {
				cv, err := coerceFilter(f, v)
				if err != nil {
					return err
				}
				q.WhereEq(col, cv)
			}
		default:
			return apierror.BadRequest("unsupported filter suffix __%s on %s", suffix, base)
		}
	}
	return nil
}

func coerceFilter(f *schema.Field, v any) (any, error) {
	if f == nil {
		return v, nil
	}
	cv, err := schema.Coerce(f, v)
	if err != nil {
		return nil, err
	}
	return EncodeColumn(f, cv)
}

// FilterAllowed drops residual keys whose base name is not legal for the
// model. Non-strict counterpart of Model.CheckFieldsAllowed.
func FilterAllowed(m *schema.Model, residual map[string]any) {
	allowed := m.FieldsToQuery()
	for key := range residual {
		name := key
		if base, _, found := strings.Cut(key, "."); found {
			name = base
		}
		if _, ok := allowed[schema.BaseFieldName(name)]; !ok {
			delete(residual, key)
		}
	}
}
