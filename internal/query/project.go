package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relstack-labs/relstore/pkg/schema"
)

// ProcessFields splits projection tokens into inclusion and exclusion
// lists. A leading '-' marks exclusion; a leading '+' is accepted and
// stripped.
func ProcessFields(fields []string) (only, exclude []string) {
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "-") {
			exclude = append(exclude, strings.TrimPrefix(f, "-"))
		} else {
			only = append(only, strings.TrimPrefix(f, "+"))
		}
	}
	return only, exclude
}

// ApplyFields narrows the query's selected columns to the requested
// fields. The effective set is the inclusion list (or all native columns
// when absent) minus the exclusion list, plus the primary key, sorted.
// Exclusion wins when a name appears in both lists. With no directive, or
// an effective set that collapses to empty, the query is unmodified.
func ApplyFields(q *Query, fields []string) error {
	only, exclude := ProcessFields(fields)
	if len(only) == 0 && len(exclude) == 0 {
		return nil
	}

	m := q.Model()
	if len(only) == 0 {
		only = m.ColumnNames()
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, f := range exclude {
		excluded[f] = struct{}{}
	}

	effective := make(map[string]struct{})
	for _, f := range only {
		if _, out := excluded[f]; out {
			continue
		}
		// Only column fields can be projected; relationship names and
		// anything unknown that survived non-strict filtering are skipped.
		if _, ok := m.Field(f); !ok {
			continue
		}
		effective[f] = struct{}{}
	}
	if len(effective) == 0 {
		return nil
	}

	effective[m.PKField()] = struct{}{}
	cols := make([]string, 0, len(effective))
	for f := range effective {
		cols = append(cols, f)
	}
	sort.Strings(cols)
	q.Select(cols...)
	return nil
}

// AddFieldNames converts projected rows into transport mappings: a type
// tag and a normalized public-key string are attached, and the raw primary
// key column is removed unless it was explicitly requested.
func AddFieldNames(m *schema.Model, rows []schema.Values, requested []string) []schema.Values {
	pk := m.PKField()
	pkRequested := false
	for _, f := range requested {
		if !strings.HasPrefix(f, "-") && schema.BaseFieldName(f) == pk {
			pkRequested = true
			break
		}
	}

	out := make([]schema.Values, 0, len(rows))
	for _, row := range rows {
		doc := make(schema.Values, len(row)+2)
		for k, v := range row {
			doc[k] = v
		}
		doc["_type"] = m.Name
		if pkVal, ok := doc[pk]; ok {
			doc["_pk"] = fmt.Sprintf("%v", pkVal)
			if !pkRequested {
				delete(doc, pk)
			}
		}
		out = append(out, doc)
	}
	return out
}
