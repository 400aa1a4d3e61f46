package query

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relstack-labs/relstore/pkg/schema"
)

// scanRows scans every row into a value bag keyed by column name, decoding
// each column to its declared kind. JSON text columns (list/map) are
// unmarshaled; time columns are parsed from RFC 3339.
func scanRows(m *schema.Model, rows *sql.Rows) ([]schema.Values, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []schema.Values
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		vals := make(schema.Values, len(cols))
		for i, col := range cols {
			decoded, err := DecodeColumn(m, col, raw[i])
			if err != nil {
				return nil, err
			}
			vals[col] = decoded
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// DecodeColumn converts a raw driver value to the column's declared kind.
func DecodeColumn(m *schema.Model, col string, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch col {
	case VersionColumn:
		return toInt64(raw), nil
	case UpdatedAtColumn:
		return decodeTime(col, raw)
	}

	f, ok := m.Field(col)
	if !ok {
		return raw, nil
	}
	switch f.Kind {
	case schema.KindBool:
		return toInt64(raw) != 0, nil
	case schema.KindInt:
		return toInt64(raw), nil
	case schema.KindTime:
		return decodeTime(col, raw)
	case schema.KindList:
		s, ok := raw.(string)
		if !ok || s == "" {
			return []any{}, nil
		}
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, fmt.Errorf("failed to decode list column %s: %w", col, err)
		}
		return list, nil
	case schema.KindMap:
		s, ok := raw.(string)
		if !ok || s == "" {
			return map[string]any{}, nil
		}
		var mp map[string]any
		if err := json.Unmarshal([]byte(s), &mp); err != nil {
			return nil, fmt.Errorf("failed to decode map column %s: %w", col, err)
		}
		return mp, nil
	}
	return raw, nil
}

// EncodeColumn converts a coerced field value to its driver representation.
func EncodeColumn(f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case schema.KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case schema.KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
	case schema.KindList, schema.KindMap:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s column %s: %w", f.Kind, f.Name, err)
		}
		return string(data), nil
	}
	return v, nil
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		var n int64
		fmt.Sscanf(val, "%d", &n)
		return n
	}
	return 0
}

func decodeTime(col string, raw any) (any, error) {
	switch val := raw.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return nil, fmt.Errorf("failed to decode time column %s: %w", col, err)
		}
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("failed to decode time column %s: unsupported type %T", col, raw)
}
