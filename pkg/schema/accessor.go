package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/relstack-labs/relstore/pkg/apierror"
)

// Accessor is a typed getter/setter pair for one field, built once per
// model at registration time. The setter coerces the incoming value to the
// field's declared kind.
type Accessor struct {
	Get func(Values) any
	Set func(Values, any) error
}

// Accessor returns the accessor for the named column field.
func (m *Model) Accessor(name string) (Accessor, bool) {
	a, ok := m.accessors[name]
	return a, ok
}

// buildAccessors builds the field accessor table for a model.
func buildAccessors(m *Model) map[string]Accessor {
	accessors := make(map[string]Accessor, len(m.Fields))
	for i := range m.Fields {
		f := &m.Fields[i]
		name := f.Name
		field := f
		accessors[name] = Accessor{
			Get: func(v Values) any { return v[name] },
			Set: func(v Values, val any) error {
				coerced, err := Coerce(field, val)
				if err != nil {
					return err
				}
				v[name] = coerced
				return nil
			},
		}
	}
	return accessors
}

// Coerce converts a raw value to the field's declared kind. A value that
// cannot be represented in the kind yields a bad-request error; how that
// surfaces depends on the calling context (item lookups translate it to
// not-found).
func Coerce(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindString:
		return coerceString(v)
	case KindInt:
		return coerceInt(f, v)
	case KindFloat:
		return coerceFloat(f, v)
	case KindBool:
		return coerceBool(f, v)
	case KindTime:
		return coerceTime(f, v)
	case KindList:
		return coerceList(f, v)
	case KindMap:
		return coerceMap(f, v)
	}
	return v, nil
}

func coerceString(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

func coerceInt(f *Field, v any) (any, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		if val != float64(int64(val)) {
			return nil, apierror.BadRequest("field %s: %v is not an integer", f.Name, val)
		}
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, apierror.BadRequestWrap(err, "field %s: invalid integer %q", f.Name, val)
		}
		return n, nil
	default:
		return nil, apierror.BadRequest("field %s: cannot coerce %T to int", f.Name, v)
	}
}

func coerceFloat(f *Field, v any) (any, error) {
	switch val := v.(type) {
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, apierror.BadRequestWrap(err, "field %s: invalid number %q", f.Name, val)
		}
		return n, nil
	default:
		return nil, apierror.BadRequest("field %s: cannot coerce %T to float", f.Name, v)
	}
}

func coerceBool(f *Field, v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int:
		return val != 0, nil
	case int64:
		return val != 0, nil
	case string:
		b, err := ParseTruthy(val)
		if err != nil {
			return nil, apierror.BadRequestWrap(err, "field %s: invalid boolean %q", f.Name, val)
		}
		return b, nil
	default:
		return nil, apierror.BadRequest("field %s: cannot coerce %T to bool", f.Name, v)
	}
}

func coerceTime(f *Field, v any) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return nil, apierror.BadRequestWrap(err, "field %s: invalid timestamp %q", f.Name, val)
		}
		return t.UTC(), nil
	default:
		return nil, apierror.BadRequest("field %s: cannot coerce %T to time", f.Name, v)
	}
}

func coerceList(f *Field, v any) (any, error) {
	switch val := v.(type) {
	case []any:
		return val, nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case string:
		return []any{val}, nil
	default:
		return nil, apierror.BadRequest("field %s: cannot coerce %T to list", f.Name, v)
	}
}

func coerceMap(f *Field, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		return val, nil
	default:
		return nil, apierror.BadRequest("field %s: cannot coerce %T to map", f.Name, v)
	}
}

// ParseTruthy parses the truthy/falsy string grammar accepted by
// field__bool query parameters.
func ParseTruthy(s string) (bool, error) {
	switch s {
	case "true", "True", "TRUE", "t", "T", "1", "yes", "y", "on":
		return true, nil
	case "false", "False", "FALSE", "f", "F", "0", "no", "n", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean value: %q", s)
}
