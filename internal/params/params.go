// Package params normalizes the flat, string-keyed parameter bag of a
// collection request into typed directives and a residual filter bag.
//
// The transform is pure: no field-name validation happens here. Invalid
// names are deferred to the predicate compiler and field projector.
package params

import (
	"strconv"
	"strings"

	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Sentinel value meaning "no filter on this field".
const allSentinel = "_all"

// Directives are the reserved query instructions extracted from a bag.
type Directives struct {
	Sort   []string
	Fields []string
	Limit  *int64
	Page   *int64
	Start  *int64

	Count   bool
	Explain bool

	// Strict rejects unknown filter fields instead of dropping them.
	// Defaults to true.
	Strict bool

	// ItemRequest marks a single-item lookup; type-mismatch filter errors
	// translate to not-found instead of bad-request.
	ItemRequest bool

	// RaiseOnEmpty raises not-found on an empty result instead of logging.
	RaiseOnEmpty bool
}

// Normalize splits a parameter bag into directives and residual filters.
// The residual bag has __in/__all values decoded to lists, __bool values
// decoded to booleans under the stripped key, legacy double-underscore
// keys removed, and "_all" sentinel values dropped.
func Normalize(bag map[string]any) (Directives, map[string]any, error) {
	d := Directives{Strict: true}
	residual := make(map[string]any, len(bag))
	for k, v := range bag {
		residual[k] = v
	}

	d.Sort = SplitValue(pop(residual, "_sort"))
	d.Fields = SplitValue(pop(residual, "_fields"))

	var err error
	if d.Limit, err = popInt(residual, "_limit"); err != nil {
		return d, nil, err
	}
	if d.Page, err = popInt(residual, "_page"); err != nil {
		return d, nil, err
	}
	if d.Start, err = popInt(residual, "_start"); err != nil {
		return d, nil, err
	}

	_, d.Count = popPresent(residual, "_count")
	_, d.Explain = popPresent(residual, "_explain")

	if v, ok := popPresent(residual, "_item_request"); ok {
		d.ItemRequest = truthy(v, true)
	}
	if v, ok := popPresent(residual, "__strict"); ok {
		d.Strict = truthy(v, true)
	}
	if v, ok := popPresent(residual, "__raise_on_empty"); ok {
		d.RaiseOnEmpty = truthy(v, true)
	}

	// Remaining double-underscore keys are legacy instructions; drop them
	// before any validation can see them.
	for k := range residual {
		if strings.HasPrefix(k, "__") {
			delete(residual, k)
		}
	}

	if err := processLists(residual); err != nil {
		return d, nil, err
	}
	if err := processBools(residual); err != nil {
		return d, nil, err
	}

	for k, v := range residual {
		if s, ok := v.(string); ok && s == allSentinel {
			delete(residual, k)
		}
	}

	return d, residual, nil
}

// processLists decodes comma-separated values of name__in / name__all keys
// into lists, keeping the suffixed key.
func processLists(residual map[string]any) error {
	for k, v := range residual {
		_, suffix, ok := splitSuffix(k)
		if !ok || (suffix != "in" && suffix != "all") {
			continue
		}
		residual[k] = SplitValue(v)
	}
	return nil
}

// processBools decodes truthy values of name__bool keys and rewrites the
// key without the suffix.
func processBools(residual map[string]any) error {
	for k, v := range residual {
		name, suffix, ok := splitSuffix(k)
		if !ok || suffix != "bool" {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			if b, isBool := v.(bool); isBool {
				delete(residual, k)
				residual[name] = b
				continue
			}
			return apierror.BadRequest("invalid boolean for %s: %v", k, v)
		}
		b, err := schema.ParseTruthy(s)
		if err != nil {
			return apierror.BadRequestWrap(err, "invalid boolean for %s", k)
		}
		delete(residual, k)
		residual[name] = b
	}
	return nil
}

// SplitValue decodes a comma-separated string, a string slice, or nil into
// a flat list of trimmed, non-empty tokens.
func SplitValue(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		var out []string
		for _, s := range val {
			out = append(out, splitString(s)...)
		}
		return out
	case string:
		return splitString(val)
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, splitString(s)...)
			}
		}
		return out
	}
	return nil
}

func splitString(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitSuffix splits "name__suffix" into its parts. Keys with a leading
// double underscore are not suffixed names.
func splitSuffix(k string) (name, suffix string, ok bool) {
	if strings.HasPrefix(k, "__") {
		return "", "", false
	}
	i := strings.Index(k, "__")
	if i < 0 {
		return "", "", false
	}
	return k[:i], k[i+2:], true
}

func pop(bag map[string]any, key string) any {
	v, ok := bag[key]
	if !ok {
		return nil
	}
	delete(bag, key)
	return v
}

func popPresent(bag map[string]any, key string) (any, bool) {
	v, ok := bag[key]
	if ok {
		delete(bag, key)
	}
	return v, ok
}

func popInt(bag map[string]any, key string) (*int64, error) {
	v, ok := bag[key]
	if !ok {
		return nil, nil
	}
	delete(bag, key)
	switch val := v.(type) {
	case int:
		n := int64(val)
		return &n, nil
	case int64:
		return &val, nil
	case float64:
		n := int64(val)
		return &n, nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, apierror.BadRequestWrap(err, "invalid %s: %q", key, val)
		}
		return &n, nil
	case []string:
		if len(val) == 1 {
			return popInt(map[string]any{key: val[0]}, key)
		}
	}
	return nil, apierror.BadRequest("invalid %s: %v", key, v)
}

// truthy interprets a directive flag value; a bare flag (nil value) means
// the flag is asserted with def.
func truthy(v any, def bool) bool {
	switch val := v.(type) {
	case nil:
		return def
	case bool:
		return val
	case string:
		if val == "" {
			return def
		}
		b, err := schema.ParseTruthy(val)
		if err != nil {
			return def
		}
		return b
	case []string:
		if len(val) == 0 {
			return def
		}
		return truthy(val[0], def)
	}
	return def
}
