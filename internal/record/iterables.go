package record

import (
	"strings"

	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// UpdateIterable applies the differential update grammar to a list or map
// field: a positive key/item adds or overwrites, a key prefixed with '-'
// removes, and a nil or empty value clears everything currently present.
// With unique set, list items already present are not appended again.
func (r *Repository) UpdateIterable(rec *Record, field string, params any, unique bool) error {
	f, ok := r.model.Field(field)
	if !ok || !f.Kind.Iterable() {
		return apierror.BadRequest("field %s of %s is not a list or map", field, r.model.Name)
	}
	if f.Kind == schema.KindMap {
		return r.updateMap(rec, field, params)
	}
	return r.updateList(rec, field, params, unique)
}

func (r *Repository) updateMap(rec *Record, field string, params any) error {
	current, _ := rec.Get(field).(map[string]any)
	final := make(map[string]any, len(current))
	for k, v := range current {
		final[k] = v
	}

	updates, cleared := mapUpdates(params, final)
	if cleared && len(updates) == 0 {
		return nil
	}

	positive := make(map[string]any)
	var negative []string
	for key, val := range updates {
		if strings.HasPrefix(key, "__") {
			continue
		}
		if strings.HasPrefix(key, "-") {
			negative = append(negative, key[1:])
		} else {
			positive[strings.TrimSpace(key)] = val
		}
	}

	for _, key := range negative {
		delete(final, key)
	}
	for key, val := range positive {
		final[key] = val
	}
	return rec.Set(field, final)
}

// mapUpdates normalizes the update payload; a nil or empty payload means
// "remove every existing key".
func mapUpdates(params any, current map[string]any) (map[string]any, bool) {
	switch val := params.(type) {
	case nil:
		return clearAllMap(current), true
	case string:
		if val == "" {
			return clearAllMap(current), true
		}
	case map[string]any:
		if len(val) == 0 {
			return clearAllMap(current), true
		}
		return val, false
	}
	return nil, false
}

func clearAllMap(current map[string]any) map[string]any {
	updates := make(map[string]any, len(current))
	for key, val := range current {
		updates["-"+key] = val
	}
	return updates
}

func (r *Repository) updateList(rec *Record, field string, params any, unique bool) error {
	current, _ := rec.Get(field).([]any)
	final := make([]any, len(current))
	copy(final, current)

	keys, cleared := listUpdates(params, final)
	if cleared && len(keys) == 0 {
		return nil
	}

	var positive, negative []string
	for _, key := range keys {
		if strings.HasPrefix(key, "__") {
			continue
		}
		if strings.HasPrefix(key, "-") {
			negative = append(negative, key[1:])
		} else {
			positive = append(positive, strings.TrimSpace(key))
		}
	}
	if len(positive)+len(negative) == 0 {
		return apierror.BadRequest("Missing params")
	}

	for _, item := range positive {
		if unique && containsValue(final, item) {
			continue
		}
		final = append(final, item)
	}
	if len(negative) > 0 {
		removed := make(map[string]struct{}, len(negative))
		for _, item := range negative {
			removed[item] = struct{}{}
		}
		kept := final[:0]
		for _, item := range final {
			if s, ok := item.(string); ok {
				if _, drop := removed[s]; drop {
					continue
				}
			}
			kept = append(kept, item)
		}
		final = kept
	}
	return rec.Set(field, final)
}

// listUpdates normalizes the update payload to a key list; a nil or empty
// payload means "remove every existing item". A map payload contributes
// its keys.
func listUpdates(params any, current []any) ([]string, bool) {
	switch val := params.(type) {
	case nil:
		return clearAllList(current), true
	case string:
		if val == "" {
			return clearAllList(current), true
		}
		return []string{val}, false
	case []string:
		return val, false
	case []any:
		var keys []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys, false
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		return keys, false
	}
	return nil, false
}

func clearAllList(current []any) []string {
	keys := make([]string, 0, len(current))
	for _, item := range current {
		if s, ok := item.(string); ok {
			keys = append(keys, "-"+s)
		}
	}
	return keys
}

func containsValue(list []any, s string) bool {
	for _, item := range list {
		if v, ok := item.(string); ok && v == s {
			return true
		}
	}
	return false
}
