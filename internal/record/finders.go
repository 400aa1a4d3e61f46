package record

import (
	"context"

	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Compiler returns a collection query compiler bound to the repository's
// session and model.
func (r *Repository) Compiler() *query.Compiler {
	return query.NewCompiler(r.access.sess, r.model, r.access.logger)
}

// GetCollection compiles and runs a collection query from a parameter bag.
func (r *Repository) GetCollection(ctx context.Context, bag map[string]any) (*query.Result, error) {
	return r.Compiler().GetCollection(ctx, bag)
}

// Records wraps the full rows of a collection result as loaded records.
func (r *Repository) Records(res *query.Result) []*Record {
	recs := make([]*Record, len(res.Rows))
	for i, row := range res.Rows {
		recs[i] = Loaded(r.model, row)
	}
	return recs
}

// GetResource runs a single-item lookup: limit 1, item-request error
// translation, raising on empty unless the bag overrides it.
func (r *Repository) GetResource(ctx context.Context, bag map[string]any) (*Record, error) {
	params := make(map[string]any, len(bag)+3)
	for k, v := range bag {
		params[k] = v
	}
	if _, ok := params["__raise_on_empty"]; !ok {
		params["__raise_on_empty"] = true
	}
	params["_limit"] = int64(1)
	params["_item_request"] = true

	res, err := r.GetCollection(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return Loaded(r.model, res.Rows[0]), nil
}

// Get looks up a single record by filters, returning nil when absent.
func (r *Repository) Get(ctx context.Context, bag map[string]any) (*Record, error) {
	params := make(map[string]any, len(bag)+1)
	for k, v := range bag {
		params[k] = v
	}
	if _, ok := params["__raise_on_empty"]; !ok {
		params["__raise_on_empty"] = false
	}
	return r.GetResource(ctx, params)
}

// GetOrCreate returns the single record matching the params, creating it
// from params merged over defaults when absent. Multiple matches are a
// bad request.
func (r *Repository) GetOrCreate(ctx context.Context, bag map[string]any, defaults schema.Values) (*Record, bool, error) {
	params := make(map[string]any, len(bag)+1)
	for k, v := range bag {
		params[k] = v
	}
	if _, ok := params["_limit"]; !ok {
		params["_limit"] = int64(2)
	}

	res, err := r.GetCollection(ctx, params)
	if err != nil {
		return nil, false, err
	}
	switch len(res.Rows) {
	case 1:
		return Loaded(r.model, res.Rows[0]), false, nil
	case 0:
		values := make(schema.Values, len(defaults)+len(bag))
		for k, v := range defaults {
			values[k] = v
		}
		for k, v := range bag {
			values[k] = v
		}
		rec, err := r.Create(ctx, values)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	default:
		return nil, false, apierror.BadRequest("Bad or Insufficient Params")
	}
}

// FilterObjects re-queries a record slice by primary keys and runs the
// collection compiler on the staged query. With first set, the first
// match is returned and an empty result raises not-found.
func (r *Repository) FilterObjects(ctx context.Context, recs []*Record, first bool, bag map[string]any) ([]*Record, error) {
	pks := make([]any, 0, len(recs))
	for _, rec := range recs {
		if rec.PK() != nil {
			pks = append(pks, rec.PK())
		}
	}

	staged := query.New(r.access.sess, r.model).WhereIn(r.model.PKField(), pks)
	params := make(map[string]any, len(bag)+1)
	for k, v := range bag {
		params[k] = v
	}
	params["_limit"] = int64(len(pks))

	res, err := r.Compiler().GetCollectionFrom(ctx, staged, params)
	if err != nil {
		return nil, err
	}
	matched := r.Records(res)

	if first {
		if len(matched) == 0 {
			return nil, apierror.NotFound("'%s(%v)' resource not found", r.model.Name, bag)
		}
		return matched[:1], nil
	}
	return matched, nil
}

// GetByIDs runs a collection query restricted to the given primary keys.
func (r *Repository) GetByIDs(ctx context.Context, ids []any, bag map[string]any) ([]*Record, error) {
	staged := query.New(r.access.sess, r.model).WhereIn(r.model.PKField(), ids)
	params := make(map[string]any, len(bag)+1)
	for k, v := range bag {
		params[k] = v
	}
	if _, ok := params["_limit"]; !ok {
		params["_limit"] = int64(len(ids))
	}

	res, err := r.Compiler().GetCollectionFrom(ctx, staged, params)
	if err != nil {
		return nil, err
	}
	return r.Records(res), nil
}
