package query

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/relstack-labs/relstore/internal/params"
	"github.com/relstack-labs/relstore/internal/store"
	"github.com/relstack-labs/relstore/pkg/apierror"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// ResultMode identifies which shape a Result carries. Exactly one shape is
// produced per call, with precedence count > explain > field mappings >
// full records.
type ResultMode int

const (
	ModeRecords ResultMode = iota
	ModeCount
	ModeExplain
	ModeFields
)

// Result is the outcome of a collection query. Total, Start, and Fields
// carry the pagination context so downstream code needs no extra round
// trip.
type Result struct {
	Mode ResultMode

	// Metadata for ModeRecords and ModeFields.
	Total  int64
	Start  int64
	Fields []string

	Count   int64
	Explain string

	// Rows holds full records (ModeRecords).
	Rows []schema.Values
	// Maps holds projected field mappings with _type and _pk attached
	// (ModeFields).
	Maps []schema.Values
}

// Compiler turns a parameter bag into an executed collection query for one
// model.
type Compiler struct {
	sess   *store.Session
	model  *schema.Model
	logger *slog.Logger
}

// NewCompiler returns a compiler bound to a session and model.
func NewCompiler(sess *store.Session, m *schema.Model, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Compiler{sess: sess, model: m, logger: logger}
}

// Model returns the compiler's model.
func (c *Compiler) Model() *schema.Model {
	return c.model
}

// GetCollection compiles and runs a collection query from a fresh
// "select all" base.
//
// A missing _limit directive is a hard bad-request unless _count or
// _explain was requested; the compiler refuses unbounded scans.
func (c *Compiler) GetCollection(ctx context.Context, bag map[string]any) (*Result, error) {
	return c.GetCollectionFrom(ctx, nil, bag)
}

// GetCollectionFrom continues filtering a previously built partial query,
// enabling composable staged queries. A nil base starts fresh.
func (c *Compiler) GetCollectionFrom(ctx context.Context, base *Query, bag map[string]any) (*Result, error) {
	c.logger.Debug("get collection", "model", c.model.Name, "params", bag)

	q := base
	if q == nil {
		q = New(c.sess, c.model)
	} else {
		q = q.Clone()
	}

	d, residual, err := params.Normalize(bag)
	if err != nil {
		return nil, err
	}

	iterables, err := PopIterables(c.model, residual)
	if err != nil {
		return nil, err
	}

	if d.Strict {
		check := make([]string, 0, len(residual)+len(d.Fields)+len(d.Sort))
		for k := range residual {
			check = append(check, k)
		}
		check = append(check, d.Fields...)
		check = append(check, d.Sort...)
		if err := c.model.CheckFieldsAllowed(check); err != nil {
			return nil, err
		}
	} else {
		FilterAllowed(c.model, residual)
	}

	if err := ApplyFilters(q, residual); err != nil {
		return nil, c.translateFilterError(err, d.ItemRequest, residual)
	}
	for _, cond := range iterables {
		q.Where(cond.Expr, cond.Args...)
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	if d.Count {
		return &Result{Mode: ModeCount, Count: total}, nil
	}

	if d.Limit == nil && !d.Explain {
		return nil, apierror.BadRequest("Missing _limit")
	}

	start, err := resolveOffset(d)
	if err != nil {
		return nil, err
	}

	// Projection must precede sorting: some backends disallow reapplying
	// column selection once ordering is fixed.
	if err := ApplyFields(q, d.Fields); err != nil {
		return nil, err
	}
	applySort(q, d.Sort)

	q.Offset(start)
	if d.Limit != nil {
		q.Limit(*d.Limit)
	}

	matched, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		if d.RaiseOnEmpty {
			return nil, apierror.NotFound("'%s(%v)' resource not found", c.model.Name, residual)
		}
		c.logger.Debug("empty collection", "model", c.model.Name, "params", residual)
	}

	if d.Explain {
		return &Result{Mode: ModeExplain, Explain: q.Explain()}, nil
	}

	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Total:  total,
		Start:  start,
		Fields: d.Fields,
	}
	if len(d.Fields) > 0 && len(q.Columns()) > 0 {
		res.Mode = ModeFields
		res.Maps = AddFieldNames(c.model, rows, d.Fields)
	} else {
		res.Mode = ModeRecords
		res.Rows = rows
	}
	return res, nil
}

// FilterOnly compiles just the filter portion of a parameter bag into a
// staged query, ignoring pagination and projection directives. The result
// is suitable for set-based bulk mutation.
func (c *Compiler) FilterOnly(bag map[string]any) (*Query, error) {
	q := New(c.sess, c.model)

	d, residual, err := params.Normalize(bag)
	if err != nil {
		return nil, err
	}
	iterables, err := PopIterables(c.model, residual)
	if err != nil {
		return nil, err
	}
	if d.Strict {
		check := make([]string, 0, len(residual))
		for k := range residual {
			check = append(check, k)
		}
		if err := c.model.CheckFieldsAllowed(check); err != nil {
			return nil, err
		}
	} else {
		FilterAllowed(c.model, residual)
	}
	if err := ApplyFilters(q, residual); err != nil {
		return nil, err
	}
	for _, cond := range iterables {
		q.Where(cond.Expr, cond.Args...)
	}
	return q, nil
}

// translateFilterError maps a type-mismatch during filter evaluation to
// not-found for single-item lookups and bad-request for collections,
// keeping the original cause.
func (c *Compiler) translateFilterError(err error, itemRequest bool, residual map[string]any) error {
	if !apierror.IsBadRequest(err) {
		return err
	}
	if itemRequest {
		return apierror.NotFoundWrap(err, "'%s(%v)' resource not found", c.model.Name, residual)
	}
	return err
}

// resolveOffset turns the page/start directives into a concrete offset.
// Page and explicit start are mutually exclusive.
func resolveOffset(d params.Directives) (int64, error) {
	if d.Page != nil && d.Start != nil {
		return 0, apierror.BadRequest("_page and _start are mutually exclusive")
	}
	switch {
	case d.Start != nil:
		if *d.Start < 0 {
			return 0, apierror.BadRequest("invalid _start: %d", *d.Start)
		}
		return *d.Start, nil
	case d.Page != nil:
		if *d.Page < 0 {
			return 0, apierror.BadRequest("invalid _page: %d", *d.Page)
		}
		if d.Limit == nil {
			return 0, nil
		}
		return *d.Page * *d.Limit, nil
	}
	return 0, nil
}

// applySort applies sort tokens in order as tie-breaks; a leading '-'
// means descending.
func applySort(q *Query, sortFields []string) {
	m := q.Model()
	for _, token := range sortFields {
		desc := strings.HasPrefix(token, "-")
		name := strings.TrimLeft(token, "-+")
		if _, ok := m.Field(name); !ok {
			// Relationship or unknown name that survived non-strict mode.
			continue
		}
		q.OrderBy(name, desc)
	}
}
