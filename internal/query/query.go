// Package query compiles normalized collection parameters into SQL:
// predicate compilation (equality and containment), field projection,
// sorting, pagination, and result metadata.
//
// All SQL is parameterized; values are never interpolated. Column lists
// are sorted where the source set is unordered so emitted SQL is
// deterministic.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/relstack-labs/relstore/internal/store"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Bookkeeping columns present on every table.
const (
	VersionColumn   = "_version"
	UpdatedAtColumn = "_updated_at"
)

// Cond is one WHERE fragment with its parameters.
type Cond struct {
	Expr string
	Args []any
}

// Query is a staged, composable collection query over one model. A Query
// may be partially built, handed back to GetCollection for further
// filtering, and finally executed.
type Query struct {
	model *schema.Model
	sess  *store.Session

	conds   []Cond
	columns []string // nil selects the full record
	orderBy []string
	limit   *int64
	offset  *int64
}

// New returns a fresh "select all" query for the model.
func New(sess *store.Session, m *schema.Model) *Query {
	return &Query{model: m, sess: sess}
}

// Model returns the model the query selects from.
func (q *Query) Model() *schema.Model {
	return q.model
}

// Session returns the session the query executes on.
func (q *Query) Session() *store.Session {
	return q.sess
}

// Clone returns a deep copy of the query.
func (q *Query) Clone() *Query {
	c := *q
	c.conds = append([]Cond(nil), q.conds...)
	c.columns = append([]string(nil), q.columns...)
	c.orderBy = append([]string(nil), q.orderBy...)
	if q.limit != nil {
		n := *q.limit
		c.limit = &n
	}
	if q.offset != nil {
		n := *q.offset
		c.offset = &n
	}
	return &c
}

// Where appends a raw parameterized condition.
func (q *Query) Where(expr string, args ...any) *Query {
	q.conds = append(q.conds, Cond{Expr: expr, Args: args})
	return q
}

// WhereEq appends an equality condition.
func (q *Query) WhereEq(col string, v any) *Query {
	if v == nil {
		return q.Where(col + " IS NULL")
	}
	return q.Where(col+" = ?", v)
}

// WhereIn appends a set-membership condition. An empty set matches nothing.
func (q *Query) WhereIn(col string, vals []any) *Query {
	if len(vals) == 0 {
		return q.Where("1 = 0")
	}
	placeholders := strings.Repeat("?, ", len(vals))
	placeholders = placeholders[:len(placeholders)-2]
	return q.Where(fmt.Sprintf("%s IN (%s)", col, placeholders), vals...)
}

// Select narrows the selected columns. Passing nothing restores the full
// record selection.
func (q *Query) Select(cols ...string) *Query {
	q.columns = cols
	return q
}

// Columns returns the projected column list, or nil for the full record.
func (q *Query) Columns() []string {
	return q.columns
}

// OrderBy appends a sort key.
func (q *Query) OrderBy(col string, desc bool) *Query {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q.orderBy = append(q.orderBy, col+" "+dir)
	return q
}

// Limit sets the row limit.
func (q *Query) Limit(n int64) *Query {
	q.limit = &n
	return q
}

// Offset sets the row offset.
func (q *Query) Offset(n int64) *Query {
	q.offset = &n
	return q
}

// HasModifiers reports whether limit, offset, or ordering is applied.
// Set-based bulk statements cannot run against a query with modifiers;
// callers must re-derive a plain primary-key query first.
func (q *Query) HasModifiers() bool {
	return q.limit != nil || q.offset != nil || len(q.orderBy) > 0
}

// selectColumns returns the columns for the SELECT list. The full record
// includes the bookkeeping columns.
func (q *Query) selectColumns() []string {
	if len(q.columns) > 0 {
		return q.columns
	}
	cols := q.model.ColumnNames()
	return append(cols, VersionColumn, UpdatedAtColumn)
}

// SQL assembles the SELECT statement and its parameters.
func (q *Query) SQL() (string, []any) {
	return q.buildSelect(strings.Join(q.selectColumns(), ", "), true)
}

func (q *Query) buildSelect(selectList string, paginate bool) (string, []any) {
	var b strings.Builder
	var args []any

	fmt.Fprintf(&b, "SELECT %s FROM %s", selectList, q.model.Table)
	if where, whereArgs := q.whereClause(); where != "" {
		b.WriteString(" WHERE " + where)
		args = whereArgs
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(q.orderBy, ", "))
	}
	if paginate {
		switch {
		case q.limit != nil:
			fmt.Fprintf(&b, " LIMIT %d", *q.limit)
			if q.offset != nil {
				fmt.Fprintf(&b, " OFFSET %d", *q.offset)
			}
		case q.offset != nil:
			// SQLite requires LIMIT before OFFSET.
			fmt.Fprintf(&b, " LIMIT -1 OFFSET %d", *q.offset)
		}
	}
	return b.String(), args
}

// Explain returns the compiled query's textual form without executing it.
func (q *Query) Explain() string {
	sql, _ := q.SQL()
	return sql
}

// Count returns the number of matching rows. Pagination modifiers are
// honored when set, so a limited query counts at most its limit.
func (q *Query) Count(ctx context.Context) (int64, error) {
	var sql string
	var args []any
	if q.limit != nil || q.offset != nil {
		inner, innerArgs := q.buildSelect(q.model.PKField(), true)
		sql = fmt.Sprintf("SELECT COUNT(*) FROM (%s)", inner)
		args = innerArgs
	} else {
		sql, args = q.buildSelect("COUNT(*)", false)
	}
	var n int64
	if err := q.sess.QueryRowContext(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Rows executes the query and scans every row into a value bag, decoding
// columns to their declared kinds.
func (q *Query) Rows(ctx context.Context) ([]schema.Values, error) {
	sql, args := q.SQL()
	rows, err := q.sess.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(q.model, rows)
}

// whereClause renders the WHERE clause and its parameters, without the
// leading keyword.
func (q *Query) whereClause() (string, []any) {
	if len(q.conds) == 0 {
		return "", nil
	}
	var args []any
	exprs := make([]string, len(q.conds))
	for i, c := range q.conds {
		exprs[i] = c.Expr
		args = append(args, c.Args...)
	}
	return strings.Join(exprs, " AND "), args
}

// DeleteSQL assembles a set-based DELETE for the query. A query with
// modifiers cannot be deleted set-based; re-derive by primary keys first.
func (q *Query) DeleteSQL() (string, []any, error) {
	if q.HasModifiers() {
		return "", nil, fmt.Errorf("cannot bulk delete a query with limit/offset/ordering")
	}
	sql := "DELETE FROM " + q.model.Table
	where, args := q.whereClause()
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, args, nil
}

// UpdateSQL assembles a set-based UPDATE applying the given SET fragments.
func (q *Query) UpdateSQL(sets []string, setArgs []any) (string, []any, error) {
	if q.HasModifiers() {
		return "", nil, fmt.Errorf("cannot bulk update a query with limit/offset/ordering")
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", q.model.Table, strings.Join(sets, ", "))
	where, args := q.whereClause()
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, append(setArgs, args...), nil
}

// PKs executes the query projected to the primary key only, keeping any
// modifiers, and returns the matching key values.
func (q *Query) PKs(ctx context.Context) ([]any, error) {
	c := q.Clone()
	c.columns = []string{q.model.PKField()}
	vals, err := c.Rows(ctx)
	if err != nil {
		return nil, err
	}
	pks := make([]any, 0, len(vals))
	for _, v := range vals {
		pks = append(pks, v[q.model.PKField()])
	}
	return pks, nil
}
