package dblib

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"editgrid/internal/grid"
)

// filterJoin separates row filter terms.
const filterJoin = " \n    AND "

// Query is the SELECT feeding a grid: the whole relation, optionally
// filtered, sorted and limited.
type Query struct {
	Table   string   // qualified, quoted relation name
	RowID   string   // row identifier column, "" if none
	Key     []string // primary key columns in index order
	Where   string   // free-form row filter
	OrderBy string   // free-form order, replaced by the first Sort call
	Limit   int      // 0 for no limit

	sorts   []SortColumn
	filters []Filter
}

// NewQuery prepares the query over rel ordered by its primary key, or by
// the row identifier when there is no key.
func NewQuery(rel *grid.Relation) *Query {
	q := &Query{Table: rel.Name, RowID: rel.RowID}
	for _, attnum := range rel.PrimaryKey {
		for _, a := range rel.Attributes {
			if a.AttNum == attnum {
				q.Key = append(q.Key, a.Name)
				break
			}
		}
	}
	return q
}

// Sort adds an ORDER BY term for column or flips the direction of an
// existing one. The default key order is dropped on the first call.
func (q *Query) Sort(column string, asc bool) {
	q.OrderBy = ""
	if i := slices.IndexFunc(q.sorts, func(sc SortColumn) bool { return sc.Name == column }); i >= 0 {
		q.sorts[i].Asc = asc
		return
	}
	q.sorts = append(q.sorts, SortColumn{Name: column, Asc: asc})
}

// ClearSort restores the default key order.
func (q *Query) ClearSort() {
	q.sorts = nil
	q.OrderBy = ""
}

// Sorts returns the explicit ORDER BY terms.
func (q *Query) Sorts() []SortColumn { return slices.Clone(q.sorts) }

// AddFilter narrows the rows to those matching f.
func (q *Query) AddFilter(f Filter) { q.filters = append(q.filters, f) }

// ClearFilters drops all filters, including Where.
func (q *Query) ClearFilters() {
	q.filters = nil
	q.Where = ""
}

// Filters returns the cell filters added so far.
func (q *Query) Filters() []Filter { return slices.Clone(q.filters) }

// WhereClause joins the free-form filter and the cell filters.
func (q *Query) WhereClause() string {
	var terms []string
	if w := strings.TrimSpace(q.Where); w != "" {
		terms = append(terms, w)
	}
	for _, f := range q.filters {
		terms = append(terms, f.String())
	}
	return strings.Join(terms, filterJoin)
}

// OrderClause is the explicit order, the sort terms or the default key order.
func (q *Query) OrderClause() string {
	if o := strings.TrimSpace(q.OrderBy); o != "" {
		return o
	}
	if len(q.sorts) > 0 {
		terms := make([]string, len(q.sorts))
		for i, sc := range q.sorts {
			terms[i] = sc.String()
		}
		return strings.Join(terms, ", ")
	}
	if len(q.Key) > 0 {
		terms := make([]string, len(q.Key))
		for i, k := range q.Key {
			terms[i] = pq.QuoteIdentifier(k) + " ASC"
		}
		return strings.Join(terms, ", ")
	}
	if q.RowID != "" {
		return q.RowID + " ASC"
	}
	return ""
}

// BuildSelect renders the statement. The row identifier, when present, is
// selected first so it becomes column 0 of the grid.
func BuildSelect(q *Query) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.RowID != "" {
		b.WriteString(q.RowID + ", ")
	}
	b.WriteString("* FROM " + q.Table)
	if where := q.WhereClause(); where != "" {
		b.WriteString(" WHERE " + where)
	}
	if order := q.OrderClause(); order != "" {
		b.WriteString("\n ORDER BY " + order)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String()
}

// CheckAccess probes that the current role may read table.
func CheckAccess(ctx context.Context, q Querier, table string) error {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT count(*) FROM "+table+" WHERE false").Scan(&n); err != nil {
		return fmt.Errorf("no access to %s: %w", table, err)
	}
	return nil
}

// ReadOnlyHint explains why rows of rel can't be edited, "" if they can.
func ReadOnlyHint(rel *grid.Relation) string {
	switch {
	case rel.Kind != 'r':
		return "relation is not a table, rows are read-only"
	case !rel.Editable():
		return "table has no primary key, rows are read-only and can't be inserted"
	default:
		return ""
	}
}
