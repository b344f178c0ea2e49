package dblib

import (
	"strings"

	"github.com/lib/pq"

	"editgrid/internal/grid"
)

// SortColumn is one ORDER BY term. Name is unquoted.
type SortColumn struct {
	Name string
	Asc  bool
}

func (sc SortColumn) String() string {
	if sc.Asc {
		return pq.QuoteIdentifier(sc.Name) + " ASC"
	}
	return pq.QuoteIdentifier(sc.Name) + " DESC"
}

// Filter keeps or drops the rows holding one cell value. Value is the cell
// text as the grid shows it, so grid.EmptySentinel stands for the empty string.
type Filter struct {
	Column  string
	Value   string
	IsNull  bool
	Text    bool // compare as a quoted string literal
	Exclude bool
}

// String renders the filter as a boolean SQL expression.
func (f Filter) String() string {
	col := pq.QuoteIdentifier(f.Column)
	if f.IsNull {
		if f.Exclude {
			return col + " IS NOT NULL"
		}
		return col + " IS NULL"
	}

	value := f.Value
	if f.Text {
		switch value {
		case grid.EmptySentinel:
			value = "''"
		case grid.EscapedEmpty:
			value = pq.QuoteLiteral(grid.EmptySentinel)
		default:
			value = strings.TrimSpace(pq.QuoteLiteral(value))
		}
	}
	if f.Exclude {
		return col + " IS DISTINCT FROM " + value
	}
	return col + " = " + value
}
