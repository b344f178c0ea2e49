// Package grid is the editable data layer behind a table grid. A Table caches
// the rows of one query result, materializes them on first access, tracks a
// single row in edit and persists edits as key-targeted SQL statements.
package grid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/mattn/go-runewidth"
)

var (
	ErrRowOutOfRange    = errors.New("row out of range")
	ErrColumnOutOfRange = errors.New("column out of range")
	ErrColumnReadOnly   = errors.New("column is read-only")
	ErrRowReadOnly      = errors.New("row is read-only")
	ErrTableReadOnly    = errors.New("table does not accept inserts")
	ErrProducerClosed   = errors.New("data set already closed")
	ErrPoolExhausted    = errors.New("row pool capacity exceeded")
	ErrNothingToInsert  = errors.New("no values to insert")
	ErrNotInserted      = errors.New("insert affected no rows")
	// ErrNoKey means a stored row could not be identified for UPDATE or DELETE.
	// It points at a broken column model rather than bad input.
	ErrNoKey = errors.New("row can't be identified by key")
)

// Producer is the result of the grid's query, consulted one row at a time.
// Positions are zero-based.
type Producer interface {
	RowCount() int
	ColumnCount() int
	ColumnTypeName(i int) string
	ColumnName(i int) string
	Seek(row int) error
	CurrentPosition() int
	ReadColumn(i int) string
	IsNull(i int) bool
	Close() error
}

// RowSet is the result of a statement run through an Executor.
// Lookup reads the current row of a query result.
type RowSet interface {
	InsertedRowCount() int64
	InsertedRowIdentifier() string
	Lookup(column string) (value string, isNull bool, ok bool)
	MoveNext() bool
	Close() error
}

// Executor runs the statements the grid synthesizes.
type Executor interface {
	Quoter
	ExecuteVoid(ctx context.Context, stmt string) error
	ExecuteRowSet(ctx context.Context, stmt string) (RowSet, error)
	// ExecuteInsert runs an INSERT, returning tells whether it carries a RETURNING clause.
	ExecuteInsert(ctx context.Context, stmt string, returning bool) (RowSet, error)
}

// snapshot is the saved copy of the row in edit.
type snapshot struct {
	row    int
	values []string
	nulls  []bool
}

// Table is the virtual table engine. It is not safe for concurrent use.
type Table struct {
	rel      *Relation
	producer Producer
	exec     Executor
	opts     Options
	log      lgr.L

	columns []Column
	nCols   int
	offset  int   // 1 when column 0 is the row identifier
	keyCols []int // column indexes of the primary key, attnum order

	dataPool  *linePool
	addPool   *linePool
	lineIndex []int

	nRows       int
	rowsCached  int
	rowsAdded   int
	rowsStored  int
	rowsDeleted int
	canInsert   bool

	lastRow int
	saved   *snapshot

	listeners []Listener
}

// New binds a query result to its source relation. rel may be nil when the
// catalog can't describe the result, in which case every column is read-only.
func New(rel *Relation, producer Producer, exec Executor, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	t := &Table{
		rel:      rel,
		producer: producer,
		exec:     exec,
		opts:     opts,
		log:      opts.Logger,
		nRows:    producer.RowCount(),
		nCols:    producer.ColumnCount(),
		lastRow:  -1,
	}
	if t.rel == nil {
		t.rel = &Relation{}
	}
	if err := t.bindColumns(); err != nil {
		return nil, err
	}

	t.dataPool = newLinePool(t.nRows, opts.MaxPoolLines, t.log)
	t.addPool = newLinePool(appendPoolSize, opts.MaxPoolLines, t.log)
	t.lineIndex = make([]int, t.nRows)
	for i := range t.lineIndex {
		t.lineIndex[i] = i
	}
	if t.canInsert {
		// an empty line waiting for inserts
		t.rowsAdded = 1
	}
	if t.nRows == 0 {
		t.releaseProducer()
	}
	t.log.Logf("[DEBUG] bound %s: %d rows, %d columns, inserts %v", t.rel.Name, t.nRows, t.nCols, t.canInsert)
	return t, nil
}

func (t *Table) bindColumns() error {
	t.columns = make([]Column, t.nCols)
	if len(t.rel.Attributes) == 0 {
		for i := range t.columns {
			t.columns[i] = untypedColumn(t.producer.ColumnName(i), t.producer.ColumnTypeName(i))
		}
		return nil
	}

	if t.rel.HasRowID() {
		t.offset = 1
		t.columns[0] = rowIDColumn(t.rel.RowID)
	}
	if len(t.rel.Attributes)+t.offset != t.nCols {
		return fmt.Errorf("relation %s describes %d columns, query returned %d",
			t.rel.Name, len(t.rel.Attributes)+t.offset, t.nCols)
	}

	attnums := newAttnumMap(t.rel)
	inKey := map[int]bool{}
	for _, attnum := range sortedCopy(t.rel.PrimaryKey) {
		idx := attnums.column(attnum)
		if idx < 0 {
			return fmt.Errorf("primary key attribute %d of %s is not in the result", attnum, t.rel.Name)
		}
		inKey[idx] = true
		t.keyCols = append(t.keyCols, idx+t.offset)
	}

	editable := t.rel.Editable()
	for i, attr := range t.rel.Attributes {
		col := NewColumn(attr)
		if !editable {
			// no oid and no primary key: nothing can target single rows
			col.ReadOnly = true
		}
		col.PrimaryKey = inKey[attnums.column(attr.AttNum)]
		if !col.ReadOnly {
			t.canInsert = true
		}
		t.columns[i+t.offset] = col
	}
	return nil
}

// Close releases the producer if it is still held.
func (t *Table) Close() error {
	if t.producer == nil {
		return nil
	}
	err := t.producer.Close()
	t.producer = nil
	return err
}

func (t *Table) releaseProducer() {
	if err := t.Close(); err != nil {
		t.log.Logf("[WARN] can't close data set of %s: %v", t.rel.Name, err)
	}
}

// Subscribe registers a listener for grid events.
func (t *Table) Subscribe(l Listener) { t.listeners = append(t.listeners, l) }

func (t *Table) emit(kind EventKind, row int, err error) {
	ev := Event{Kind: kind, Row: row, Rows: t.GetNumberRows(), StoredRows: t.GetNumberStoredRows(), Err: err}
	for _, l := range t.listeners {
		l(ev)
	}
}

// checkInvariants panics when counters and the logical index disagree.
func (t *Table) checkInvariants() {
	if len(t.lineIndex) != t.nRows-t.rowsDeleted || t.rowsStored > t.rowsAdded || t.rowsStored < 0 {
		panic(fmt.Sprintf("grid: inconsistent counters: index=%d rows=%d deleted=%d added=%d stored=%d",
			len(t.lineIndex), t.nRows, t.rowsDeleted, t.rowsAdded, t.rowsStored))
	}
}

func (t *Table) GetNumberRows() int { return t.nRows + t.rowsAdded - t.rowsDeleted }
func (t *Table) GetNumberStoredRows() int { return t.nRows + t.rowsStored - t.rowsDeleted }
func (t *Table) GetNumberCols() int { return t.nCols }

// surviving is the number of query rows not deleted.
func (t *Table) surviving() int { return t.nRows - t.rowsDeleted }

// CanInsert reports whether the table keeps a placeholder row for inserts.
func (t *Table) CanInsert() bool { return t.canInsert }

// Relation returns the source relation.
func (t *Table) Relation() *Relation { return t.rel }

// Options returns the configuration the table was built with.
func (t *Table) Options() Options { return t.opts }

// lineAt resolves a logical row to its cache line, creating an empty one if needed.
func (t *Table) lineAt(row int) (*Line, error) {
	if row < 0 || row >= t.GetNumberRows() {
		return nil, fmt.Errorf("row %d of %d: %w", row, t.GetNumberRows(), ErrRowOutOfRange)
	}
	var line *Line
	if row < t.surviving() {
		line = t.dataPool.Get(t.lineIndex[row])
	} else {
		line = t.addPool.Get(row - t.surviving())
	}
	if line == nil {
		return nil, fmt.Errorf("row %d: %w", row, ErrPoolExhausted)
	}
	return line, nil
}

// peekLine resolves a logical row without creating a cache line.
func (t *Table) peekLine(row int) *Line {
	if row < 0 || row >= t.GetNumberRows() {
		return nil
	}
	if row < t.surviving() {
		return t.dataPool.peek(t.lineIndex[row])
	}
	return t.addPool.peek(row - t.surviving())
}

// materialize returns the line for row with its value vector populated,
// reading query rows from the producer on first access.
func (t *Table) materialize(row int) (*Line, error) {
	line, err := t.lineAt(row)
	if err != nil {
		return nil, err
	}
	if line.materialized() {
		return line, nil
	}
	if row < t.surviving() {
		if err := t.fetch(line, t.lineIndex[row]); err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		return line, nil
	}
	line.alloc(t.nCols)
	return line, nil
}

func (t *Table) fetch(line *Line, pos int) error {
	if t.producer == nil {
		t.log.Logf("[ERROR] unexpected empty cache line: data set already closed")
		return ErrProducerClosed
	}
	if t.producer.CurrentPosition() != pos {
		if err := t.producer.Seek(pos); err != nil {
			return fmt.Errorf("seek to %d: %w", pos, err)
		}
	}
	line.alloc(t.nCols)
	for i := 0; i < t.nCols; i++ {
		isNull := t.producer.IsNull(i)
		if !isNull && (t.columns[i].Class == ClassBinary || t.producer.ColumnTypeName(i) == "bytea") {
			line.Values[i] = BinaryPlaceholder
			continue
		}
		t.setCell(line, i, t.producer.ReadColumn(i), isNull)
	}
	line.Stored = true
	t.rowsCached++
	if t.rowsCached == t.nRows {
		t.log.Logf("[DEBUG] all %d rows of %s cached, releasing data set", t.nRows, t.rel.Name)
		t.releaseProducer()
	}
	return nil
}

// setCell stores a value read from the database, keeping NULL, the empty
// string and a literal '' apart.
func (t *Table) setCell(line *Line, col int, value string, isNull bool) {
	line.Nulls[col] = isNull
	switch {
	case isNull:
		value = ""
		if t.opts.IndicateNull {
			value = t.opts.NullMarker
		}
	case value == "":
		value = EmptySentinel
	case value == EmptySentinel:
		value = EscapedEmpty
	case t.columns[col].Class == ClassBoolean:
		value = canonicalBool(value)
	}
	line.Values[col] = value
}

func canonicalBool(value string) string {
	if value == "on" || strings.HasPrefix(value, "t") || strings.HasPrefix(value, "T") ||
		strings.HasPrefix(value, "1") || strings.HasPrefix(value, "y") || strings.HasPrefix(value, "Y") {
		return "TRUE"
	}
	return "FALSE"
}

// GetValue returns the cell text, materializing the row if needed.
func (t *Table) GetValue(row, col int) (string, error) {
	if col < 0 || col >= t.nCols {
		return "", fmt.Errorf("column %d: %w", col, ErrColumnOutOfRange)
	}
	line, err := t.materialize(row)
	if err != nil {
		return "", err
	}
	return line.Values[col], nil
}

// GetIsNull reports whether a materialized cell holds NULL.
func (t *Table) GetIsNull(row, col int) bool {
	line := t.peekLine(row)
	if line == nil || !line.materialized() || col < 0 || col >= t.nCols {
		return false
	}
	return line.Nulls[col]
}

// IsReadOnly reports whether the cell can't be edited.
func (t *Table) IsReadOnly(row, col int) bool {
	if col < 0 || col >= t.nCols {
		return true
	}
	if t.columns[col].ReadOnly {
		return true
	}
	line := t.peekLine(row)
	return line != nil && line.ReadOnly
}

// GetAttr returns the column model.
func (t *Table) GetAttr(col int) Column { return t.columns[col] }

// Columns returns a copy of all column models.
func (t *Table) Columns() []Column {
	res := make([]Column, len(t.columns))
	copy(res, t.columns)
	return res
}

// CheckInCache reports whether a row holds its values, without fetching it.
// Appended rows always do.
func (t *Table) CheckInCache(row int) bool {
	if row < 0 || row >= t.GetNumberRows() {
		return false
	}
	if row >= t.surviving() {
		return true
	}
	if !t.dataPool.IsFilled(t.lineIndex[row]) {
		return false
	}
	return t.dataPool.peek(t.lineIndex[row]).materialized()
}

// IsLineSaved reports whether no row is in edit.
func (t *Table) IsLineSaved() bool { return t.saved == nil }

// LastRow is the row in edit, -1 if none.
func (t *Table) LastRow() int { return t.lastRow }

func (t *Table) IsColText(col int) bool {
	return !t.columns[col].Numeric && t.columns[col].Class != ClassBoolean
}

func (t *Table) IsColBoolean(col int) bool { return t.columns[col].Class == ClassBoolean }
func (t *Table) NeedsResizing(col int) bool { return t.columns[col].NeedsResize }

func (t *Table) GetColLabelValue(col int) string {
	if col < 0 || col >= t.nCols {
		return ""
	}
	return t.columns[col].Label()
}

// GetColDescription expands the configured description template for col.
func (t *Table) GetColDescription(col int) string {
	if col < 0 || col >= t.nCols {
		return ""
	}
	return t.columns[col].Describe(t.opts.DescriptionFormat, col)
}

// GetRowLabelValue numbers stored rows from 1 and marks unsaved rows with "*".
func (t *Table) GetRowLabelValue(row int) string {
	if row < t.surviving() {
		return strconv.Itoa(row + 1)
	}
	if line := t.peekLine(row); line != nil && line.Stored {
		return strconv.Itoa(row + 1)
	}
	return "*"
}

const maxSuggestedWidth = 40

// SuggestedWidth measures the label and the cached values among the first
// sample rows. Wide text columns are capped.
func (t *Table) SuggestedWidth(col, sample int) int {
	if col < 0 || col >= t.nCols {
		return 0
	}
	width := 0
	for _, part := range strings.Split(t.columns[col].Label(), "\n") {
		width = max(width, runewidth.StringWidth(part))
	}
	for row := 0; row < min(sample, t.GetNumberRows()); row++ {
		if line := t.peekLine(row); line != nil && line.materialized() {
			width = max(width, runewidth.StringWidth(line.Values[col]))
		}
	}
	if t.columns[col].NeedsResize && width > maxSuggestedWidth {
		return maxSuggestedWidth
	}
	return width
}
