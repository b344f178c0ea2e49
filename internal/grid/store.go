package grid

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// SetValue edits a cell. Editing a row other than the one in edit commits
// that row first; if the commit fails the new edit is not applied.
func (t *Table) SetValue(ctx context.Context, row, col int, value string) error {
	if col < 0 || col >= t.nCols {
		return fmt.Errorf("column %d: %w", col, ErrColumnOutOfRange)
	}
	if t.columns[col].ReadOnly {
		return fmt.Errorf("column %s: %w", t.columns[col].Name, ErrColumnReadOnly)
	}
	if t.saved != nil && t.saved.row != row {
		if err := t.StoreLine(ctx); err != nil {
			return fmt.Errorf("commit row %d before editing row %d: %w", t.saved.row, row, err)
		}
	}

	line, err := t.materialize(row)
	if err != nil {
		return err
	}
	if line.ReadOnly {
		return fmt.Errorf("row %d: %w", row, ErrRowReadOnly)
	}

	if t.saved == nil {
		t.saved = &snapshot{
			row:    row,
			values: append([]string(nil), line.Values...),
			nulls:  append([]bool(nil), line.Nulls...),
		}
		t.lastRow = row
		t.emit(RowBecameDirty, row, nil)
	}
	line.Values[col] = value
	line.Nulls[col] = false
	return nil
}

// StoreLine persists the row in edit. With no row in edit it does nothing.
// On failure the row stays in edit so it can be retried or undone.
func (t *Table) StoreLine(ctx context.Context) error {
	if t.saved == nil {
		return nil
	}
	row := t.saved.row
	line, err := t.lineAt(row)
	if err != nil {
		return err
	}

	if line.Stored {
		err = t.update(ctx, row, line)
	} else {
		err = t.insert(ctx, row, line)
	}
	if err != nil {
		t.log.Logf("[WARN] can't store row %d of %s: %v", row, t.rel.Name, err)
		t.emit(EditFailed, row, err)
		return err
	}

	line.Stored = true
	t.saved = nil
	t.lastRow = -1
	t.emit(RowCommitted, row, nil)
	return nil
}

func (t *Table) update(ctx context.Context, row int, line *Line) error {
	var sets []string
	for _, i := range diffRows(t.saved.values, line.Values) {
		if i < t.offset {
			continue
		}
		c := t.columns[i]
		sets = append(sets, quoteIdent(c.Name)+"="+c.Quote(line.Values[i], t.exec))
	}
	if len(sets) == 0 {
		return nil
	}

	key := t.makeKey(t.saved.values)
	if key == "" {
		t.log.Logf("[ERROR] stored row %d of %s has no usable key", row, t.rel.Name)
		return fmt.Errorf("update row %d: %w", row, ErrNoKey)
	}
	stmt := "UPDATE " + t.rel.Name + " SET " + strings.Join(sets, ", ") + " WHERE " + key
	if err := t.exec.ExecuteVoid(ctx, stmt); err != nil {
		return fmt.Errorf("update row %d: %w", row, err)
	}
	return nil
}

func (t *Table) insert(ctx context.Context, row int, line *Line) error {
	var cols, vals, returning []string
	if t.rel.HasRowID() {
		returning = append(returning, t.rel.RowID)
	}
	for i := t.offset; i < t.nCols; i++ {
		c := t.columns[i]
		if c.ReadOnly || line.Values[i] == "" {
			continue
		}
		cols = append(cols, quoteIdent(c.Name))
		vals = append(vals, c.Quote(line.Values[i], t.exec))
	}
	if len(vals) == 0 {
		return fmt.Errorf("insert row %d: %w", row, ErrNothingToInsert)
	}
	// key columns left to their defaults come back from the insert
	for _, i := range t.keyCols {
		if line.Values[i] == "" {
			returning = append(returning, quoteIdent(t.columns[i].Name))
		}
	}

	stmt := "INSERT INTO " + t.rel.Name + "(" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"
	if len(returning) > 0 {
		stmt += " RETURNING " + strings.Join(returning, ", ")
	}
	set, err := t.exec.ExecuteInsert(ctx, stmt, len(returning) > 0)
	if err != nil {
		return fmt.Errorf("insert row %d: %w", row, err)
	}
	defer set.Close()
	if set.InsertedRowCount() <= 0 {
		return fmt.Errorf("insert row %d: %w", row, ErrNotInserted)
	}

	if t.rel.HasRowID() {
		line.Values[0] = set.InsertedRowIdentifier()
	}
	for _, i := range t.keyCols {
		if line.Values[i] != "" {
			continue
		}
		if v, isNull, ok := set.Lookup(t.columns[i].Name); ok && !isNull {
			t.setCell(line, i, v, false)
		}
	}

	line.Stored = true
	t.rowsStored++
	if t.rowsAdded == t.rowsStored {
		if err := t.appendRows(1); err != nil {
			t.log.Logf("[WARN] can't add a placeholder row to %s: %v", t.rel.Name, err)
		}
	} else {
		t.emit(RowCountChanged, row, nil)
	}

	key := t.makeKey(line.Values)
	if key == "" {
		// without a key the generated values can't be read back nor the row targeted again
		line.ReadOnly = true
		t.log.Logf("[WARN] inserted row %d of %s has no key, it is read-only now", row, t.rel.Name)
		t.emit(RowFrozen, row, nil)
		return nil
	}
	t.reread(ctx, row, line, key)
	return nil
}

// reread refreshes an inserted row to pick up server-side defaults.
func (t *Table) reread(ctx context.Context, row int, line *Line, key string) {
	set, err := t.exec.ExecuteRowSet(ctx, "SELECT * FROM "+t.rel.Name+" WHERE "+key)
	if err != nil {
		t.log.Logf("[WARN] can't read back row %d of %s: %v", row, t.rel.Name, err)
		return
	}
	defer set.Close()
	for i := t.offset; i < t.nCols; i++ {
		v, isNull, ok := set.Lookup(t.columns[i].Name)
		if !ok {
			continue
		}
		if t.columns[i].Class == ClassBinary && !isNull {
			line.Values[i], line.Nulls[i] = BinaryPlaceholder, false
			continue
		}
		t.setCell(line, i, v, isNull)
	}
}

// UndoLine restores the row in edit from its snapshot.
func (t *Table) UndoLine() {
	if t.saved == nil {
		return
	}
	row := t.saved.row
	if line := t.peekLine(row); line != nil && line.materialized() {
		copy(line.Values, t.saved.values)
		copy(line.Nulls, t.saved.nulls)
	}
	t.saved = nil
	t.lastRow = -1
	t.emit(RowReverted, row, nil)
}

// MakeKey builds the WHERE fragment identifying line. It returns "" when a
// key value is missing.
func (t *Table) MakeKey(line *Line) string {
	if line == nil || !line.materialized() {
		return ""
	}
	return t.makeKey(line.Values)
}

func (t *Table) makeKey(values []string) string {
	if len(t.keyCols) > 0 {
		parts := make([]string, 0, len(t.keyCols))
		for _, i := range t.keyCols {
			c := t.columns[i]
			v := values[i]
			if v == "" {
				return ""
			}
			switch {
			case v == EmptySentinel && c.TypeName == "text":
				v = ""
			case v == EscapedEmpty:
				v = EmptySentinel
			}
			part := quoteIdent(c.Name) + " = " + t.exec.QuoteStringLiteral(v)
			if c.TypeName != "" {
				part += "::" + c.CastType()
			}
			parts = append(parts, part)
		}
		return strings.Join(parts, " AND ")
	}
	if t.rel.HasRowID() && values[0] != "" {
		return t.rel.RowID + " = " + values[0]
	}
	return ""
}

// AppendRows adds n empty rows at the end of the table.
func (t *Table) AppendRows(n int) error {
	if !t.canInsert {
		return ErrTableReadOnly
	}
	if n <= 0 {
		return nil
	}
	return t.appendRows(n)
}

func (t *Table) appendRows(n int) error {
	t.rowsAdded += n
	if _, err := t.lineAt(t.GetNumberRows() - 1); err != nil {
		t.rowsAdded -= n
		return err
	}
	t.checkInvariants()
	t.emit(RowCountChanged, t.GetNumberRows()-1, nil)
	return nil
}

// diffRows returns the indexes of the columns that differ.
func diffRows(oldRow, newRow []string) []int {
	if len(oldRow) != len(newRow) {
		return nil
	}
	var modified []int
	for i := range oldRow {
		if oldRow[i] != newRow[i] {
			modified = append(modified, i)
		}
	}
	return modified
}

func quoteIdent(ident string) string { return pq.QuoteIdentifier(ident) }
