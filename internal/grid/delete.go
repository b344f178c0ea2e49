package grid

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// DeleteRows deletes count rows starting at pos, one statement per row. It
// stops at the first failing statement and reports whether any row was deleted.
// Rows never saved are only cleared.
func (t *Table) DeleteRows(ctx context.Context, pos, count int) (bool, error) {
	done := 0
	defer func() {
		if done > 0 {
			t.emit(RowCountChanged, pos, nil)
		}
	}()

	for i := 0; i < count && pos < t.GetNumberRows(); i++ {
		line, err := t.materialize(pos)
		if err != nil {
			return done > 0, err
		}
		if !line.Stored {
			t.clearLine(pos, line)
			pos++
			continue
		}

		values := line.Values
		if t.saved != nil && t.saved.row == pos {
			values = t.saved.values
		}
		key := t.makeKey(values)
		if key == "" {
			t.log.Logf("[ERROR] stored row %d of %s has no usable key", pos, t.rel.Name)
			err := fmt.Errorf("delete row %d: %w", pos, ErrNoKey)
			t.emit(EditFailed, pos, err)
			return done > 0, err
		}
		if err := t.exec.ExecuteVoid(ctx, "DELETE FROM "+t.rel.Name+" WHERE "+key); err != nil {
			err = fmt.Errorf("delete row %d: %w", pos, err)
			t.emit(EditFailed, pos, err)
			return done > 0, err
		}

		t.shiftEdit(pos)
		if pos < t.surviving() {
			t.lineIndex = slices.Delete(t.lineIndex, pos, pos+1)
			t.rowsDeleted++
		} else {
			t.addPool.Delete(pos - t.surviving())
			t.rowsAdded--
			t.rowsStored--
		}
		t.checkInvariants()
		done++
	}
	return done > 0, nil
}

// shiftEdit keeps the row in edit pointing at the same line after pos is removed.
func (t *Table) shiftEdit(pos int) {
	switch {
	case t.saved == nil || t.saved.row < pos:
	case t.saved.row == pos:
		t.saved = nil
		t.lastRow = -1
	default:
		t.saved.row--
		t.lastRow = t.saved.row
	}
}

func (t *Table) clearLine(row int, line *Line) {
	for i := range line.Values {
		line.Values[i] = ""
		line.Nulls[i] = false
	}
	if t.saved != nil && t.saved.row == row {
		t.saved = nil
		t.lastRow = -1
		t.emit(RowReverted, row, nil)
	}
}

// DeleteSelected deletes the given rows one at a time, last row first. After a
// failure cont decides whether to go on; a nil cont stops. It returns the
// number of rows deleted and every failure.
func (t *Table) DeleteSelected(ctx context.Context, rows []int, cont func(row int, err error) bool) (int, error) {
	sorted := slices.Compact(sortedCopy(rows))
	slices.Reverse(sorted)

	var errs error
	deleted := 0
	for _, row := range sorted {
		ok, err := t.DeleteRows(ctx, row, 1)
		if ok {
			deleted++
		}
		if err != nil {
			errs = multierror.Append(errs, err)
			if cont == nil || !cont(row, err) {
				break
			}
		}
	}
	return deleted, errs
}
