package grid

import (
	"context"
	"strings"
)

// SplitLine tokenizes the first line of text into fields separated by sep.
// A field starting with quote runs until a quote followed by sep or the line
// end, and may span newlines. A trailing separator adds no empty field. rest
// is the text after the first line.
func SplitLine(text string, quote, sep rune) (fields []string, rest string) {
	rs := []rune(text)
	start, pos := 0, 0
	inQuotes, inData := false, false
	end := len(rs) // index where rest begins

	for pos < len(rs) {
		r := rs[pos]
		if !inQuotes {
			if r == '\n' {
				end = pos + 1
				break
			}
			if r == '\r' && (pos+1 == len(rs) || rs[pos+1] == '\n') {
				end = min(pos+2, len(rs))
				break
			}
		}
		if !inData {
			inData = true
			if r == quote {
				inQuotes = true
				pos++
				start = pos
				continue
			}
		}
		if inQuotes && r == quote && (pos+1 == len(rs) || rs[pos+1] == sep || rs[pos+1] == '\r' || rs[pos+1] == '\n') {
			fields = append(fields, string(rs[start:pos]))
			pos++
			if pos < len(rs) && rs[pos] == sep {
				pos++
			}
			start = pos
			inQuotes, inData = false, false
			continue
		}
		if !inQuotes && r == sep {
			fields = append(fields, string(rs[start:pos]))
			pos++
			start = pos
			inData = false
			continue
		}
		pos++
	}

	if start < pos {
		field := rs[start:pos]
		if inQuotes && field[len(field)-1] == quote {
			field = field[:len(field)-1]
		}
		fields = append(fields, string(field))
	}
	return fields, string(rs[end:])
}

// PasteOptions controls how pasted fields map onto columns.
type PasteOptions struct {
	// UseSerialValues is asked once when the table has serial columns; false
	// leaves them to their sequence. nil means skip them.
	UseSerialValues func() bool
}

// Paste writes the first line of text into the trailing placeholder row
// through SetValue. Fields start after the row identifier column. The row
// stays in edit.
func (t *Table) Paste(ctx context.Context, text string, opts PasteOptions) (bool, error) {
	fields, _ := SplitLine(text, t.opts.QuoteChar, t.opts.ColumnSeparator)
	return t.pasteFields(ctx, fields, t.skipSerial(opts))
}

// PasteLines pastes every non-empty line of text as a new row, committing
// each one before the next. It returns the number of rows stored.
func (t *Table) PasteLines(ctx context.Context, text string, opts PasteOptions) (int, error) {
	skip := t.skipSerial(opts)
	stored := 0
	for text != "" {
		var fields []string
		fields, text = SplitLine(text, t.opts.QuoteChar, t.opts.ColumnSeparator)
		if len(fields) == 0 || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "") {
			continue
		}
		pasted, err := t.pasteFields(ctx, fields, skip)
		if err != nil {
			return stored, err
		}
		if !pasted {
			continue
		}
		if err := t.StoreLine(ctx); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

func (t *Table) skipSerial(opts PasteOptions) bool {
	for _, c := range t.columns {
		if c.Serial != NotSerial {
			return opts.UseSerialValues == nil || !opts.UseSerialValues()
		}
	}
	return false
}

func (t *Table) pasteFields(ctx context.Context, fields []string, skipSerial bool) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	if !t.canInsert {
		return false, ErrTableReadOnly
	}
	row := t.GetNumberRows() - 1
	pasted := false
	for col := t.offset; col < t.nCols && col-t.offset < len(fields); col++ {
		c := t.columns[col]
		if c.ReadOnly || (skipSerial && c.Serial != NotSerial) {
			continue
		}
		if err := t.SetValue(ctx, row, col, fields[col-t.offset]); err != nil {
			return pasted, err
		}
		pasted = true
	}
	return pasted, nil
}
