package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"

	"editgrid/internal/celledit"
	"editgrid/internal/dblib"
	"editgrid/internal/grid"
)

const defaultPageSize = 20

const helpText = `Commands (rows and columns are numbered from 1, columns may be given by name):
  show [from] [n]              print n rows starting at row from
  get R C                      print a cell
  set R C text...              edit a cell, '' is an empty string
  null R C                     set a cell to NULL
  save                         store the row in edit
  undo                         discard the row in edit
  append [n]                   add n empty rows
  delete R [n] | delete R,R,.. delete rows
  paste text                   insert rows, lines split by \n, fields by the paste separator
  pasterow text                fill the empty row with one line and keep it in edit
  cols                         list columns
  filter include|exclude R C   filter by the value of a cell
  filter clear                 drop all filters
  sort asc|desc C              sort by a column
  sort clear                   back to the key order
  limit N                      limit the number of rows, 0 for none
  refresh                      store pending edits and run the query again
  help, quit`

// opener runs the query and binds a grid to its result.
type opener interface {
	Open(ctx context.Context, q *dblib.Query) (*grid.Table, error)
}

// pgOpener binds grids to a PostgreSQL relation through one session.
type pgOpener struct {
	sess *dblib.Session
	rel  *grid.Relation
	opts grid.Options
}

func (o *pgOpener) Open(ctx context.Context, q *dblib.Query) (*grid.Table, error) {
	res := dblib.RunQuery(ctx, o.sess, dblib.BuildSelect(q))
	if err := res.Wait(ctx); err != nil {
		if res.ConnectionBad() {
			return nil, fmt.Errorf("connection lost: %w", err)
		}
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	tbl, err := grid.New(o.rel, res, o.sess, o.opts)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bind %s: %w", q.Table, err)
	}
	return tbl, nil
}

// Shell is the interactive command session over one table.
type Shell struct {
	open      opener
	query     *dblib.Query
	tbl       *grid.Table
	cols      *FuzzySelector
	useSerial bool
	out       io.Writer
	log       lgr.L
	pageSize  int
	next      int // row shown next by a bare "show"
}

// NewShell makes a shell, Refresh binds the first grid.
func NewShell(open opener, q *dblib.Query, useSerial bool, out io.Writer, log lgr.L) *Shell {
	if log == nil {
		log = lgr.Std
	}
	return &Shell{open: open, query: q, useSerial: useSerial, out: out, log: log, pageSize: defaultPageSize}
}

// Refresh stores a pending edit, then reruns the query and rebinds the grid.
func (s *Shell) Refresh(ctx context.Context) error {
	if s.tbl != nil {
		if err := s.tbl.StoreLine(ctx); err != nil {
			return fmt.Errorf("pending edit not stored, save or undo it first: %w", err)
		}
	}
	tbl, err := s.open.Open(ctx, s.query)
	if err != nil {
		return err
	}
	if s.tbl != nil {
		if err := s.tbl.Close(); err != nil {
			s.log.Logf("[WARN] can't close previous grid: %v", err)
		}
	}
	s.tbl = tbl
	s.tbl.Subscribe(s.onEvent)

	names := make([]string, tbl.GetNumberCols())
	for i := range names {
		names[i] = tbl.GetAttr(i).Name
	}
	s.cols = NewFuzzySelector(names)
	s.next = 0
	s.log.Logf("[DEBUG] grid bound: %d rows, %d stored", tbl.GetNumberRows(), tbl.GetNumberStoredRows())
	return nil
}

func (s *Shell) onEvent(e grid.Event) {
	switch e.Kind {
	case grid.EditFailed:
		s.log.Logf("[WARN] row %d: %v", e.Row+1, e.Err)
	case grid.RowFrozen:
		fmt.Fprintf(s.out, "row %d was inserted but can't be identified, it is read-only now\n", e.Row+1)
	default:
		s.log.Logf("[DEBUG] %s row %d, rows %d, stored %d", e.Kind, e.Row+1, e.Rows, e.StoredRows)
	}
}

// Close releases the grid.
func (s *Shell) Close() error {
	if s.tbl == nil {
		return nil
	}
	return s.tbl.Close()
}

// Run reads commands from in until quit or EOF. Command errors are printed, not returned.
func (s *Shell) Run(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if prompt {
			fmt.Fprint(s.out, "editgrid> ")
		}
		if !scanner.Scan() {
			break
		}
		quit, err := s.executeCommand(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	if s.tbl != nil && !s.tbl.IsLineSaved() {
		return s.tbl.StoreLine(ctx)
	}
	return nil
}

// fields splits off the first n whitespace separated words and returns the rest of line untouched.
func fields(line string, n int) ([]string, string) {
	var res []string
	rest := strings.TrimLeft(line, " \t")
	for len(res) < n && rest != "" {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			res = append(res, rest)
			rest = ""
			break
		}
		res = append(res, rest[:i])
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	return res, rest
}

func (s *Shell) executeCommand(ctx context.Context, command string) (bool, error) {
	command = strings.TrimSpace(command)
	if command == "" || strings.HasPrefix(command, "#") {
		return false, nil
	}

	parts := strings.Fields(command)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	if s.tbl == nil && cmd != "quit" && cmd != "q" && cmd != "help" && cmd != "h" && cmd != "refresh" {
		return false, errors.New("no data, run refresh")
	}

	switch cmd {
	case "quit", "q":
		if s.tbl != nil && !s.tbl.IsLineSaved() {
			if err := s.tbl.StoreLine(ctx); err != nil {
				return false, fmt.Errorf("pending edit not stored, save or undo it first: %w", err)
			}
		}
		return true, nil
	case "help", "h":
		fmt.Fprintln(s.out, helpText)
	case "show", "s":
		return false, s.show(args)
	case "get":
		return false, s.get(args)
	case "set":
		head, rest := fields(command, 3)
		if len(head) < 3 {
			return false, errors.New("usage: set R C text")
		}
		return false, s.set(ctx, head[1], head[2], rest)
	case "null":
		if len(args) != 2 {
			return false, errors.New("usage: null R C")
		}
		row, col, err := s.cell(args[0], args[1])
		if err != nil {
			return false, err
		}
		return false, s.tbl.SetValue(ctx, row, col, "")
	case "save":
		if s.tbl.IsLineSaved() {
			fmt.Fprintln(s.out, "nothing to save")
			return false, nil
		}
		row := s.tbl.LastRow()
		if err := s.tbl.StoreLine(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "row %s stored\n", s.tbl.GetRowLabelValue(row))
	case "undo":
		if s.tbl.IsLineSaved() {
			fmt.Fprintln(s.out, "nothing to undo")
			return false, nil
		}
		s.tbl.UndoLine()
	case "append":
		n, err := optionalInt(args, 0, 1)
		if err != nil {
			return false, err
		}
		return false, s.tbl.AppendRows(n)
	case "delete", "del":
		return false, s.delete(ctx, args)
	case "paste":
		_, rest := fields(command, 1)
		stored, err := s.tbl.PasteLines(ctx, unescape(rest), s.pasteOptions())
		fmt.Fprintf(s.out, "%d rows stored\n", stored)
		return false, err
	case "pasterow":
		_, rest := fields(command, 1)
		pasted, err := s.tbl.Paste(ctx, unescape(rest), s.pasteOptions())
		if err != nil {
			return false, err
		}
		if !pasted {
			fmt.Fprintln(s.out, "nothing pasted")
		}
	case "cols":
		fmt.Fprint(s.out, renderColumns(s.tbl))
	case "filter":
		return false, s.filter(ctx, args)
	case "sort":
		return false, s.sort(ctx, args)
	case "limit":
		if len(args) != 1 {
			return false, errors.New("usage: limit N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return false, fmt.Errorf("invalid limit %q", args[0])
		}
		s.query.Limit = n
		return false, s.Refresh(ctx)
	case "refresh":
		return false, s.Refresh(ctx)
	default:
		return false, fmt.Errorf("unknown command: %s", cmd)
	}
	return false, nil
}

func (s *Shell) pasteOptions() grid.PasteOptions {
	return grid.PasteOptions{UseSerialValues: func() bool { return s.useSerial }}
}

func unescape(text string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`).Replace(text)
}

func optionalInt(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", args[i])
	}
	return n, nil
}

// row resolves a 1-based row reference.
func (s *Shell) row(ref string) (int, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return -1, fmt.Errorf("invalid row %q", ref)
	}
	if n < 1 || n > s.tbl.GetNumberRows() {
		return -1, fmt.Errorf("row %d out of range 1..%d", n, s.tbl.GetNumberRows())
	}
	return n - 1, nil
}

func (s *Shell) cell(rowRef, colRef string) (row, col int, err error) {
	if row, err = s.row(rowRef); err != nil {
		return -1, -1, err
	}
	if col, err = s.cols.Resolve(colRef); err != nil {
		return -1, -1, err
	}
	return row, col, nil
}

func (s *Shell) show(args []string) error {
	from := s.next
	if len(args) > 0 {
		row, err := s.row(args[0])
		if err != nil {
			return err
		}
		from = row
	}
	count, err := optionalInt(args, 1, s.pageSize)
	if err != nil {
		return err
	}
	from = min(from, s.tbl.GetNumberRows())
	out, err := renderRows(s.tbl, from, count)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, out)
	s.next = from + count
	if s.next >= s.tbl.GetNumberRows() {
		s.next = 0
	}
	return nil
}

func (s *Shell) get(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: get R C")
	}
	row, col, err := s.cell(args[0], args[1])
	if err != nil {
		return err
	}
	value, err := s.tbl.GetValue(row, col)
	if err != nil {
		return err
	}
	if s.tbl.GetIsNull(row, col) {
		fmt.Fprintln(s.out, s.tbl.Options().NullMarker)
		return nil
	}
	fmt.Fprintln(s.out, value)
	return nil
}

// set routes the text through the column's editor, the way a typed edit would reach the grid.
func (s *Shell) set(ctx context.Context, rowRef, colRef, text string) error {
	row, col, err := s.cell(rowRef, colRef)
	if err != nil {
		return err
	}
	c := s.tbl.GetAttr(col)
	if s.tbl.IsReadOnly(row, col) || !c.Editor.Editable() {
		return fmt.Errorf("cell %d,%s is read-only", row+1, c.Name)
	}

	ed := celledit.New(c.Editor)
	if err := ed.BeginEdit(s.tbl, row, col); err != nil {
		return err
	}
	switch c.Editor.Kind {
	case celledit.KindBoolean:
		key, err := boolKey(text)
		if err != nil {
			return err
		}
		ed.StartingKey(celledit.RuneKey(key))
	default:
		ed.Type(text)
		if ed.Value() != text {
			return fmt.Errorf("%q is not a valid %s value", text, c.TypeLabel())
		}
	}

	changed, err := celledit.Apply(ctx, ed, s.tbl, row, col)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(s.out, "unchanged")
	}
	return nil
}

// boolKey maps a typed boolean word to the key that sets the checkbox state.
func boolKey(text string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "t", "yes", "y", "on", "1", "+":
		return '+', nil
	case "false", "f", "no", "off", "0", "-":
		return '-', nil
	case "", "null", "n":
		return 'n', nil
	}
	return 0, fmt.Errorf("%q is not a boolean, use true, false or null", text)
}

func (s *Shell) delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: delete R [n] | delete R,R,...")
	}

	if strings.Contains(args[0], ",") {
		var rows []int
		for _, ref := range strings.Split(args[0], ",") {
			if ref == "" {
				continue
			}
			row, err := s.row(ref)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		deleted, err := s.tbl.DeleteSelected(ctx, rows, func(row int, err error) bool {
			fmt.Fprintf(s.out, "row %d not deleted: %v\n", row+1, err)
			return true
		})
		fmt.Fprintf(s.out, "%d rows deleted\n", deleted)
		if err != nil {
			var merr *multierror.Error
			if errors.As(err, &merr) && len(merr.Errors) > 1 {
				return fmt.Errorf("%d rows failed", len(merr.Errors))
			}
			return err
		}
		return nil
	}

	row, err := s.row(args[0])
	if err != nil {
		return err
	}
	count, err := optionalInt(args, 1, 1)
	if err != nil {
		return err
	}
	before := s.tbl.GetNumberStoredRows()
	_, err = s.tbl.DeleteRows(ctx, row, count)
	fmt.Fprintf(s.out, "%d rows deleted\n", before-s.tbl.GetNumberStoredRows())
	return err
}

func (s *Shell) filter(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "clear" {
		s.query.ClearFilters()
		return s.Refresh(ctx)
	}
	if len(args) != 3 || (args[0] != "include" && args[0] != "exclude") {
		return errors.New("usage: filter include|exclude R C | filter clear")
	}
	row, col, err := s.cell(args[1], args[2])
	if err != nil {
		return err
	}
	value, err := s.tbl.GetValue(row, col)
	if err != nil {
		return err
	}
	s.query.AddFilter(dblib.Filter{
		Column:  s.tbl.GetAttr(col).Name,
		Value:   value,
		IsNull:  s.tbl.GetIsNull(row, col),
		Text:    s.tbl.IsColText(col),
		Exclude: args[0] == "exclude",
	})
	return s.Refresh(ctx)
}

func (s *Shell) sort(ctx context.Context, args []string) error {
	if len(args) == 1 && args[0] == "clear" {
		s.query.ClearSort()
		return s.Refresh(ctx)
	}
	if len(args) != 2 || (args[0] != "asc" && args[0] != "desc") {
		return errors.New("usage: sort asc|desc C | sort clear")
	}
	col, err := s.cols.Resolve(args[1])
	if err != nil {
		return err
	}
	s.query.Sort(s.tbl.GetAttr(col).Name, args[0] == "asc")
	return s.Refresh(ctx)
}
