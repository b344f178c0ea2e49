package grid

import (
	"context"

	"github.com/go-pkgz/lgr"
	"github.com/lib/pq"
	"github.com/lib/pq/oid"
)

func sp(s string) *string { return &s }

// fakeProducer serves rows from memory; a nil cell is NULL.
type fakeProducer struct {
	names  []string
	types  []string
	rows   [][]*string
	pos    int
	seeks  int
	reads  int
	closed bool
}

func (p *fakeProducer) RowCount() int { return len(p.rows) }
func (p *fakeProducer) ColumnCount() int { return len(p.names) }
func (p *fakeProducer) ColumnTypeName(i int) string { return p.types[i] }
func (p *fakeProducer) ColumnName(i int) string { return p.names[i] }
func (p *fakeProducer) CurrentPosition() int { return p.pos }
func (p *fakeProducer) IsNull(i int) bool { return p.rows[p.pos][i] == nil }

func (p *fakeProducer) Seek(row int) error {
	p.seeks++
	p.pos = row
	return nil
}

func (p *fakeProducer) ReadColumn(i int) string {
	p.reads++
	if v := p.rows[p.pos][i]; v != nil {
		return *v
	}
	return ""
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

// fakeRowSet is a statement result; rows are keyed by column name, nil is NULL.
type fakeRowSet struct {
	inserted int64
	id       string
	rows     []map[string]*string
	pos      int
	closed   bool
}

func (s *fakeRowSet) InsertedRowCount() int64 { return s.inserted }
func (s *fakeRowSet) InsertedRowIdentifier() string { return s.id }

func (s *fakeRowSet) Lookup(column string) (string, bool, bool) {
	if s.pos >= len(s.rows) {
		return "", false, false
	}
	v, ok := s.rows[s.pos][column]
	if !ok {
		return "", false, false
	}
	if v == nil {
		return "", true, true
	}
	return *v, false, true
}

func (s *fakeRowSet) MoveNext() bool {
	s.pos++
	return s.pos < len(s.rows)
}

func (s *fakeRowSet) Close() error {
	s.closed = true
	return nil
}

// fakeExec records statements. failOn decides failures, results are handed
// out to ExecuteRowSet and ExecuteInsert in order.
type fakeExec struct {
	stmts     []string
	returning []bool // per ExecuteInsert call
	failOn    func(stmt string) error
	results   []*fakeRowSet
}

func (e *fakeExec) QuoteStringLiteral(s string) string { return pq.QuoteLiteral(s) }

func (e *fakeExec) ExecuteVoid(_ context.Context, stmt string) error {
	e.stmts = append(e.stmts, stmt)
	if e.failOn != nil {
		return e.failOn(stmt)
	}
	return nil
}

func (e *fakeExec) ExecuteRowSet(_ context.Context, stmt string) (RowSet, error) {
	return e.next(stmt, 0)
}

func (e *fakeExec) ExecuteInsert(_ context.Context, stmt string, returning bool) (RowSet, error) {
	e.returning = append(e.returning, returning)
	return e.next(stmt, 1)
}

func (e *fakeExec) next(stmt string, inserted int64) (RowSet, error) {
	e.stmts = append(e.stmts, stmt)
	if e.failOn != nil {
		if err := e.failOn(stmt); err != nil {
			return nil, err
		}
	}
	if len(e.results) > 0 {
		res := e.results[0]
		e.results = e.results[1:]
		return res, nil
	}
	return &fakeRowSet{inserted: inserted}, nil
}

func (e *fakeExec) last() string {
	if len(e.stmts) == 0 {
		return ""
	}
	return e.stmts[len(e.stmts)-1]
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = lgr.NoOp
	return opts
}

func intAttr(name string, attnum int) Attribute {
	return Attribute{Schema: "public", Relation: "t", Name: name, AttNum: attnum, TypeOID: oid.T_int4,
		TypeName: "integer", DisplayTypeName: "integer", TypMod: -1, TypLen: 4}
}

func textAttr(name string, attnum int) Attribute {
	return Attribute{Schema: "public", Relation: "t", Name: name, AttNum: attnum, TypeOID: oid.T_text,
		TypeName: "text", DisplayTypeName: "text", TypMod: -1, TypLen: -1}
}

// usersRelation is t(id integer primary key, name text, age integer).
func usersRelation() *Relation {
	return &Relation{
		Name:       "t",
		Kind:       'r',
		PrimaryKey: []int{1},
		Attributes: []Attribute{intAttr("id", 1), textAttr("name", 2), intAttr("age", 3)},
	}
}

func usersProducer(rows ...[]*string) *fakeProducer {
	return &fakeProducer{
		names: []string{"id", "name", "age"},
		types: []string{"int4", "text", "int4"},
		rows:  rows,
	}
}

func threeUsers() [][]*string {
	return [][]*string{
		{sp("1"), sp("Alice"), sp("30")},
		{sp("2"), sp("Bob"), nil},
		{sp("3"), sp("Carol"), sp("41")},
	}
}
