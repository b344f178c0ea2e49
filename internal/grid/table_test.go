package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editgrid/internal/celledit"
)

func newUsers(t *testing.T, exec *fakeExec, rows [][]*string) (*Table, *fakeProducer) {
	t.Helper()
	prod := usersProducer(rows...)
	tbl, err := New(usersRelation(), prod, exec, testOptions())
	require.NoError(t, err)
	return tbl, prod
}

type eventLog []Event

func (l *eventLog) listen(ev Event) { *l = append(*l, ev) }

func (l eventLog) kinds() []EventKind {
	res := make([]EventKind, 0, len(l))
	for _, ev := range l {
		res = append(res, ev.Kind)
	}
	return res
}

func TestNew_ReadOnlyWithoutKey(t *testing.T) {
	rel := usersRelation()
	rel.PrimaryKey = nil
	prod := usersProducer(threeUsers()...)
	tbl, err := New(rel, prod, &fakeExec{}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.GetNumberRows())
	assert.Equal(t, 3, tbl.GetNumberStoredRows())
	assert.Equal(t, 3, tbl.GetNumberCols())
	assert.False(t, tbl.CanInsert())
	for col := 0; col < 3; col++ {
		assert.True(t, tbl.IsReadOnly(0, col))
	}
	assert.ErrorIs(t, tbl.AppendRows(1), ErrTableReadOnly)
	assert.ErrorIs(t, tbl.SetValue(context.Background(), 0, 1, "x"), ErrColumnReadOnly)
}

func TestNew_ViewIsReadOnly(t *testing.T) {
	rel := usersRelation()
	rel.Kind = 'v'
	tbl, err := New(rel, usersProducer(threeUsers()...), &fakeExec{}, testOptions())
	require.NoError(t, err)
	assert.False(t, tbl.CanInsert())
	assert.True(t, tbl.GetAttr(1).ReadOnly)
}

func TestNew_ColumnCountMismatch(t *testing.T) {
	prod := usersProducer(threeUsers()...)
	prod.names = append(prod.names, "extra")
	prod.types = append(prod.types, "text")
	_, err := New(usersRelation(), prod, &fakeExec{}, testOptions())
	assert.Error(t, err)
}

func TestNew_WithoutCatalog(t *testing.T) {
	prod := usersProducer(threeUsers()...)
	tbl, err := New(nil, prod, &fakeExec{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.GetNumberRows())
	assert.Equal(t, "name", tbl.GetAttr(1).Name)
	assert.Equal(t, ClassUnsupported, tbl.GetAttr(1).Class)
	assert.True(t, tbl.IsReadOnly(0, 1))
	v, err := tbl.GetValue(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bob", v)
}

func TestNew_Placeholder(t *testing.T) {
	tbl, _ := newUsers(t, &fakeExec{}, threeUsers())
	assert.True(t, tbl.CanInsert())
	assert.Equal(t, 4, tbl.GetNumberRows())
	assert.Equal(t, 3, tbl.GetNumberStoredRows())
	assert.Equal(t, "*", tbl.GetRowLabelValue(3))
	assert.Equal(t, "3", tbl.GetRowLabelValue(2))
	assert.True(t, tbl.GetAttr(0).PrimaryKey)
	assert.False(t, tbl.GetAttr(1).PrimaryKey)
}

func TestGetValue_MaterializesOnce(t *testing.T) {
	rel := usersRelation()
	rel.PrimaryKey = nil
	prod := usersProducer(threeUsers()...)
	tbl, err := New(rel, prod, &fakeExec{}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.GetNumberRows())
	assert.False(t, tbl.CheckInCache(0))

	v, err := tbl.GetValue(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", v)
	assert.Equal(t, 3, prod.reads, "one producer fetch reads every column")
	assert.True(t, tbl.CheckInCache(0))

	for col := 0; col < 3; col++ {
		_, err := tbl.GetValue(0, col)
		require.NoError(t, err)
		assert.False(t, tbl.GetIsNull(0, col))
	}
	assert.Equal(t, 3, prod.reads, "cached row is not fetched again")

	line := tbl.peekLine(0)
	require.NotNil(t, line)
	assert.Equal(t, []string{"1", "Alice", "30"}, line.Values)
	assert.Equal(t, []bool{false, false, false}, line.Nulls)
	assert.True(t, line.Stored)
}

func TestGetValue_ReleasesProducer(t *testing.T) {
	tbl, prod := newUsers(t, &fakeExec{}, threeUsers())
	for row := 0; row < 3; row++ {
		_, err := tbl.GetValue(row, 0)
		require.NoError(t, err)
	}
	assert.True(t, prod.closed)
	assert.Equal(t, 2, prod.seeks, "the producer starts on row 0")

	v, err := tbl.GetValue(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bob", v)
}

func TestGetValue_ClosedProducer(t *testing.T) {
	tbl, _ := newUsers(t, &fakeExec{}, threeUsers())
	require.NoError(t, tbl.Close())
	_, err := tbl.GetValue(1, 0)
	assert.ErrorIs(t, err, ErrProducerClosed)
	assert.False(t, tbl.CheckInCache(1), "failed read leaves no cached values")
	assert.ErrorIs(t, tbl.SetValue(context.Background(), 1, 1, "x"), ErrProducerClosed)
}

func TestGetValue_OutOfRange(t *testing.T) {
	tbl, _ := newUsers(t, &fakeExec{}, threeUsers())
	_, err := tbl.GetValue(4, 0)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = tbl.GetValue(-1, 0)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = tbl.GetValue(0, 3)
	assert.ErrorIs(t, err, ErrColumnOutOfRange)
}

func TestGetValue_CellEncoding(t *testing.T) {
	rel := &Relation{
		Name: "t", Kind: 'r', PrimaryKey: []int{1},
		Attributes: []Attribute{
			intAttr("id", 1),
			textAttr("note", 2),
			{Name: "flag", AttNum: 3, TypeOID: oid.T_bool, TypeName: "boolean", DisplayTypeName: "boolean"},
			{Name: "blob", AttNum: 4, TypeOID: oid.T_bytea, TypeName: "bytea", DisplayTypeName: "bytea"},
		},
	}
	rows := [][]*string{
		{sp("1"), sp(""), sp("true"), sp("\\x00")},
		{sp("2"), nil, sp("f"), nil},
		{sp("3"), sp("''"), nil, sp("\\x01")},
	}
	newProducer := func() *fakeProducer {
		return &fakeProducer{names: []string{"id", "note", "flag", "blob"},
			types: []string{"int4", "text", "bool", "bytea"}, rows: rows}
	}

	t.Run("blank nulls", func(t *testing.T) {
		tbl, err := New(rel, newProducer(), &fakeExec{}, testOptions())
		require.NoError(t, err)
		want := [][]string{
			{"1", EmptySentinel, "TRUE", BinaryPlaceholder},
			{"2", "", "FALSE", ""},
			{"3", EscapedEmpty, "", BinaryPlaceholder},
		}
		for row, cells := range want {
			for col, cell := range cells {
				v, err := tbl.GetValue(row, col)
				require.NoError(t, err)
				assert.Equal(t, cell, v, "row %d col %d", row, col)
			}
		}
		assert.True(t, tbl.GetIsNull(1, 1))
		assert.False(t, tbl.GetIsNull(0, 1))
		assert.True(t, tbl.GetIsNull(2, 2))
		assert.True(t, tbl.GetIsNull(1, 3))
		assert.True(t, tbl.IsReadOnly(0, 3), "bytea is never editable")
		assert.True(t, tbl.IsColBoolean(2))
		assert.False(t, tbl.IsColText(0))
		assert.True(t, tbl.IsColText(1))
		assert.True(t, tbl.NeedsResizing(1))
	})

	t.Run("null marker", func(t *testing.T) {
		opts := testOptions()
		opts.IndicateNull = true
		tbl, err := New(rel, newProducer(), &fakeExec{}, opts)
		require.NoError(t, err)
		v, err := tbl.GetValue(1, 1)
		require.NoError(t, err)
		assert.Equal(t, DefaultNullMarker, v)
		v, err = tbl.GetValue(2, 2)
		require.NoError(t, err)
		assert.Equal(t, DefaultNullMarker, v, "null booleans are not canonicalized")
	})
}

func TestStoreLine_Update(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	var events eventLog
	tbl.Subscribe(events.listen)
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 0, 1, "Bob"))
	assert.False(t, tbl.IsLineSaved())
	assert.Equal(t, 0, tbl.LastRow())
	v, err := tbl.GetValue(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bob", v)

	require.NoError(t, tbl.StoreLine(ctx))
	require.Len(t, exec.stmts, 1)
	assert.Equal(t, `UPDATE t SET "name"='Bob'::text WHERE "id" = '1'::integer`, exec.stmts[0])
	assert.True(t, tbl.IsLineSaved())
	assert.Equal(t, -1, tbl.LastRow())
	assert.Equal(t, []EventKind{RowBecameDirty, RowCommitted}, events.kinds())
}

func TestStoreLine_UpdateKeyFromSnapshot(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 1, 0, "20"))
	require.NoError(t, tbl.SetValue(ctx, 1, 2, ""))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, `UPDATE t SET "id"='20'::integer WHERE "id" = '2'::integer`, exec.last(),
		"age was NULL and stays unchanged, key uses the pre-edit id")
}

func TestStoreLine_NoChanges(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 0, 1, "Alice"))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Empty(t, exec.stmts)
	assert.True(t, tbl.IsLineSaved())
	assert.NoError(t, tbl.StoreLine(ctx), "nothing in edit")
}

func TestStoreLine_UpdateFailureKeepsRowInEdit(t *testing.T) {
	failure := errors.New("constraint violated")
	exec := &fakeExec{failOn: func(string) error { return failure }}
	tbl, _ := newUsers(t, exec, threeUsers())
	var events eventLog
	tbl.Subscribe(events.listen)
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 0, 1, "Bob"))
	err := tbl.StoreLine(ctx)
	assert.ErrorIs(t, err, failure)
	assert.False(t, tbl.IsLineSaved())
	assert.Equal(t, 0, tbl.LastRow())
	assert.Equal(t, EditFailed, events[len(events)-1].Kind)

	tbl.UndoLine()
	assert.True(t, tbl.IsLineSaved())
	v, err := tbl.GetValue(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", v)
	assert.Equal(t, RowReverted, events[len(events)-1].Kind)
}

func TestUndoLine_RestoresNulls(t *testing.T) {
	tbl, _ := newUsers(t, &fakeExec{}, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 1, 2, "50"))
	assert.False(t, tbl.GetIsNull(1, 2))
	tbl.UndoLine()
	assert.True(t, tbl.GetIsNull(1, 2))
	tbl.UndoLine() // no-op
}

func TestSetValue_OneRowInEdit(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 0, 1, "Ann"))
	require.NoError(t, tbl.SetValue(ctx, 2, 1, "Cleo"))
	require.Len(t, exec.stmts, 1, "switching rows commits the first one")
	assert.Equal(t, `UPDATE t SET "name"='Ann'::text WHERE "id" = '1'::integer`, exec.stmts[0])
	assert.Equal(t, 2, tbl.LastRow())

	failure := errors.New("connection lost")
	exec.failOn = func(string) error { return failure }
	err := tbl.SetValue(ctx, 1, 1, "Bert")
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, tbl.LastRow(), "failed commit keeps the dirty row")
	v, err := tbl.GetValue(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bob", v, "the new edit was not applied")
}

func TestStoreLine_Insert(t *testing.T) {
	rel := usersRelation()
	rel.Attributes[2].HasDefault = true
	exec := &fakeExec{results: []*fakeRowSet{
		{inserted: 1},
		{rows: []map[string]*string{{"id": sp("7"), "name": sp("Dora"), "age": sp("18")}}},
	}}
	tbl, err := New(rel, usersProducer(threeUsers()...), exec, testOptions())
	require.NoError(t, err)
	var events eventLog
	tbl.Subscribe(events.listen)
	ctx := context.Background()

	row := tbl.GetNumberRows() - 1
	assert.Equal(t, 3, row)
	require.NoError(t, tbl.SetValue(ctx, row, 0, "7"))
	require.NoError(t, tbl.SetValue(ctx, row, 1, "Dora"))
	require.NoError(t, tbl.StoreLine(ctx))

	require.Len(t, exec.stmts, 2)
	assert.Equal(t, `INSERT INTO t("id", "name") VALUES ('7'::integer, 'Dora'::text)`, exec.stmts[0])
	assert.Equal(t, `SELECT * FROM t WHERE "id" = '7'::integer`, exec.stmts[1])
	assert.Equal(t, []bool{false}, exec.returning)

	v, err := tbl.GetValue(row, 2)
	require.NoError(t, err)
	assert.Equal(t, "18", v, "server default read back")
	assert.Equal(t, 5, tbl.GetNumberRows(), "a fresh placeholder follows")
	assert.Equal(t, 4, tbl.GetNumberStoredRows())
	assert.Equal(t, "4", tbl.GetRowLabelValue(3))
	assert.Equal(t, "*", tbl.GetRowLabelValue(4))
	assert.True(t, tbl.IsLineSaved())
	assert.Contains(t, events.kinds(), RowCountChanged)
	assert.Equal(t, RowCommitted, events[len(events)-1].Kind)
}

func TestStoreLine_InsertRecoversGeneratedKey(t *testing.T) {
	exec := &fakeExec{results: []*fakeRowSet{
		{inserted: 1, rows: []map[string]*string{{"id": sp("12")}}},
		{rows: []map[string]*string{{"id": sp("12"), "name": sp("Eve"), "age": nil}}},
	}}
	tbl, _ := newUsers(t, exec, nil)
	ctx := context.Background()
	assert.Equal(t, 1, tbl.GetNumberRows())

	require.NoError(t, tbl.SetValue(ctx, 0, 1, "Eve"))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, `INSERT INTO t("name") VALUES ('Eve'::text) RETURNING "id"`, exec.stmts[0])
	assert.Equal(t, []bool{true}, exec.returning)
	assert.Equal(t, `SELECT * FROM t WHERE "id" = '12'::integer`, exec.stmts[1])
	assert.True(t, tbl.GetIsNull(0, 2))
	assert.False(t, tbl.IsReadOnly(0, 1))
}

func TestStoreLine_InsertValueMentionsReturning(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 3, 0, "8"))
	require.NoError(t, tbl.SetValue(ctx, 3, 1, "see RETURNING policy"))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, `INSERT INTO t("id", "name") VALUES ('8'::integer, 'see RETURNING policy'::text)`, exec.stmts[0])
	assert.Equal(t, []bool{false}, exec.returning, "clause decided by the grid, not by the statement text")
	assert.Equal(t, 4, tbl.GetNumberStoredRows())
	assert.True(t, tbl.IsLineSaved())
}

func TestStoreLine_InsertWithoutKeyFreezes(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	var events eventLog
	tbl.Subscribe(events.listen)
	ctx := context.Background()

	require.NoError(t, tbl.SetValue(ctx, 3, 1, "Fay"))
	require.NoError(t, tbl.StoreLine(ctx))
	require.Len(t, exec.stmts, 1, "no read back without a key")
	assert.True(t, tbl.IsReadOnly(3, 1))
	assert.Contains(t, events.kinds(), RowFrozen)
	assert.ErrorIs(t, tbl.SetValue(ctx, 3, 1, "Gus"), ErrRowReadOnly)
	assert.True(t, tbl.IsLineSaved())
}

func TestStoreLine_InsertRowID(t *testing.T) {
	rel := usersRelation()
	rel.RowID = "oid"
	rel.PrimaryKey = nil
	prod := &fakeProducer{names: []string{"oid", "id", "name", "age"}, types: []string{"oid", "int4", "text", "int4"},
		rows: [][]*string{{sp("9001"), sp("1"), sp("Alice"), sp("30")}}}
	exec := &fakeExec{results: []*fakeRowSet{{inserted: 1, id: "9002"}}}
	tbl, err := New(rel, prod, exec, testOptions())
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, tbl.IsReadOnly(0, 0))
	require.NoError(t, tbl.SetValue(ctx, 1, 2, "Hal"))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, `INSERT INTO t("name") VALUES ('Hal'::text) RETURNING oid`, exec.stmts[0])
	assert.Equal(t, `SELECT * FROM t WHERE oid = 9002`, exec.stmts[1])
	v, err := tbl.GetValue(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "9002", v)

	require.NoError(t, tbl.SetValue(ctx, 0, 2, "Ada"))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, `UPDATE t SET "name"='Ada'::text WHERE oid = 9001`, exec.last())
}

func TestStoreLine_InsertNothing(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 3, 1, ""))
	assert.ErrorIs(t, tbl.StoreLine(ctx), ErrNothingToInsert)
	assert.Empty(t, exec.stmts)
	assert.False(t, tbl.IsLineSaved())
}

func TestStoreLine_InsertFailure(t *testing.T) {
	failure := errors.New("duplicate key")
	exec := &fakeExec{failOn: func(string) error { return failure }}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 3, 0, "1"))
	assert.ErrorIs(t, tbl.StoreLine(ctx), failure)
	assert.Equal(t, 4, tbl.GetNumberRows())
	assert.Equal(t, 3, tbl.GetNumberStoredRows())
	assert.Equal(t, "*", tbl.GetRowLabelValue(3))
}

func TestMakeKey(t *testing.T) {
	rel := &Relation{
		Name: "t", Kind: 'r',
		PrimaryKey: []int{4, 1},
		Dropped:    []bool{false, true, false, false},
		Attributes: []Attribute{intAttr("a", 1), textAttr("b", 3), textAttr("c", 4)},
	}
	prod := &fakeProducer{names: []string{"a", "b", "c"}, types: []string{"int4", "text", "text"},
		rows: [][]*string{{sp("1"), sp("x"), sp("")}, {sp("2"), sp("y"), sp("k")}, {sp("3"), sp("z"), nil}}}
	tbl, err := New(rel, prod, &fakeExec{}, testOptions())
	require.NoError(t, err)

	assert.True(t, tbl.GetAttr(0).PrimaryKey)
	assert.False(t, tbl.GetAttr(1).PrimaryKey)
	assert.True(t, tbl.GetAttr(2).PrimaryKey, "attnum 4 is the third live column")

	for row := 0; row < 3; row++ {
		_, err := tbl.GetValue(row, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, `"a" = '1'::integer AND "c" = ''::text`, tbl.MakeKey(tbl.peekLine(0)),
		"empty string sentinel is unescaped")
	assert.Equal(t, `"a" = '2'::integer AND "c" = 'k'::text`, tbl.MakeKey(tbl.peekLine(1)))
	assert.Equal(t, "", tbl.MakeKey(tbl.peekLine(2)), "NULL key column")
	assert.Equal(t, "", tbl.MakeKey(nil))
}

func TestDeleteRows(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()

	ok, err := tbl.DeleteRows(ctx, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `DELETE FROM t WHERE "id" = '1'::integer`, exec.last())
	assert.Equal(t, 3, tbl.GetNumberRows())
	assert.Equal(t, 2, tbl.GetNumberStoredRows())
	assert.Len(t, tbl.lineIndex, 2)

	v, err := tbl.GetValue(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bob", v, "later rows shift down")
}

func TestDeleteRows_Placeholder(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 3, 1, "draft"))

	ok, err := tbl.DeleteRows(ctx, 3, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, exec.stmts)
	assert.Equal(t, 4, tbl.GetNumberRows())
	assert.Equal(t, 3, tbl.GetNumberStoredRows())
	assert.True(t, tbl.IsLineSaved())
	v, err := tbl.GetValue(3, 1)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestDeleteRows_PartialFailure(t *testing.T) {
	rows := [][]*string{
		{sp("1"), sp("a"), nil}, {sp("2"), sp("b"), nil}, {sp("3"), sp("c"), nil},
		{sp("4"), sp("d"), nil}, {sp("5"), sp("e"), nil},
	}
	failure := errors.New("foreign key violation")
	exec := &fakeExec{failOn: func(stmt string) error {
		if stmt == `DELETE FROM t WHERE "id" = '3'::integer` {
			return failure
		}
		return nil
	}}
	tbl, _ := newUsers(t, exec, rows)
	ctx := context.Background()

	ok, err := tbl.DeleteRows(ctx, 1, 2)
	assert.True(t, ok, "one row was deleted")
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 5, tbl.GetNumberRows())
	assert.Equal(t, 4, tbl.GetNumberStoredRows())

	v, err := tbl.GetValue(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "3", v, "failed row stays in place")
	assert.Equal(t, "2", tbl.GetRowLabelValue(1))
}

func TestDeleteRows_AppendedRow(t *testing.T) {
	exec := &fakeExec{results: []*fakeRowSet{{inserted: 1}, {}}}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 3, 0, "4"))
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, 5, tbl.GetNumberRows())
	assert.Equal(t, 4, tbl.GetNumberStoredRows())

	ok, err := tbl.DeleteRows(ctx, 3, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `DELETE FROM t WHERE "id" = '4'::integer`, exec.last())
	assert.Equal(t, 4, tbl.GetNumberRows())
	assert.Equal(t, 3, tbl.GetNumberStoredRows())
	assert.Equal(t, "*", tbl.GetRowLabelValue(3))
}

func TestDeleteRows_ShiftsRowInEdit(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 2, 1, "Cleo"))

	_, err := tbl.DeleteRows(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.LastRow())
	require.NoError(t, tbl.StoreLine(ctx))
	assert.Equal(t, `UPDATE t SET "name"='Cleo'::text WHERE "id" = '3'::integer`, exec.last())
}

func TestDeleteRows_RowInEditUsesSnapshotKey(t *testing.T) {
	exec := &fakeExec{}
	tbl, _ := newUsers(t, exec, threeUsers())
	ctx := context.Background()
	require.NoError(t, tbl.SetValue(ctx, 1, 0, "22"))

	_, err := tbl.DeleteRows(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM t WHERE "id" = '2'::integer`, exec.last())
	assert.True(t, tbl.IsLineSaved())
}

func TestDeleteSelected(t *testing.T) {
	rows := [][]*string{
		{sp("1"), sp("a"), nil}, {sp("2"), sp("b"), nil}, {sp("3"), sp("c"), nil}, {sp("4"), sp("d"), nil},
	}
	failure := errors.New("locked")
	exec := &fakeExec{failOn: func(stmt string) error {
		if stmt == `DELETE FROM t WHERE "id" = '3'::integer` {
			return failure
		}
		return nil
	}}
	ctx := context.Background()

	t.Run("continue after failure", func(t *testing.T) {
		exec.stmts = nil
		tbl, _ := newUsers(t, exec, rows)
		var asked []int
		n, err := tbl.DeleteSelected(ctx, []int{0, 2, 3, 2}, func(row int, err error) bool {
			asked = append(asked, row)
			return true
		})
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, []int{2}, asked)
		assert.Equal(t, []string{
			`DELETE FROM t WHERE "id" = '4'::integer`,
			`DELETE FROM t WHERE "id" = '3'::integer`,
			`DELETE FROM t WHERE "id" = '1'::integer`,
		}, exec.stmts)
		assert.Equal(t, 3, tbl.GetNumberRows())
	})

	t.Run("stop after failure", func(t *testing.T) {
		exec.stmts = nil
		tbl, _ := newUsers(t, exec, rows)
		n, err := tbl.DeleteSelected(ctx, []int{0, 2, 3}, nil)
		assert.Equal(t, 1, n)
		assert.Error(t, err)
		assert.Len(t, exec.stmts, 2)
	})
}

func TestAppendRows(t *testing.T) {
	tbl, _ := newUsers(t, &fakeExec{}, threeUsers())
	var events eventLog
	tbl.Subscribe(events.listen)

	require.NoError(t, tbl.AppendRows(2))
	assert.Equal(t, 6, tbl.GetNumberRows())
	assert.Equal(t, 3, tbl.GetNumberStoredRows())
	assert.True(t, tbl.CheckInCache(5))
	assert.Equal(t, []EventKind{RowCountChanged}, events.kinds())
	assert.Equal(t, 6, events[0].Rows)
	require.NoError(t, tbl.AppendRows(0))
}

func TestLabels(t *testing.T) {
	opts := testOptions()
	opts.DescriptionFormat = "%i %n: %t %a"
	tbl, err := New(usersRelation(), usersProducer(threeUsers()...), &fakeExec{}, opts)
	require.NoError(t, err)

	assert.Equal(t, "id\n[PK] integer", tbl.GetColLabelValue(0))
	assert.Equal(t, "name\ntext", tbl.GetColLabelValue(1))
	assert.Equal(t, "0 id: integer (PK)", tbl.GetColDescription(0))
	assert.Equal(t, "", tbl.GetColDescription(9))
	assert.Equal(t, "", tbl.GetColLabelValue(-1))
	assert.Equal(t, celledit.KindNumeric, tbl.GetAttr(0).Editor.Kind)
}

func TestSuggestedWidth(t *testing.T) {
	long := "a very long note that keeps going well past any sensible column width"
	tbl, _ := newUsers(t, &fakeExec{}, [][]*string{{sp("1"), sp(long), sp("5")}, {sp("2"), sp("Zoë"), nil}})
	assert.Equal(t, 12, tbl.SuggestedWidth(0, 10), "uncached values are not measured")

	_, err := tbl.GetValue(0, 0)
	require.NoError(t, err)
	assert.Equal(t, maxSuggestedWidth, tbl.SuggestedWidth(1, 10))
	assert.Equal(t, 7, tbl.SuggestedWidth(2, 10))
}
