package dblib

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"editgrid/internal/grid"
)

// ErrNotReady is returned when a result is consulted before Wait succeeded.
var ErrNotReady = errors.New("query result not ready")

// Result runs a query on a worker goroutine and buffers the rows as text.
// It becomes a grid.Producer once Wait returns nil.
type Result struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	names []string
	types []string
	rows  [][]sql.NullString

	pos    int
	closed bool
}

var _ grid.Producer = (*Result)(nil)

// RunQuery starts query on q and returns immediately.
func RunQuery(ctx context.Context, q Querier, query string) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{cancel: cancel, done: make(chan struct{})}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.load(gctx, q, query) })
	go func() {
		r.err = g.Wait()
		close(r.done)
	}()
	return r
}

func (r *Result) load(ctx context.Context, q Querier, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}
	for _, c := range cols {
		r.names = append(r.names, c.Name())
		r.types = append(r.types, strings.ToLower(c.DatabaseTypeName()))
	}

	for rows.Next() {
		row := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan row %d: %w", len(r.rows), err)
		}
		r.rows = append(r.rows, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	return nil
}

// Wait blocks until the query finished or ctx is done, in which case the
// query is cancelled.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		r.cancel()
		<-r.done
		return ctx.Err()
	}
}

// Cancel aborts a running query. It is safe to call at any time.
func (r *Result) Cancel() { r.cancel() }

// ConnectionBad reports whether the query failed because the connection broke.
func (r *Result) ConnectionBad() bool {
	select {
	case <-r.done:
		return errors.Is(r.err, driver.ErrBadConn)
	default:
		return false
	}
}

func (r *Result) RowCount() int { return len(r.rows) }
func (r *Result) ColumnCount() int { return len(r.names) }
func (r *Result) ColumnName(i int) string { return r.names[i] }

// ColumnTypeName is the lowercase driver type name, e.g. "int4" or "bytea".
func (r *Result) ColumnTypeName(i int) string { return r.types[i] }

// CurrentPosition is the zero-based current row.
func (r *Result) CurrentPosition() int { return r.pos }

// Seek moves to a zero-based row.
func (r *Result) Seek(row int) error {
	if r.closed {
		return grid.ErrProducerClosed
	}
	select {
	case <-r.done:
	default:
		return ErrNotReady
	}
	if row < 0 || row >= len(r.rows) {
		return fmt.Errorf("seek %d of %d: %w", row, len(r.rows), grid.ErrRowOutOfRange)
	}
	r.pos = row
	return nil
}

func (r *Result) ReadColumn(i int) string { return r.rows[r.pos][i].String }
func (r *Result) IsNull(i int) bool { return !r.rows[r.pos][i].Valid }

// Close drops the buffered rows.
func (r *Result) Close() error {
	r.cancel()
	r.rows = nil
	r.closed = true
	return nil
}
