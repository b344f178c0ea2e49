// Package dblib connects grids to PostgreSQL: it loads relation metadata
// from the catalog, builds the grid query, runs it in the background and
// executes the statements grids synthesize on a dedicated connection.
package dblib

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-pkgz/lgr"
	"github.com/lib/pq"

	"editgrid/internal/grid"
)

// Session owns one physical connection. A grid's reads and writes all go
// through the same session.
type Session struct {
	conn *sql.Conn
	log  lgr.L
}

var _ grid.Executor = (*Session)(nil)

// OpenSession takes a connection out of db's pool until Close.
func OpenSession(ctx context.Context, db *sql.DB, log lgr.L) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if log == nil {
		log = lgr.Std
	}
	return &Session{conn: conn, log: log}, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error { return s.conn.Close() }

func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, query, args...)
}

// QuoteStringLiteral quotes v as a PostgreSQL string literal.
func (s *Session) QuoteStringLiteral(v string) string { return pq.QuoteLiteral(v) }

// ExecuteVoid runs a statement whose result is not needed.
func (s *Session) ExecuteVoid(ctx context.Context, stmt string) error {
	s.log.Logf("[DEBUG] exec: %s", stmt)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// ExecuteRowSet runs a row returning statement and buffers its result.
func (s *Session) ExecuteRowSet(ctx context.Context, stmt string) (grid.RowSet, error) {
	s.log.Logf("[DEBUG] query: %s", stmt)
	rows, err := s.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return readRowSet(rows)
}

// ExecuteInsert runs an INSERT. Without RETURNING the affected row count is
// reported; with it every returned row counts as inserted and the first
// returned column of the first row is the row identifier.
func (s *Session) ExecuteInsert(ctx context.Context, stmt string, returning bool) (grid.RowSet, error) {
	s.log.Logf("[DEBUG] insert: %s", stmt)
	if !returning {
		res, err := s.conn.ExecContext(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("insert failed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert failed: %w", err)
		}
		return &rowSet{inserted: n}, nil
	}

	rows, err := s.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}
	set, err := readRowSet(rows)
	if err != nil {
		return nil, err
	}
	set.inserted = int64(len(set.rows))
	if len(set.rows) > 0 && len(set.rows[0]) > 0 {
		set.id = set.rows[0][0].String
	}
	return set, nil
}

func readRowSet(rows *sql.Rows) (*rowSet, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	set := &rowSet{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := set.index[c]; !dup {
			set.index[c] = i
		}
	}
	for rows.Next() {
		row := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		set.rows = append(set.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return set, nil
}

// rowSet is a fully buffered statement result positioned on its first row.
type rowSet struct {
	inserted int64
	id       string
	index    map[string]int
	rows     [][]sql.NullString
	pos      int
}

func (r *rowSet) InsertedRowCount() int64 { return r.inserted }
func (r *rowSet) InsertedRowIdentifier() string { return r.id }

// Lookup reads column of the current row by name.
func (r *rowSet) Lookup(column string) (string, bool, bool) {
	i, ok := r.index[column]
	if !ok || r.pos >= len(r.rows) {
		return "", false, false
	}
	v := r.rows[r.pos][i]
	return v.String, !v.Valid, true
}

func (r *rowSet) MoveNext() bool {
	if r.pos < len(r.rows) {
		r.pos++
	}
	return r.pos < len(r.rows)
}

func (r *rowSet) Close() error {
	r.rows = nil
	return nil
}
