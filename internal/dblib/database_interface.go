package dblib

import (
	"context"
	"database/sql"
)

// Querier is the part of database/sql every catalog and query helper needs.
// Both *sql.DB and *sql.Conn implement it, and so does Session, so helpers
// can run either on a pool or on the connection a grid is pinned to.
//
// Example: loading a relation on a grid's own connection
//
//	sess, err := dblib.OpenSession(ctx, db, lgr.Std)
//	if err != nil {
//	    return err
//	}
//	rel, err := dblib.LoadRelation(ctx, sess, "public", "users")
type Querier interface {
	// ExecContext runs a statement that returns no rows.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// QueryContext runs a statement returning rows. The caller closes them.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRowContext runs a statement expected to return at most one row.
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Conn)(nil)
	_ Querier = (*Session)(nil)
)
