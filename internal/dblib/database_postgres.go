package dblib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"editgrid/internal/grid"
)

// ErrRelationNotFound is returned when the catalog has no such relation.
var ErrRelationNotFound = errors.New("relation not found")

// LoadRelation reads everything a grid needs to know about schema.table from
// the PostgreSQL catalog: relation kind, row identifier, primary key,
// dropped attribute numbers and the live columns.
func LoadRelation(ctx context.Context, q Querier, schema, table string) (*grid.Relation, error) {
	wrapErr := func(err error) (*grid.Relation, error) {
		return nil, fmt.Errorf("failed to load relation %s.%s: %w", schema, table, err)
	}

	var (
		oid     int64
		relkind string
	)
	err := q.QueryRowContext(ctx, `
		SELECT c.oid, c.relkind
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`, schema, table).Scan(&oid, &relkind)
	if errors.Is(err, sql.ErrNoRows) {
		return wrapErr(ErrRelationNotFound)
	}
	if err != nil {
		return wrapErr(err)
	}

	rel := &grid.Relation{Name: QualifiedName(schema, table), Kind: relkind[0]}
	if rel.Kind == 'p' {
		// partitioned tables take DML like plain ones
		rel.Kind = 'r'
	}

	hasOID, err := hasOIDColumn(ctx, q, oid)
	if err != nil {
		return wrapErr(err)
	}
	if hasOID {
		rel.RowID = "oid"
	}
	if rel.PrimaryKey, err = loadPrimaryKey(ctx, q, oid); err != nil {
		return wrapErr(err)
	}
	if rel.Dropped, err = loadDropped(ctx, q, oid); err != nil {
		return wrapErr(err)
	}
	if rel.Attributes, err = loadAttributes(ctx, q, oid); err != nil {
		return wrapErr(err)
	}
	return rel, nil
}

// hasOIDColumn detects the system oid column of tables created WITH OIDS.
func hasOIDColumn(ctx context.Context, q Querier, oid int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM pg_attribute
		WHERE attrelid = $1 AND attnum < 0 AND attname = 'oid'`, oid).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("row identifier probe: %w", err)
	}
	return n > 0, nil
}

// loadPrimaryKey returns the primary key attribute numbers in index order.
func loadPrimaryKey(ctx context.Context, q Querier, oid int64) ([]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT k.attnum
		FROM pg_index i
		JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
		WHERE i.indrelid = $1 AND i.indisprimary
		ORDER BY k.ord`, oid)
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}
	defer rows.Close()

	var key []int
	for rows.Next() {
		var attnum int
		if err := rows.Scan(&attnum); err != nil {
			return nil, fmt.Errorf("primary key: %w", err)
		}
		key = append(key, attnum)
	}
	return key, rows.Err()
}

// loadDropped returns the dropped flag of every user attribute, indexed by attnum-1.
func loadDropped(ctx context.Context, q Querier, oid int64) ([]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT attnum, attisdropped FROM pg_attribute
		WHERE attrelid = $1 AND attnum > 0
		ORDER BY attnum`, oid)
	if err != nil {
		return nil, fmt.Errorf("dropped attributes: %w", err)
	}
	defer rows.Close()

	var dropped []bool
	for rows.Next() {
		var (
			attnum int
			isDrop bool
		)
		if err := rows.Scan(&attnum, &isDrop); err != nil {
			return nil, fmt.Errorf("dropped attributes: %w", err)
		}
		for len(dropped) < attnum {
			dropped = append(dropped, true)
		}
		dropped[attnum-1] = isDrop
	}
	return dropped, rows.Err()
}

// loadAttributes reads the live columns in attnum order. Domains report their
// base type and the domain's own type modifier so editing follows the
// underlying representation.
func loadAttributes(ctx context.Context, q Querier, oid int64) ([]grid.Attribute, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT n.nspname, c.relname, a.attname, a.attnum,
		       bt.oid, format_type(bt.oid, NULL), format_type(a.atttypid, a.atttypmod),
		       CASE WHEN t.typbasetype <> 0 THEN t.typtypmod ELSE a.atttypmod END,
		       CASE WHEN t.typbasetype <> 0 THEN t.typlen ELSE bt.typlen END,
		       a.attnotnull, a.atthasdef,
		       COALESCE(pg_get_expr(d.adbin, d.adrelid), ''),
		       COALESCE(col_description(c.oid, a.attnum), '')
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_type t ON t.oid = a.atttypid
		JOIN pg_type bt ON bt.oid = CASE WHEN t.typtype = 'd' THEN t.typbasetype ELSE t.oid END
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, oid)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	defer rows.Close()

	var attrs []grid.Attribute
	for rows.Next() {
		var a grid.Attribute
		err := rows.Scan(&a.Schema, &a.Relation, &a.Name, &a.AttNum,
			&a.TypeOID, &a.TypeName, &a.DisplayTypeName,
			&a.TypMod, &a.TypLen, &a.NotNull, &a.HasDefault,
			&a.Default, &a.Description)
		if err != nil {
			return nil, fmt.Errorf("attributes: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return attrs, nil
}
