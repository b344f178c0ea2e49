package dblib

import (
	"strings"

	"github.com/lib/pq"
)

// SplitTableName splits "schema.table" into its parts, defaulting the
// schema to public. Double-quoted parts may contain dots.
func SplitTableName(name string) (schema, table string) {
	parts := splitQualified(name)
	if len(parts) == 1 {
		return "public", parts[0]
	}
	return parts[0], strings.Join(parts[1:], ".")
}

// QualifiedName quotes each identifier independently and joins them.
func QualifiedName(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// splitQualified splits on dots outside double quotes and unquotes each part.
// Unquoted parts fold to lower case as PostgreSQL does.
func splitQualified(name string) []string {
	var (
		parts  []string
		cur    strings.Builder
		quoted bool
		wasQ   bool // current part was quoted
	)
	flush := func() {
		part := cur.String()
		if !wasQ {
			part = strings.ToLower(strings.TrimSpace(part))
		}
		parts = append(parts, part)
		cur.Reset()
		wasQ = false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '"' && quoted && i+1 < len(name) && name[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			quoted = !quoted
			wasQ = true
		case c == '.' && !quoted:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return parts
}
