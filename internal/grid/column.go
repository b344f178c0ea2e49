package grid

import (
	"strconv"
	"strings"

	"github.com/lib/pq/oid"

	"editgrid/internal/celledit"
)

const (
	// EmptySentinel is stored for a real empty string so it is not confused with NULL.
	EmptySentinel = "''"
	// EscapedEmpty is stored for a value that literally is two single quotes.
	EscapedEmpty = `\'\'`
	// BinaryPlaceholder is shown instead of bytea content.
	BinaryPlaceholder = "<binary data>"
)

// Attribute is one catalog row describing a non-dropped column of a relation.
type Attribute struct {
	Schema          string
	Relation        string
	Name            string
	AttNum          int
	TypeOID         oid.Oid // base type, domains resolved
	TypeName        string // type without modifier, e.g. "character varying"
	DisplayTypeName string // type with modifier, e.g. "character varying(20)"
	TypMod          int
	TypLen          int
	NotNull         bool
	HasDefault      bool
	Default         string
	Description     string
}

// Relation describes the source a grid edits.
type Relation struct {
	// Name is the qualified, quoted relation name used verbatim in statements.
	Name string
	// Kind is pg_class.relkind; only 'r' is editable.
	Kind byte
	// RowID names the row identifier column prepended to every query row, empty if none.
	RowID      string
	PrimaryKey []int  // attribute numbers
	Dropped    []bool // indexed by attnum-1, includes dropped columns
	Attributes []Attribute
}

// HasRowID reports whether query rows carry a leading row identifier.
func (r *Relation) HasRowID() bool { return r.RowID != "" }

// Editable reports whether any statement can safely target single rows.
func (r *Relation) Editable() bool {
	return r.Kind == 'r' && (r.HasRowID() || len(r.PrimaryKey) > 0)
}

// Quoter quotes string literals for the target dialect.
type Quoter interface {
	QuoteStringLiteral(s string) string
}

// Column is the edit model of one result column. It is built once at bind time.
type Column struct {
	Name            string
	TypeName        string
	DisplayTypeName string
	Description     string
	TypeOID         oid.Oid
	AttNum          int
	Class           TypeClass
	Serial          SerialKind
	NotNull         bool
	HasDefault      bool
	PrimaryKey      bool
	ReadOnly        bool
	Numeric         bool
	NeedsResize     bool
	Editor          celledit.Spec

	typMod int
	typLen int
}

// NewColumn derives the column model from a catalog attribute.
func NewColumn(attr Attribute) Column {
	c := Column{
		Name:            attr.Name,
		TypeName:        attr.TypeName,
		DisplayTypeName: attr.DisplayTypeName,
		Description:     attr.Description,
		TypeOID:         attr.TypeOID,
		AttNum:          attr.AttNum,
		Class:           classify(attr.TypeOID),
		NotNull:         attr.NotNull,
		HasDefault:      attr.HasDefault,
		typMod:          attr.TypMod,
		typLen:          attr.TypLen,
	}
	if c.DisplayTypeName == "" {
		c.DisplayTypeName = c.TypeName
	}

	// length-qualified character types round-trip as text so quoting never truncates
	switch c.TypeName {
	case "character", "character varying", `"char"`:
		c.TypeName = "text"
	}

	if attr.HasDefault && isSequenceDefault(attr) {
		switch attr.TypeOID {
		case oid.T_int2:
			c.Serial = SmallSerial
		case oid.T_int4:
			c.Serial = Serial
		case oid.T_int8:
			c.Serial = BigSerial
		}
	}

	switch attr.TypeOID {
	case oid.T_bool:
		c.Editor = celledit.Boolean()
	case oid.T_int8:
		c.numberEditor(20)
	case oid.T_int2:
		c.numberEditor(5)
	case oid.T_int4, oid.T_oid, oid.T_tid, oid.T_xid, oid.T_cid:
		c.numberEditor(10)
	case oid.T_float4, oid.T_float8:
		c.Numeric = true
		c.Editor = celledit.Numeric(-1, -1)
	case oid.T_money:
		c.Editor = celledit.Text()
	case oid.T_numeric:
		c.Numeric = true
		length, prec := c.Size(), c.Precision()
		if prec > 0 {
			length -= prec
		}
		c.Editor = celledit.Numeric(length, prec)
	case oid.T_bytea:
		c.ReadOnly = true
	case oid.T_date, oid.T_time, oid.T_timetz, oid.T_timestamp, oid.T_timestamptz, oid.T_interval:
		c.Editor = celledit.Text()
	case 0:
		c.ReadOnly = true
	default:
		c.NeedsResize = true
		c.Editor = celledit.Text()
	}
	return c
}

// rowIDColumn is the synthetic leading column holding the row identifier.
func rowIDColumn(name string) Column {
	return Column{
		Name:            name,
		TypeName:        "oid",
		DisplayTypeName: "oid",
		TypeOID:         oid.T_oid,
		Class:           ClassInteger,
		NotNull:         true,
		HasDefault:      true,
		ReadOnly:        true,
		Numeric:         true,
		Editor:          celledit.Numeric(10, 0),
		typLen:          4,
	}
}

// untypedColumn describes a result column the catalog knows nothing about.
func untypedColumn(name, typeName string) Column {
	return Column{Name: name, TypeName: typeName, DisplayTypeName: typeName, Class: ClassUnsupported, ReadOnly: true}
}

func (c *Column) numberEditor(length int) {
	c.Numeric = true
	c.Editor = celledit.Numeric(length, 0)
}

func isSequenceDefault(attr Attribute) bool {
	seq := attr.Relation + "_" + attr.Name + "_seq"
	for _, name := range []string{seq, attr.Schema + "." + seq} {
		if attr.Default == "nextval('"+name+"'::text)" || attr.Default == "nextval('"+name+"'::regclass)" {
			return true
		}
	}
	return false
}

// Size is the declared length decoded from the type modifier, or typlen.
func (c Column) Size() int {
	if c.typLen == -1 && c.typMod > 0 {
		return (c.typMod - 4) >> 16
	}
	return c.typLen
}

// Precision is the declared scale decoded from the type modifier, or -1.
func (c Column) Precision() int {
	if c.typLen == -1 && c.typMod > 0 {
		return (c.typMod - 4) & 0x7fff
	}
	return -1
}

// CastType is the type name appended to quoted literals.
func (c Column) CastType() string {
	if c.TypeName == "text" {
		return "text"
	}
	return c.DisplayTypeName
}

// Quote renders a cell value as an SQL literal with an explicit cast.
func (c Column) Quote(value string, q Quoter) string {
	var s string
	switch {
	case value == "":
		s = "NULL"
	case c.Numeric:
		s = q.QuoteStringLiteral(value)
	case value == EscapedEmpty:
		s = q.QuoteStringLiteral(EmptySentinel)
	case value == EmptySentinel:
		s = q.QuoteStringLiteral("")
	case c.Class == ClassBoolean && isBareWord(value):
		s = value
	case isBitString(c.TypeOID) && isBits(value):
		return "B'" + value + "'"
	default:
		s = q.QuoteStringLiteral(value)
	}
	return s + "::" + c.CastType()
}

// isBits reports whether value is a plain bit literal body.
func isBits(value string) bool {
	return strings.Trim(value, "01") == ""
}

// isBareWord reports whether value is letters and digits only, safe to emit unquoted.
func isBareWord(value string) bool {
	return strings.Trim(value, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789") == ""
}

// TypeLabel is the serial alias or the display type name.
func (c Column) TypeLabel() string {
	if c.Serial != NotSerial {
		return c.Serial.String()
	}
	return c.DisplayTypeName
}

// Label is the two-line grid header.
func (c Column) Label() string {
	label := c.Name + "\n"
	if c.PrimaryKey {
		label += "[PK] "
	}
	return label + c.TypeLabel()
}

// AttributeSummary renders key, not-null and default flags, e.g. "(NOT NULL, DEFAULT)".
func (c Column) AttributeSummary() string {
	var parts []string
	if c.PrimaryKey {
		parts = append(parts, "PK")
	} else if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.HasDefault {
		parts = append(parts, "DEFAULT")
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Describe expands a description template: %i index, %a attributes,
// %t type, %n name, %d catalog description.
func (c Column) Describe(format string, index int) string {
	r := strings.NewReplacer(
		"%i", strconv.Itoa(index),
		"%a", c.AttributeSummary(),
		"%t", c.TypeLabel(),
		"%n", c.Name,
		"%d", c.Description,
	)
	return r.Replace(format)
}
