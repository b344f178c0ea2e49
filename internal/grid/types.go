package grid

import "github.com/lib/pq/oid"

// TypeClass is the edit-relevant family of a column's base type.
type TypeClass int

const (
	ClassText TypeClass = iota
	ClassBoolean
	ClassInteger
	ClassFloat
	ClassNumeric
	ClassMoney
	ClassBinary
	ClassTemporal
	// ClassUnsupported is used when the catalog could not describe the column.
	ClassUnsupported
)

var classNames = map[TypeClass]string{
	ClassText:        "text",
	ClassBoolean:     "boolean",
	ClassInteger:     "integer",
	ClassFloat:       "float",
	ClassNumeric:     "numeric",
	ClassMoney:       "money",
	ClassBinary:      "binary",
	ClassTemporal:    "temporal",
	ClassUnsupported: "unsupported",
}

func (c TypeClass) String() string { return classNames[c] }

// SerialKind marks integer columns fed by their own sequence.
// It only changes labels, never edit behaviour.
type SerialKind int

const (
	NotSerial SerialKind = iota
	SmallSerial
	Serial
	BigSerial
)

func (s SerialKind) String() string {
	switch s {
	case SmallSerial:
		return "smallserial"
	case Serial:
		return "serial"
	case BigSerial:
		return "bigserial"
	default:
		return ""
	}
}

// classify maps a base type OID to its class.
func classify(typ oid.Oid) TypeClass {
	switch typ {
	case oid.T_bool:
		return ClassBoolean
	case oid.T_int2, oid.T_int4, oid.T_int8, oid.T_oid, oid.T_tid, oid.T_xid, oid.T_cid:
		return ClassInteger
	case oid.T_float4, oid.T_float8:
		return ClassFloat
	case oid.T_numeric:
		return ClassNumeric
	case oid.T_money:
		return ClassMoney
	case oid.T_bytea:
		return ClassBinary
	case oid.T_date, oid.T_time, oid.T_timetz, oid.T_timestamp, oid.T_timestamptz, oid.T_interval:
		return ClassTemporal
	case 0:
		return ClassUnsupported
	default:
		return ClassText
	}
}

func isBitString(typ oid.Oid) bool { return typ == oid.T_bit || typ == oid.T_varbit }
