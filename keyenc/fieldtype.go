// Package keyenc implements the order-preserving binary key encoding used
// by both B+tree engines (ptree, stree): for any two values a, b of the
// same FieldType, Encode(a) sorts lexicographically before Encode(b) iff a
// sorts before b under that type's natural order, with null always least.
package keyenc

import "fmt"

// FieldType is the closed enumeration of indexable scalar types. Complex
// is a sentinel for values that cannot be encoded into an index key.
type FieldType uint8

const (
	Int8 FieldType = iota + 1
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Single // IEEE-754 float32
	Double // IEEE-754 float64
	Decimal
	Bool
	Char
	String
	DateTime
	DateTimeOffset
	DateOnly
	TimeOnly
	TimeSpan
	Guid
	Complex // not indexable
)

func (t FieldType) String() string {
	switch t {
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case UInt8:
		return "UInt8"
	case UInt16:
		return "UInt16"
	case UInt32:
		return "UInt32"
	case UInt64:
		return "UInt64"
	case Single:
		return "Single"
	case Double:
		return "Double"
	case Decimal:
		return "Decimal"
	case Bool:
		return "Bool"
	case Char:
		return "Char"
	case String:
		return "String"
	case DateTime:
		return "DateTime"
	case DateTimeOffset:
		return "DateTimeOffset"
	case DateOnly:
		return "DateOnly"
	case TimeOnly:
		return "TimeOnly"
	case TimeSpan:
		return "TimeSpan"
	case Guid:
		return "Guid"
	case Complex:
		return "Complex"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Indexable reports whether values of this type can appear in an index key.
func (t FieldType) Indexable() bool {
	return t != Complex && t != 0
}
