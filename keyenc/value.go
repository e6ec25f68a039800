package keyenc

// DecimalValue is a 128-bit decimal value: a magnitude split across a 12-byte
// big-endian mantissa plus a base-10 scale, following the .NET-style
// decimal layout the source format targets.
type DecimalValue struct {
	Negative bool
	Scale    uint8
	Mantissa [12]byte // big-endian unsigned magnitude
}

// DateTimeOffsetValue pairs UTC ticks with the originally-observed offset,
// mirroring the two-component on-disk layout (§4.2).
type DateTimeOffsetValue struct {
	UTCTicks    int64
	OffsetTicks int64
}

// GuidValue is a 16-byte raw identifier, encoded byte-for-byte.
type GuidValue [16]byte

// Value is a typed scalar tagged with its FieldType. Null is a first-class
// value for every type: when Null is true the payload fields are ignored.
type Value struct {
	Type FieldType
	Null bool

	I64  int64  // Int8/16/32/64
	U64  uint64 // UInt8/16/32/64
	F32  float32
	F64  float64
	Dec  DecimalValue
	B    bool
	Ch   uint16 // Char, UTF-16-style code unit per the wire format
	Str  string
	G    GuidValue
	Date DateTimeOffsetValue // DateTimeOffset uses both fields; others reuse I64
}

// NullValue builds a null value of the given type.
func NullValue(t FieldType) Value { return Value{Type: t, Null: true} }
