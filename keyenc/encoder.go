package keyenc

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrUnsupported is returned when encoding a Complex (or otherwise
// non-indexable) field type. The root package wraps this into
// ErrEncodeUnsupported for callers.
var ErrUnsupported = errors.New("keyenc: type is not encodable")

// nullByte/presentByte are the leading discriminator bytes every encoded
// value (outside of prefix-mode string encoding) carries, so that
// null sorts strictly before every non-null encoding of the same type.
const (
	nullByte    byte = 0x00
	presentByte byte = 0x01
)

// MinimumNonNullKey is the smallest possible encoding of any non-null
// value: callers who want SearchRange to skip nulls pass this as the
// lower bound explicitly, per §4.4.
var MinimumNonNullKey = []byte{presentByte}

// Encode produces the order-preserving byte encoding of v. Encoding is
// deterministic and injective for a given FieldType.
func Encode(v Value) ([]byte, error) {
	if v.Type == Complex {
		return nil, ErrUnsupported
	}
	if v.Null {
		return []byte{nullByte}, nil
	}

	body, err := encodeBody(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, presentByte)
	out = append(out, body...)
	return out, nil
}

func encodeBody(v Value) ([]byte, error) {
	switch v.Type {
	case Int8:
		return encodeSignedBias(v.I64, 1), nil
	case Int16:
		return encodeSignedBias(v.I64, 2), nil
	case Int32:
		return encodeSignedBias(v.I64, 4), nil
	case Int64:
		return encodeSignedBias(v.I64, 8), nil
	case UInt8:
		return encodeUnsigned(v.U64, 1), nil
	case UInt16:
		return encodeUnsigned(v.U64, 2), nil
	case UInt32:
		return encodeUnsigned(v.U64, 4), nil
	case UInt64:
		return encodeUnsigned(v.U64, 8), nil
	case Single:
		return encodeFloatBits(uint64(math.Float32bits(v.F32)), 4), nil
	case Double:
		return encodeFloatBits(math.Float64bits(v.F64), 8), nil
	case Decimal:
		return encodeDecimal(v.Dec), nil
	case Bool:
		if v.B {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil
	case Char:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, v.Ch)
		return buf, nil
	case String:
		return encodeString(v.Str), nil
	case DateTime, TimeOnly, TimeSpan:
		return encodeSignedBias(v.I64, 8), nil
	case DateOnly:
		return encodeSignedBias(v.I64, 4), nil
	case DateTimeOffset:
		utc := encodeSignedBias(v.Date.UTCTicks, 8)
		off := encodeSignedBias(v.Date.OffsetTicks, 8)
		return append(utc, off...), nil
	case Guid:
		out := make([]byte, 16)
		copy(out, v.G[:])
		return out, nil
	default:
		return nil, ErrUnsupported
	}
}

// encodeSignedBias flips the sign bit of a width-byte two's-complement
// integer so that unsigned big-endian comparison matches signed order.
func encodeSignedBias(value int64, width int) []byte {
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(value) ^ 0x80
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(value)^0x8000)
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(value)^0x80000000)
	case 8:
		binary.BigEndian.PutUint64(buf, uint64(value)^0x8000000000000000)
	}
	return buf
}

func encodeUnsigned(value uint64, width int) []byte {
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(value))
	case 8:
		binary.BigEndian.PutUint64(buf, value)
	}
	return buf
}

// encodeFloatBits applies the standard order-preserving float transform:
// negative numbers have every bit inverted, non-negative numbers have
// only the sign bit flipped. This maps IEEE-754 total order onto unsigned
// integer order including the sign boundary.
func encodeFloatBits(bits uint64, width int) []byte {
	signMask := uint64(1) << (width*8 - 1)
	if bits&signMask != 0 {
		bits = ^bits
	} else {
		bits |= signMask
	}
	return encodeUnsigned(bits, width)
}

// encodeDecimal lays out sign flag, scale, two reserved zero bytes (for a
// 16-byte fixed body), then a 12-byte big-endian magnitude. Negative
// magnitudes are bit-inverted so that larger magnitudes (more negative
// values) sort before smaller ones, matching positive/negative ordering
// around the sign flag.
func encodeDecimal(d DecimalValue) []byte {
	out := make([]byte, 16)
	if d.Negative {
		out[0] = 0x00
	} else {
		out[0] = 0x80
	}
	out[1] = d.Scale
	// out[2:4] reserved, left zero
	mantissa := d.Mantissa
	if d.Negative {
		for i := range mantissa {
			mantissa[i] = ^mantissa[i]
		}
	}
	copy(out[4:16], mantissa[:])
	return out
}

// encodeString escapes 0x00 as 0x00 0xFF and terminates with a bare 0x00,
// keeping the terminator distinguishable from an escaped interior byte so
// codepoint order and byte order coincide, and so a compound key can place
// more fields after a string.
func encodeString(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, s[i])
		}
	}
	out = append(out, 0x00)
	return out
}

// EncodePrefix encodes a string's raw bytes without the terminator, for
// use as the lower bound of a StartsWith range scan.
func EncodePrefix(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	out = append(out, presentByte)
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, s[i])
		}
	}
	return out
}

// PrefixEnd computes the exclusive upper bound key for a StartsWith range:
// increment the last byte of the raw (escaped) prefix encoding that isn't
// already 0xFF. If every byte is 0xFF (or the prefix is empty), there is
// no finite upper bound and the scan should be treated as unbounded above.
func PrefixEnd(prefixKey []byte) ([]byte, bool) {
	out := make([]byte, len(prefixKey))
	copy(out, prefixKey)
	for i := len(out) - 1; i >= 1; i-- { // index 0 is the presentByte tag
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1], true
		}
	}
	return nil, false
}

// AppendDocID appends the big-endian 4-byte DocId suffix secondary index
// keys use to disambiguate duplicate field values.
func AppendDocID(key []byte, docID int32) []byte {
	out := make([]byte, len(key)+4)
	copy(out, key)
	binary.BigEndian.PutUint32(out[len(key):], uint32(docID))
	return out
}
