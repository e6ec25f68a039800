package keyenc

import (
	"bytes"
	"sort"
	"testing"
)

func mustEncode(t *testing.T, v Value) []byte {
	t.Helper()
	b, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode(%+v): %v", v, err)
	}
	return b
}

func TestEncodeOrderingInt64(t *testing.T) {
	values := []int64{-100, -5, -1, 0, 1, 5, 100, 1 << 40}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, mustEncode(t, Value{Type: Int64, I64: v}))
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("expected encode(%d) < encode(%d), got %x >= %x",
				values[i-1], values[i], encoded[i-1], encoded[i])
		}
	}
}

func TestNullSortsBeforeAnyValue(t *testing.T) {
	null := mustEncode(t, NullValue(Int32))
	nonNull := mustEncode(t, Value{Type: Int32, I64: -1 << 30})
	if bytes.Compare(null, nonNull) >= 0 {
		t.Fatalf("expected null < non-null, got %x >= %x", null, nonNull)
	}
}

func TestEncodeOrderingString(t *testing.T) {
	values := []string{"", "Al", "Alice", "Alicia", "Bob", "bob"}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, mustEncode(t, Value{Type: String, Str: v}))
	}
	if !sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}) {
		t.Fatalf("string encodings not in sorted order: %v", values)
	}
}

func TestEncodeOrderingDouble(t *testing.T) {
	values := []float64{-1e10, -1.5, -0.0001, 0, 0.0001, 1.5, 1e10}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, mustEncode(t, Value{Type: Double, F64: v}))
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("expected encode(%v) < encode(%v), got %x >= %x",
				values[i-1], values[i], encoded[i-1], encoded[i])
		}
	}
}

func TestEncodeComplexUnsupported(t *testing.T) {
	if _, err := Encode(Value{Type: Complex}); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestPrefixAndPrefixEnd(t *testing.T) {
	prefix := EncodePrefix("Ali")
	end, ok := PrefixEnd(prefix)
	if !ok {
		t.Fatal("expected a finite prefix end")
	}
	inRange := mustEncode(t, Value{Type: String, Str: "Alice"})
	outOfRange := mustEncode(t, Value{Type: String, Str: "Bob"})

	if bytes.Compare(prefix, inRange) > 0 || bytes.Compare(inRange, end) >= 0 {
		t.Fatalf("expected prefix <= \"Alice\" < end, got prefix=%x in=%x end=%x", prefix, inRange, end)
	}
	if bytes.Compare(outOfRange, end) < 0 {
		t.Fatalf("expected \"Bob\" >= end, got out=%x end=%x", outOfRange, end)
	}
}

func TestEncodeStringEscapesNulByte(t *testing.T) {
	enc := mustEncode(t, Value{Type: String, Str: "a\x00b"})
	// presentByte, 'a', 0x00, 0xFF, 'b', terminator 0x00
	want := []byte{presentByte, 'a', 0x00, 0xFF, 'b', 0x00}
	if !bytes.Equal(enc, want) {
		t.Fatalf("got %x want %x", enc, want)
	}
}

func TestEncodeDecimalOrdering(t *testing.T) {
	neg100 := Value{Type: Decimal, Dec: DecimalValue{Negative: true, Mantissa: mantissaOf(100)}}
	neg1 := Value{Type: Decimal, Dec: DecimalValue{Negative: true, Mantissa: mantissaOf(1)}}
	zero := Value{Type: Decimal, Dec: DecimalValue{Negative: false, Mantissa: mantissaOf(0)}}
	pos1 := Value{Type: Decimal, Dec: DecimalValue{Negative: false, Mantissa: mantissaOf(1)}}

	encNeg100 := mustEncode(t, neg100)
	encNeg1 := mustEncode(t, neg1)
	encZero := mustEncode(t, zero)
	encPos1 := mustEncode(t, pos1)

	if !(bytes.Compare(encNeg100, encNeg1) < 0 &&
		bytes.Compare(encNeg1, encZero) < 0 &&
		bytes.Compare(encZero, encPos1) < 0) {
		t.Fatalf("decimal ordering violated: %x %x %x %x", encNeg100, encNeg1, encZero, encPos1)
	}
}

func mantissaOf(v uint32) [12]byte {
	var m [12]byte
	m[11] = byte(v)
	m[10] = byte(v >> 8)
	m[9] = byte(v >> 16)
	m[8] = byte(v >> 24)
	return m
}

func TestCompoundKeyConcatenatesPerFieldEncodings(t *testing.T) {
	k, err := EncodeCompound([]Value{
		{Type: Int32, I64: 7},
		{Type: String, Str: "x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := mustEncode(t, Value{Type: Int32, I64: 7})
	b := mustEncode(t, Value{Type: String, Str: "x"})
	want := append(append([]byte{}, a...), b...)
	if !bytes.Equal(k, want) {
		t.Fatalf("got %x want %x", k, want)
	}
}
