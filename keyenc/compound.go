package keyenc

import "bytes"

// EncodeCompound concatenates the per-field encodings of values in order,
// each retaining its own null/value discriminator byte, forming the key
// for a compound secondary index.
func EncodeCompound(values []Value) ([]byte, error) {
	var out []byte
	for _, v := range values {
		enc, err := Encode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// Compare is a byte-lexicographic comparison of two encoded keys, used by
// the filter and query packages to order values and by tests to assert
// the encoder's monotonicity invariant directly.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}
