// Package loc defines the fixed-width document location value stored in
// both the primary and secondary B+trees: the (page, slot) pair a tree
// leaf resolves to inside the document heap (spec.md §4.3/§4.4).
package loc

import "encoding/binary"

// Size is the encoded width of a Location in bytes.
const Size = 6

// Location addresses a document slot inside a heap page.
type Location struct {
	PageID uint32
	Slot   uint16
}

// Encode writes l in its fixed 6-byte big-endian form.
func (l Location) Encode() []byte {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint32(buf[0:4], l.PageID)
	binary.BigEndian.PutUint16(buf[4:6], l.Slot)
	return buf
}

// Decode reads a Location from its fixed 6-byte form.
func Decode(buf []byte) Location {
	return Location{
		PageID: binary.BigEndian.Uint32(buf[0:4]),
		Slot:   binary.BigEndian.Uint16(buf[4:6]),
	}
}
