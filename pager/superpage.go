package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Magic identifies a valid database file, matching spec.md's bit-exact
// super-page layout.
const Magic = "GDBX"

// FormatVersion is the on-disk format version this package reads/writes.
const FormatVersion uint32 = 1

// SuperPageID is always page 0.
const SuperPageID uint32 = 0

// Fixed super-page header layout (first 64 bytes of page 0):
//
//	offset  size  field
//	0       4     magic "GDBX"
//	4       4     format version (BE)
//	8       4     page size (BE)
//	12      4     bitmap root page id (BE)
//	16      4     catalog root page id (BE)
//	20      4     page count (BE)
//	24      8     WAL offset (BE)
//	32      4     CRC-32 of bytes [0:32] (BE)
//	36      16    database instance id (raw UUID bytes)
//	52      12    reserved
const (
	superFixedHeaderSize = 64
	superCRCOffset       = 32
	superInstanceIDOff   = 36
)

// SuperPage holds the decoded contents of page 0.
type SuperPage struct {
	Version     uint32
	PageSize    uint32
	BitmapRoot  uint32
	CatalogRoot uint32
	PageCount   uint32
	WALOffset   uint64
	InstanceID  [16]byte
}

// Encode writes sp into a freshly zeroed page-sized buffer.
func (sp SuperPage) Encode(pageSize int) []byte {
	buf := make([]byte, pageSize)
	copy(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], sp.Version)
	binary.BigEndian.PutUint32(buf[8:12], sp.PageSize)
	binary.BigEndian.PutUint32(buf[12:16], sp.BitmapRoot)
	binary.BigEndian.PutUint32(buf[16:20], sp.CatalogRoot)
	binary.BigEndian.PutUint32(buf[20:24], sp.PageCount)
	binary.BigEndian.PutUint64(buf[24:32], sp.WALOffset)
	sum := crc32.ChecksumIEEE(buf[0:superCRCOffset])
	binary.BigEndian.PutUint32(buf[superCRCOffset:superCRCOffset+4], sum)
	copy(buf[superInstanceIDOff:superInstanceIDOff+16], sp.InstanceID[:])
	return buf
}

// DecodeSuperPage validates the magic, version, and CRC, and decodes the
// fixed header fields.
func DecodeSuperPage(buf []byte) (SuperPage, error) {
	if len(buf) < superFixedHeaderSize {
		return SuperPage{}, fmt.Errorf("pager: super-page too small (%d bytes)", len(buf))
	}
	if string(buf[0:4]) != Magic {
		return SuperPage{}, fmt.Errorf("pager: bad magic %q", buf[0:4])
	}
	sum := crc32.ChecksumIEEE(buf[0:superCRCOffset])
	want := binary.BigEndian.Uint32(buf[superCRCOffset : superCRCOffset+4])
	if sum != want {
		return SuperPage{}, fmt.Errorf("pager: super-page checksum mismatch")
	}

	var sp SuperPage
	sp.Version = binary.BigEndian.Uint32(buf[4:8])
	sp.PageSize = binary.BigEndian.Uint32(buf[8:12])
	sp.BitmapRoot = binary.BigEndian.Uint32(buf[12:16])
	sp.CatalogRoot = binary.BigEndian.Uint32(buf[16:20])
	sp.PageCount = binary.BigEndian.Uint32(buf[20:24])
	sp.WALOffset = binary.BigEndian.Uint64(buf[24:32])
	copy(sp.InstanceID[:], buf[superInstanceIDOff:superInstanceIDOff+16])

	if sp.Version != FormatVersion {
		return sp, &VersionMismatchError{Found: sp.Version, Expected: FormatVersion}
	}
	return sp, nil
}

// VersionMismatchError is returned by DecodeSuperPage when the on-disk
// format version does not match what this build understands.
type VersionMismatchError struct {
	Found, Expected uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("pager: format version mismatch: file has %d, expected %d", e.Found, e.Expected)
}
