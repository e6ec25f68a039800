package heap

import "encoding/binary"

// noNext marks the end of a heap page chain.
const noNext uint32 = 0xFFFFFFFF

// slot flags.
const (
	slotLive = 0
	slotTomb = 1
)

// Heap page body layout:
//
//	offset  size  field
//	0       4     next heap page id (chain pointer)
//	4       2     slot count
//	6       2     free-space start (records occupy [freeStart:bodyLen))
//	8       ...   slot directory: slotCount * 6 bytes (offset,length,flags)
//	...     ...   record bytes, packed from the end of the page
const (
	hdrNextOff   = 0
	hdrCountOff  = 4
	hdrFreeOff   = 6
	slotDirStart = 8
	slotSize     = 6
)

func initPage(body []byte) {
	binary.BigEndian.PutUint32(body[hdrNextOff:hdrNextOff+4], noNext)
	binary.BigEndian.PutUint16(body[hdrCountOff:hdrCountOff+2], 0)
	binary.BigEndian.PutUint16(body[hdrFreeOff:hdrFreeOff+2], uint16(len(body)))
}

func pageNext(body []byte) uint32 { return binary.BigEndian.Uint32(body[hdrNextOff : hdrNextOff+4]) }
func setPageNext(body []byte, next uint32) {
	binary.BigEndian.PutUint32(body[hdrNextOff:hdrNextOff+4], next)
}

func slotCount(body []byte) int { return int(binary.BigEndian.Uint16(body[hdrCountOff : hdrCountOff+2])) }
func freeStart(body []byte) int { return int(binary.BigEndian.Uint16(body[hdrFreeOff : hdrFreeOff+2])) }

type slotEntry struct {
	offset uint16
	length uint16
	flags  uint16
}

func readSlot(body []byte, idx int) slotEntry {
	base := slotDirStart + idx*slotSize
	return slotEntry{
		offset: binary.BigEndian.Uint16(body[base : base+2]),
		length: binary.BigEndian.Uint16(body[base+2 : base+4]),
		flags:  binary.BigEndian.Uint16(body[base+4 : base+6]),
	}
}

func writeSlot(body []byte, idx int, s slotEntry) {
	base := slotDirStart + idx*slotSize
	binary.BigEndian.PutUint16(body[base:base+2], s.offset)
	binary.BigEndian.PutUint16(body[base+2:base+4], s.length)
	binary.BigEndian.PutUint16(body[base+4:base+6], s.flags)
}

// freeSpace returns the number of unused bytes between the slot
// directory and the packed record area.
func freeSpace(body []byte) int {
	return freeStart(body) - (slotDirStart + slotCount(body)*slotSize)
}

// tombstonedBytes returns the total record length of tombstoned slots,
// i.e. the extra space compact would reclaim beyond freeSpace's current
// count. The free-space map uses freeSpace+tombstonedBytes as a page's
// potential capacity without actually compacting it.
func tombstonedBytes(body []byte) int {
	total := 0
	n := slotCount(body)
	for i := 0; i < n; i++ {
		s := readSlot(body, i)
		if s.flags == slotTomb {
			total += int(s.length)
		}
	}
	return total
}

// appendRecord writes data into the page's free region and adds a new
// slot pointing at it, returning the new slot index. Caller must have
// already confirmed freeSpace(body) >= slotSize+len(data).
func appendRecord(body []byte, data []byte) int {
	fs := freeStart(body) - len(data)
	copy(body[fs:fs+len(data)], data)
	binary.BigEndian.PutUint16(body[hdrFreeOff:hdrFreeOff+2], uint16(fs))

	idx := slotCount(body)
	writeSlot(body, idx, slotEntry{offset: uint16(fs), length: uint16(len(data)), flags: slotLive})
	binary.BigEndian.PutUint16(body[hdrCountOff:hdrCountOff+2], uint16(idx+1))
	return idx
}

// compact repacks live records toward the end of the page, reclaiming
// space left by tombstoned or shrunk records, without renumbering slots.
func compact(body []byte) {
	n := slotCount(body)
	type live struct {
		idx  int
		data []byte
	}
	var records []live
	for i := 0; i < n; i++ {
		s := readSlot(body, i)
		if s.flags == slotTomb {
			continue
		}
		data := append([]byte(nil), body[s.offset:s.offset+s.length]...)
		records = append(records, live{idx: i, data: data})
	}

	cursor := len(body)
	for _, r := range records {
		cursor -= len(r.data)
		copy(body[cursor:cursor+len(r.data)], r.data)
		s := readSlot(body, r.idx)
		s.offset = uint16(cursor)
		writeSlot(body, r.idx, s)
	}
	binary.BigEndian.PutUint16(body[hdrFreeOff:hdrFreeOff+2], uint16(cursor))
}
