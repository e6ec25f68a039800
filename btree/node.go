// Package btree is the shared B+tree page engine used by both the
// primary tree (ptree) and secondary trees (stree): sorted leaf pages
// chained for range scans, and routing internal pages, grounded on the
// teacher's btree_index.BTreePage/BTreeEntry shape (a page holding a
// decoded slice of key/value entries) but framed into the fixed pager
// page format instead of a bespoke index file.
package btree

import (
	"encoding/binary"
	"fmt"

	"gdbx/pager"
)

// noPage marks "no page" for root/child pointers.
const noPage uint32 = 0

// entry is one key/value pair in a leaf page, or one key/child-pointer
// routing pair in an internal page.
type entry struct {
	key []byte
	val []byte
}

// leafNode is the decoded form of a KindTreeLeaf page.
type leafNode struct {
	next    uint32
	entries []entry
}

// internalNode is the decoded form of a KindTreeInternal page: n keys
// route to n+1 children.
type internalNode struct {
	children []uint32
	keys     [][]byte
}

func decodeLeaf(buf []byte) leafNode {
	body := buf[pager.BodyOffset():pager.BodyEnd(len(buf))]
	next := binary.BigEndian.Uint32(body[0:4])
	n := binary.BigEndian.Uint16(body[4:6])
	off := 6
	entries := make([]entry, 0, n)
	for i := 0; i < int(n); i++ {
		keyLen := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		key := append([]byte(nil), body[off:off+int(keyLen)]...)
		off += int(keyLen)
		valLen := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		val := append([]byte(nil), body[off:off+int(valLen)]...)
		off += int(valLen)
		entries = append(entries, entry{key: key, val: val})
	}
	return leafNode{next: next, entries: entries}
}

func leafEncodedSize(n leafNode) int {
	size := 6
	for _, e := range n.entries {
		size += 2 + len(e.key) + 2 + len(e.val)
	}
	return size
}

func encodeLeaf(pageID uint32, n leafNode, pageSize int) ([]byte, error) {
	buf := make([]byte, pageSize)
	pager.WriteHeader(buf, pager.KindTreeLeaf, pageID, 0)
	body := buf[pager.BodyOffset():pager.BodyEnd(pageSize)]

	size := leafEncodedSize(n)
	if size > len(body) {
		return nil, fmt.Errorf("btree: leaf page %d overflow (%d > %d bytes)", pageID, size, len(body))
	}

	binary.BigEndian.PutUint32(body[0:4], n.next)
	binary.BigEndian.PutUint16(body[4:6], uint16(len(n.entries)))
	off := 6
	for _, e := range n.entries {
		binary.BigEndian.PutUint16(body[off:off+2], uint16(len(e.key)))
		off += 2
		copy(body[off:], e.key)
		off += len(e.key)
		binary.BigEndian.PutUint16(body[off:off+2], uint16(len(e.val)))
		off += 2
		copy(body[off:], e.val)
		off += len(e.val)
	}
	pager.StampCRC(buf)
	return buf, nil
}

func decodeInternal(buf []byte) internalNode {
	body := buf[pager.BodyOffset():pager.BodyEnd(len(buf))]
	numKeys := binary.BigEndian.Uint16(body[0:2])
	off := 2
	children := make([]uint32, numKeys+1)
	for i := range children {
		children[i] = binary.BigEndian.Uint32(body[off : off+4])
		off += 4
	}
	keys := make([][]byte, numKeys)
	for i := range keys {
		keyLen := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		keys[i] = append([]byte(nil), body[off:off+int(keyLen)]...)
		off += int(keyLen)
	}
	return internalNode{children: children, keys: keys}
}

func internalEncodedSize(n internalNode) int {
	size := 2 + 4*len(n.children)
	for _, k := range n.keys {
		size += 2 + len(k)
	}
	return size
}

func encodeInternal(pageID uint32, n internalNode, pageSize int) ([]byte, error) {
	buf := make([]byte, pageSize)
	pager.WriteHeader(buf, pager.KindTreeInternal, pageID, 0)
	body := buf[pager.BodyOffset():pager.BodyEnd(pageSize)]

	size := internalEncodedSize(n)
	if size > len(body) {
		return nil, fmt.Errorf("btree: internal page %d overflow (%d > %d bytes)", pageID, size, len(body))
	}

	binary.BigEndian.PutUint16(body[0:2], uint16(len(n.keys)))
	off := 2
	for _, c := range n.children {
		binary.BigEndian.PutUint32(body[off:off+4], c)
		off += 4
	}
	for _, k := range n.keys {
		binary.BigEndian.PutUint16(body[off:off+2], uint16(len(k)))
		off += 2
		copy(body[off:], k)
		off += len(k)
	}
	pager.StampCRC(buf)
	return buf, nil
}
