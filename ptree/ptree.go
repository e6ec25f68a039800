// Package ptree is the primary B+tree: DocId → document location
// (spec.md §4.3). Keys are the order-preserving int32 encoding from
// keyenc so primary-key range scans reuse the same comparator the
// secondary trees use.
package ptree

import (
	"gdbx/btree"
	"gdbx/keyenc"
	"gdbx/loc"
	"gdbx/pager"
)

// Tree is the primary index for one collection.
type Tree struct {
	inner *btree.Tree
}

// Open wraps root (0 if the collection has no documents yet).
func Open(p *pager.Pager, root uint32) *Tree {
	return &Tree{inner: btree.Open(p, root, btree.BytesComparator)}
}

// Root returns the tree's current root page id, to persist into the
// collection's catalog entry after a mutation.
func (t *Tree) Root() uint32 { return t.inner.Root() }

func encodeDocID(docID int32) []byte {
	key, err := keyenc.Encode(keyenc.Value{Type: keyenc.Int32, I64: int64(docID)})
	if err != nil {
		panic("ptree: encoding an int32 DocId can never fail: " + err.Error())
	}
	return key
}

// Insert records where docID's document lives, replacing any prior
// location for the same DocId (used when a document is relocated by a
// heap compaction or replace-in-place move).
func (t *Tree) Insert(docID int32, location loc.Location) error {
	return t.inner.Insert(encodeDocID(docID), location.Encode())
}

// Get looks up a document's location by DocId.
func (t *Tree) Get(docID int32) (loc.Location, bool, error) {
	val, found, err := t.inner.Search(encodeDocID(docID))
	if err != nil || !found {
		return loc.Location{}, false, err
	}
	return loc.Decode(val), true, nil
}

// Delete removes a DocId's entry. No underflow rebalancing follows —
// see DESIGN.md.
func (t *Tree) Delete(docID int32) (bool, error) {
	return t.inner.Delete(encodeDocID(docID))
}

// VisitFunc is called for each DocId in ascending order during a Range
// scan.
type VisitFunc func(docID int32, location loc.Location) (bool, error)

// Range walks DocIds in [lo, hi] ascending, bounds inclusive; a nil
// bound is unbounded on that side.
func (t *Tree) Range(lo, hi *int32, visit VisitFunc) error {
	var loKey, hiKey []byte
	if lo != nil {
		loKey = encodeDocID(*lo)
	}
	if hi != nil {
		hiKey = encodeDocID(*hi)
	}
	return t.inner.Scan(loKey, hiKey, true, true, func(k, v []byte) (bool, error) {
		docID, err := decodeDocIDKey(k)
		if err != nil {
			return false, err
		}
		return visit(docID, loc.Decode(v))
	})
}

func decodeDocIDKey(key []byte) (int32, error) {
	// key = presentByte(1) || sign-biased big-endian int32(4)
	biased := key[1:5]
	v := (uint32(biased[0])<<24 | uint32(biased[1])<<16 | uint32(biased[2])<<8 | uint32(biased[3])) ^ 0x80000000
	return int32(v), nil
}
