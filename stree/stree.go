// Package stree is a secondary B+tree: encoded field value + DocId
// suffix → document location (spec.md §4.4). The DocId suffix
// disambiguates duplicate field values without requiring a
// multi-valued leaf entry format.
package stree

import (
	"math"

	"gdbx/btree"
	"gdbx/keyenc"
	"gdbx/loc"
	"gdbx/pager"
)

// Tree is one secondary index over a collection.
type Tree struct {
	inner *btree.Tree
}

// Open wraps root (0 if the index is empty).
func Open(p *pager.Pager, root uint32) *Tree {
	return &Tree{inner: btree.Open(p, root, btree.BytesComparator)}
}

// Root returns the tree's current root page id, to persist into the
// index's catalog entry after a mutation.
func (t *Tree) Root() uint32 { return t.inner.Root() }

// Insert records docID's document at location under valueKey, the
// keyenc-encoded field value (without DocId suffix).
func (t *Tree) Insert(valueKey []byte, docID int32, location loc.Location) error {
	return t.inner.Insert(keyenc.AppendDocID(valueKey, docID), location.Encode())
}

// Delete removes the (valueKey, docID) entry.
func (t *Tree) Delete(valueKey []byte, docID int32) (bool, error) {
	return t.inner.Delete(keyenc.AppendDocID(valueKey, docID))
}

// VisitFunc is called for each matching (docID, location) in ascending
// value, then ascending DocId, order.
type VisitFunc func(docID int32, location loc.Location) (bool, error)

// Range walks entries whose value lies in [loValue, hiValue] according
// to the inclusivity flags, regardless of DocId suffix. A nil bound is
// unbounded on that side. Equals is expressed as Range(v, v, true, true).
func (t *Tree) Range(loValue, hiValue []byte, loInclusive, hiInclusive bool, visit VisitFunc) error {
	var loKey, hiKey []byte
	loKeyIncl, hiKeyIncl := true, true

	if loValue != nil {
		if loInclusive {
			loKey = keyenc.AppendDocID(loValue, 0)
		} else {
			loKey = keyenc.AppendDocID(loValue, math.MaxInt32)
			loKeyIncl = false
		}
	}
	if hiValue != nil {
		if hiInclusive {
			hiKey = keyenc.AppendDocID(hiValue, math.MaxInt32)
		} else {
			hiKey = keyenc.AppendDocID(hiValue, 0)
			hiKeyIncl = false
		}
	}

	return t.inner.Scan(loKey, hiKey, loKeyIncl, hiKeyIncl, func(k, v []byte) (bool, error) {
		docID := decodeDocIDSuffix(k)
		return visit(docID, loc.Decode(v))
	})
}

// UniqueConflict reports the first DocId (other than excludeDocID) that
// already holds valueKey, for unique-index enforcement.
func (t *Tree) UniqueConflict(valueKey []byte, excludeDocID int32) (int32, bool, error) {
	var conflict int32
	found := false
	err := t.Range(valueKey, valueKey, true, true, func(docID int32, _ loc.Location) (bool, error) {
		if docID != excludeDocID {
			conflict = docID
			found = true
			return false, nil
		}
		return true, nil
	})
	return conflict, found, err
}

func decodeDocIDSuffix(key []byte) int32 {
	n := len(key)
	suffix := key[n-4:]
	v := uint32(suffix[0])<<24 | uint32(suffix[1])<<16 | uint32(suffix[2])<<8 | uint32(suffix[3])
	return int32(v)
}
