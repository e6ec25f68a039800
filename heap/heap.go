// Package heap is the document heap: slotted pages holding the raw
// JSON-codec-encoded document bytes a DocId's primary-tree entry points
// at (spec.md §4.5). Deletes tombstone in place; compaction is lazy,
// triggered only when a page can't otherwise satisfy an insert or
// in-place replace.
package heap

import (
	"fmt"

	"gdbx/loc"
	"gdbx/pager"
)

// Heap manages one collection's chain of heap pages.
type Heap struct {
	pager *pager.Pager
	root  uint32
	tail  uint32
	fm    *freeMap
}

// Open wraps root (0 if the collection has no documents yet), walking
// the chain once to find the current tail for O(1) amortized appends,
// and loads freeMapRoot's free-space summary (0 if none exists yet).
func Open(p *pager.Pager, root uint32, freeMapRoot uint32) (*Heap, error) {
	fm, err := loadFreeMap(p, freeMapRoot)
	if err != nil {
		return nil, err
	}
	h := &Heap{pager: p, root: root, fm: fm}
	if root == 0 {
		return h, nil
	}
	pageID := root
	for {
		ref, err := p.FetchPage(pageID)
		if err != nil {
			return nil, err
		}
		body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
		next := pageNext(body)
		ref.Release()
		if next == noNext {
			h.tail = pageID
			return h, nil
		}
		pageID = next
	}
}

// Root returns the heap's current root page id, to persist into the
// collection's catalog entry.
func (h *Heap) Root() uint32 { return h.root }

// FreeMapRoot returns the free-space map's current chain head, to
// persist into the collection's catalog entry alongside the heap root.
// Stage must be called first to flush any pending bucket updates.
func (h *Heap) FreeMapRoot() uint32 { return h.fm.Root() }

// Stage writes the free-space map's pending bucket updates to disk,
// returning its (possibly new) chain head for the caller's catalog
// entry. Call once per transaction, alongside Root().
func (h *Heap) Stage() (uint32, error) { return h.fm.stage() }

func (h *Heap) bodyLen() int { return pager.BodyEnd(h.pager.PageSize()) - pager.BodyOffset() }

// Insert appends data as a new document record. It first tries the
// current tail page, then consults the free-space map for any other
// page in the chain known to have enough room (spec.md §4.5), and only
// allocates a fresh tail page once both options fail.
func (h *Heap) Insert(data []byte) (loc.Location, error) {
	if h.root == 0 {
		pageID, err := h.allocatePage(noNext)
		if err != nil {
			return loc.Location{}, err
		}
		h.root = pageID
		h.tail = pageID
	}

	need := slotSize + len(data)

	if l, ok, err := h.insertInto(h.tail, data, need); err != nil {
		return loc.Location{}, err
	} else if ok {
		return l, nil
	}

	if pageID, ok := h.fm.candidate(need, h.bodyLen(), h.tail); ok {
		l, ok2, err := h.insertInto(pageID, data, need)
		if err != nil {
			return loc.Location{}, err
		}
		if ok2 {
			return l, nil
		}
		// The map's bucket was stale (e.g. since tombstoned records
		// weren't yet compacted away); fall through to a new tail page.
	}

	newID, err := h.allocatePage(noNext)
	if err != nil {
		return loc.Location{}, err
	}
	if err := h.linkTailTo(newID); err != nil {
		return loc.Location{}, err
	}
	h.tail = newID
	return h.Insert(data)
}

// insertInto attempts to append data into pageID, compacting first if
// the uncompacted free space isn't enough. ok is false (with no error)
// when the page still can't fit data after compaction.
func (h *Heap) insertInto(pageID uint32, data []byte, need int) (loc.Location, bool, error) {
	ref, err := h.pager.FetchPage(pageID)
	if err != nil {
		return loc.Location{}, false, err
	}
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]

	if freeSpace(body) < need {
		compact(body)
	}
	if freeSpace(body) < need {
		h.fm.update(pageID, freeSpace(body), len(body))
		ref.Release()
		return loc.Location{}, false, nil
	}

	slot := appendRecord(body, data)
	h.fm.update(pageID, freeSpace(body), len(body))
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	ref.Release()
	return loc.Location{PageID: pageID, Slot: uint16(slot)}, true, nil
}

// Get returns a document record's bytes.
func (h *Heap) Get(l loc.Location) ([]byte, error) {
	ref, err := h.pager.FetchPage(l.PageID)
	if err != nil {
		return nil, err
	}
	defer ref.Release()
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	if int(l.Slot) >= slotCount(body) {
		return nil, fmt.Errorf("heap: slot %d out of range on page %d", l.Slot, l.PageID)
	}
	s := readSlot(body, int(l.Slot))
	if s.flags == slotTomb {
		return nil, fmt.Errorf("heap: slot %d on page %d is deleted", l.Slot, l.PageID)
	}
	return append([]byte(nil), body[s.offset:s.offset+s.length]...), nil
}

// Delete tombstones a document's slot. The space is reclaimed lazily,
// the next time that page is compacted; the free-space map records the
// page's potential capacity so a later Insert can find it without
// waiting for that compaction.
func (h *Heap) Delete(l loc.Location) error {
	ref, err := h.pager.FetchPage(l.PageID)
	if err != nil {
		return err
	}
	defer ref.Release()
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	if int(l.Slot) >= slotCount(body) {
		return fmt.Errorf("heap: slot %d out of range on page %d", l.Slot, l.PageID)
	}
	s := readSlot(body, int(l.Slot))
	s.flags = slotTomb
	writeSlot(body, int(l.Slot), s)
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	h.fm.update(l.PageID, freeSpace(body)+tombstonedBytes(body), len(body))
	return nil
}

// Replace overwrites a document's bytes, reusing the same slot and
// location when the new encoding fits; otherwise it deletes the old
// record and inserts fresh, returning a new location and moved=true so
// the caller can repoint the primary tree's entry.
func (h *Heap) Replace(l loc.Location, data []byte) (newLoc loc.Location, moved bool, err error) {
	ref, err := h.pager.FetchPage(l.PageID)
	if err != nil {
		return loc.Location{}, false, err
	}
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	if int(l.Slot) >= slotCount(body) {
		ref.Release()
		return loc.Location{}, false, fmt.Errorf("heap: slot %d out of range on page %d", l.Slot, l.PageID)
	}
	s := readSlot(body, int(l.Slot))
	if s.flags == slotTomb {
		ref.Release()
		return loc.Location{}, false, fmt.Errorf("heap: slot %d on page %d is deleted", l.Slot, l.PageID)
	}

	if len(data) <= int(s.length) {
		copy(body[s.offset:s.offset+uint16(len(data))], data)
		s.length = uint16(len(data))
		writeSlot(body, int(l.Slot), s)
		pager.StampCRC(ref.Data())
		ref.MarkDirty()
		ref.Release()
		return l, false, nil
	}
	ref.Release()

	if err := h.Delete(l); err != nil {
		return loc.Location{}, false, err
	}
	nl, err := h.Insert(data)
	if err != nil {
		return loc.Location{}, false, err
	}
	return nl, true, nil
}

func (h *Heap) allocatePage(next uint32) (uint32, error) {
	pageID, err := h.pager.AllocatePage()
	if err != nil {
		return 0, err
	}
	ref, err := h.pager.FetchPage(pageID)
	if err != nil {
		return 0, err
	}
	defer ref.Release()
	pager.WriteHeader(ref.Data(), pager.KindHeap, pageID, 0)
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	initPage(body)
	setPageNext(body, next)
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	return pageID, nil
}

func (h *Heap) linkTailTo(next uint32) error {
	ref, err := h.pager.FetchPage(h.tail)
	if err != nil {
		return err
	}
	defer ref.Release()
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	setPageNext(body, next)
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	return nil
}
