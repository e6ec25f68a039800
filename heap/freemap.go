package heap

import (
	"encoding/binary"
	"fmt"

	"gdbx/pager"
)

// bucketCount partitions a heap page's free bytes into coarse classes,
// the bucketed free-space map spec.md §4.5 names as the mechanism
// Insert consults before falling back to a brand-new tail page.
const bucketCount = 4

// bucketFor quantizes free bytes (out of a page body of bodyLen bytes)
// into [0, bucketCount).
func bucketFor(free, bodyLen int) uint8 {
	if free <= 0 || bodyLen <= 0 {
		return 0
	}
	b := free * bucketCount / bodyLen
	if b >= bucketCount {
		b = bucketCount - 1
	}
	return uint8(b)
}

// freeMapEntrySize is the on-page encoding of one (pageID, bucket) pair.
const freeMapEntrySize = 5

// freeMapChunkHeaderSize is the per-page bookkeeping before the entry
// payload chunk: 4 bytes next-page id, 4 bytes chunk length — the same
// shape catalog.Store uses for its chained BSON payload.
const freeMapChunkHeaderSize = 8

// freeMap tracks every heap page's coarse free-space bucket, so Insert
// can probe a page other than the tail instead of always appending and
// growing the chain. It is persisted across a dedicated chain of
// pager.KindFreeMap pages, rewritten wholesale on every change — the
// same whole-document chain strategy catalog.Store uses for the
// collection registry (reuse existing chain page ids, allocate new ones
// only as needed, free the excess).
type freeMap struct {
	pager   *pager.Pager
	root    uint32
	entries map[uint32]uint8
}

func newFreeMap(p *pager.Pager) *freeMap {
	return &freeMap{pager: p, entries: map[uint32]uint8{}}
}

// loadFreeMap reads an existing free-space map chain, or returns an
// empty one if root is 0 (a fresh collection, or one created before
// this mechanism existed).
func loadFreeMap(p *pager.Pager, root uint32) (*freeMap, error) {
	m := newFreeMap(p)
	m.root = root
	if root == 0 {
		return m, nil
	}

	var payload []byte
	pageID := root
	for pageID != noNext {
		ref, err := p.FetchPage(pageID)
		if err != nil {
			return nil, fmt.Errorf("heap: freemap fetch page %d: %w", pageID, err)
		}
		if !pager.VerifyCRC(ref.Data()) {
			ref.Release()
			return nil, fmt.Errorf("heap: freemap page %d failed checksum verification", pageID)
		}
		body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
		next := binary.BigEndian.Uint32(body[0:4])
		chunkLen := binary.BigEndian.Uint32(body[4:8])
		payload = append(payload, body[freeMapChunkHeaderSize:freeMapChunkHeaderSize+int(chunkLen)]...)
		ref.Release()
		pageID = next
	}

	for off := 0; off+freeMapEntrySize <= len(payload); off += freeMapEntrySize {
		pageID := binary.BigEndian.Uint32(payload[off : off+4])
		m.entries[pageID] = payload[off+4]
	}
	return m, nil
}

// update records pageID's current bucket.
func (m *freeMap) update(pageID uint32, free, bodyLen int) {
	m.entries[pageID] = bucketFor(free, bodyLen)
}

// forget drops pageID from the map, e.g. once it's been freed back to
// the pager.
func (m *freeMap) forget(pageID uint32) {
	delete(m.entries, pageID)
}

// candidate returns a page id likely to have at least minFree bytes
// free, other than skip (the caller's current tail, already probed).
func (m *freeMap) candidate(minFree, bodyLen int, skip uint32) (uint32, bool) {
	want := bucketFor(minFree, bodyLen)
	for pageID, bucket := range m.entries {
		if pageID != skip && bucket >= want {
			return pageID, true
		}
	}
	return 0, false
}

// Root returns the free-space map's current chain head, to persist
// into the collection's catalog entry alongside the heap root.
func (m *freeMap) Root() uint32 { return m.root }

// stage encodes the map and writes it across a chain of
// pager.KindFreeMap pages, reusing existing chain page ids where
// possible, WITHOUT publishing — callers fold the returned root into
// their own transaction the way catalog.Store.Stage does for the
// collection registry.
func (m *freeMap) stage() (uint32, error) {
	payload := make([]byte, 0, len(m.entries)*freeMapEntrySize)
	for pageID, bucket := range m.entries {
		var buf [freeMapEntrySize]byte
		binary.BigEndian.PutUint32(buf[0:4], pageID)
		buf[4] = bucket
		payload = append(payload, buf[:]...)
	}

	oldChain, err := m.chainPageIDs()
	if err != nil {
		return 0, err
	}

	chunkCap := pager.BodyEnd(m.pager.PageSize()) - pager.BodyOffset() - freeMapChunkHeaderSize
	if chunkCap <= 0 {
		return 0, fmt.Errorf("heap: page size too small to hold a free-map chunk")
	}

	var newChain []uint32
	offset := 0
	for offset < len(payload) || len(newChain) == 0 {
		var pageID uint32
		if idx := len(newChain); idx < len(oldChain) {
			pageID = oldChain[idx]
		} else {
			pageID, err = m.pager.AllocatePage()
			if err != nil {
				return 0, err
			}
		}
		newChain = append(newChain, pageID)

		end := offset + chunkCap
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]
		offset = end

		if err := m.writeChunk(pageID, chunk); err != nil {
			return 0, err
		}
		if offset >= len(payload) {
			break
		}
	}

	for i, pageID := range newChain {
		next := noNext
		if i+1 < len(newChain) {
			next = newChain[i+1]
		}
		if err := m.patchNext(pageID, next); err != nil {
			return 0, err
		}
	}

	for i := len(newChain); i < len(oldChain); i++ {
		if err := m.pager.FreePage(oldChain[i]); err != nil {
			return 0, err
		}
	}

	m.root = newChain[0]
	return m.root, nil
}

func (m *freeMap) chainPageIDs() ([]uint32, error) {
	if m.root == 0 {
		return nil, nil
	}
	var ids []uint32
	pageID := m.root
	for pageID != noNext {
		ids = append(ids, pageID)
		ref, err := m.pager.FetchPage(pageID)
		if err != nil {
			return nil, err
		}
		body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
		next := binary.BigEndian.Uint32(body[0:4])
		ref.Release()
		pageID = next
	}
	return ids, nil
}

func (m *freeMap) writeChunk(pageID uint32, chunk []byte) error {
	ref, err := m.pager.FetchPage(pageID)
	if err != nil {
		return err
	}
	defer ref.Release()

	pager.WriteHeader(ref.Data(), pager.KindFreeMap, pageID, 0)
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	binary.BigEndian.PutUint32(body[4:8], uint32(len(chunk)))
	copy(body[freeMapChunkHeaderSize:], chunk)
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	return nil
}

func (m *freeMap) patchNext(pageID uint32, next uint32) error {
	ref, err := m.pager.FetchPage(pageID)
	if err != nil {
		return err
	}
	defer ref.Release()

	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	binary.BigEndian.PutUint32(body[0:4], next)
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	return nil
}
