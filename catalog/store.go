package catalog

import (
	"encoding/binary"
	"fmt"

	"gdbx/helpers"
	"gdbx/pager"

	"go.uber.org/zap"
)

// noNext marks the end of a catalog page chain.
const noNext uint32 = 0xFFFFFFFF

// chunkHeaderSize is the per-page bookkeeping before the BSON payload
// chunk: 4 bytes next-page id, 4 bytes chunk length.
const chunkHeaderSize = 8

// Store reads and writes the whole-catalog BSON document across one or
// more chained pager.KindCatalog pages, publishing the chain's head via
// the pager's atomic catalog-root pointer (spec.md §4.6 step 4).
type Store struct {
	pager  *pager.Pager
	logger *zap.SugaredLogger
}

// NewStore wraps p for catalog persistence.
func NewStore(p *pager.Pager, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{pager: p, logger: logger}
}

// Load reads the current catalog, returning an empty one if none has
// been created yet (a brand-new database).
func (s *Store) Load() (map[string]CollectionEntry, error) {
	root := s.pager.CatalogRoot()
	if root == 0 {
		return map[string]CollectionEntry{}, nil
	}

	var payload []byte
	pageID := root
	for pageID != noNext {
		ref, err := s.pager.FetchPage(pageID)
		if err != nil {
			return nil, fmt.Errorf("catalog: fetch page %d: %w", pageID, err)
		}
		if !pager.VerifyCRC(ref.Data()) {
			ref.Release()
			return nil, fmt.Errorf("catalog: page %d failed checksum verification", pageID)
		}
		body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
		next := binary.BigEndian.Uint32(body[0:4])
		chunkLen := binary.BigEndian.Uint32(body[4:8])
		payload = append(payload, body[chunkHeaderSize:chunkHeaderSize+int(chunkLen)]...)
		ref.Release()
		pageID = next
	}

	var doc document
	if err := helpers.DecodeBSON(payload, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if doc.Collections == nil {
		doc.Collections = map[string]CollectionEntry{}
	}
	return doc.Collections, nil
}

// Save BSON-encodes collections, writes it across a chain of catalog
// pages, and immediately swaps the pager's catalog root to the new
// chain head. Use this for catalog-only changes (EnsureCollection,
// CreateIndex, DropIndex) that aren't already part of a larger
// document-level transaction.
func (s *Store) Save(collections map[string]CollectionEntry) error {
	newRoot, err := s.Stage(collections)
	if err != nil {
		return err
	}
	return s.pager.SetCatalogRoot(newRoot)
}

// Stage BSON-encodes collections and writes it across a chain of
// catalog pages, WITHOUT publishing the new root — the pages are left
// dirty in the buffer pool for the caller's transaction to fold into
// its own WAL record and atomic root swap (txn.Manager.Commit).
func (s *Store) Stage(collections map[string]CollectionEntry) (uint32, error) {
	payload, err := helpers.EncodeBSON(document{Collections: collections})
	if err != nil {
		return 0, fmt.Errorf("catalog: encode: %w", err)
	}

	oldChain, err := s.chainPageIDs()
	if err != nil {
		return 0, err
	}

	chunkCap := pager.BodyEnd(s.pager.PageSize()) - pager.BodyOffset() - chunkHeaderSize
	if chunkCap <= 0 {
		return 0, fmt.Errorf("catalog: page size too small to hold a catalog chunk")
	}

	var newChain []uint32
	offset := 0
	for offset < len(payload) || len(newChain) == 0 {
		var pageID uint32
		if idx := len(newChain); idx < len(oldChain) {
			pageID = oldChain[idx]
		} else {
			pageID, err = s.pager.AllocatePage()
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

		if err := s.writeChunk(pageID, chunk); err != nil {
			return 0, err
		}
		if offset >= len(payload) {
			break
		}
	}

	// Link the chain: each page's next pointer refers to the following
	// page, and the last page's next is noNext.
	for i, pageID := range newChain {
		next := noNext
		if i+1 < len(newChain) {
			next = newChain[i+1]
		}
		if err := s.patchNext(pageID, next); err != nil {
			return 0, err
		}
	}

	for i := len(newChain); i < len(oldChain); i++ {
		if err := s.pager.FreePage(oldChain[i]); err != nil {
			return 0, err
		}
	}

	return newChain[0], nil
}

func (s *Store) chainPageIDs() ([]uint32, error) {
	root := s.pager.CatalogRoot()
	if root == 0 {
		return nil, nil
	}
	var ids []uint32
	pageID := root
	for pageID != noNext {
		ids = append(ids, pageID)
		ref, err := s.pager.FetchPage(pageID)
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

func (s *Store) writeChunk(pageID uint32, chunk []byte) error {
	ref, err := s.pager.FetchPage(pageID)
	if err != nil {
		return err
	}
	defer ref.Release()

	pager.WriteHeader(ref.Data(), pager.KindCatalog, pageID, 0)
	body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
	binary.BigEndian.PutUint32(body[4:8], uint32(len(chunk)))
	copy(body[chunkHeaderSize:], chunk)
	pager.StampCRC(ref.Data())
	ref.MarkDirty()
	return nil
}

func (s *Store) patchNext(pageID uint32, next uint32) error {
	ref, err := s.pager.FetchPage(pageID)
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
