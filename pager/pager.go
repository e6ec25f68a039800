// Package pager implements fixed-size page I/O over a single backing
// file: super-page bootstrap, a pooled buffer cache with clock-sweep
// eviction (adapted from the teacher's buffermgr.BufferPool), and
// first-fit free-page bitmap allocation. The pager is the only component
// that touches the filesystem (§4.1).
package pager

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config configures a Pager. Kept independent of the root package's
// Options so this package has no import-cycle back to it.
type Config struct {
	PageSize           int
	BufferPoolSize     int
	SyncOnCommit       bool
	SyncIntervalWrites int
	Logger             *zap.SugaredLogger
}

// Pager owns the backing file, buffer pool, and super-page/bitmap state.
type Pager struct {
	mu           sync.Mutex
	path         string
	file         *dataFile
	pool         *bufferPool
	pageSize     int
	syncOnCommit bool
	super        SuperPage
	logger       *zap.SugaredLogger
}

// Open opens path, bootstrapping a new file (with cfg.PageSize) if it
// doesn't exist, or reading the page size recorded in an existing file's
// super-page otherwise (per spec.md: page size is only meaningful on a
// freshly created file).
func Open(path string, cfg Config) (*Pager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 8192
	}
	if cfg.BufferPoolSize <= 0 {
		cfg.BufferPoolSize = 1000
	}

	rawFile, existed, err := openDataFile(path, cfg.PageSize)
	if err != nil {
		return nil, err
	}

	p := &Pager{
		path:         path,
		file:         rawFile,
		pageSize:     cfg.PageSize,
		syncOnCommit: cfg.SyncOnCommit,
		logger:       cfg.Logger,
	}

	if existed {
		if err := p.loadExisting(); err != nil {
			rawFile.close()
			return nil, err
		}
	} else {
		if err := p.bootstrap(); err != nil {
			rawFile.close()
			return nil, err
		}
	}

	p.pool = newBufferPool(cfg.BufferPoolSize, p.pageSize, p.file, cfg.SyncIntervalWrites, cfg.Logger)
	return p, nil
}

// loadExisting reads and validates the super-page of a pre-existing file,
// adopting its recorded page size.
func (p *Pager) loadExisting() error {
	header := make([]byte, superFixedHeaderSize)
	if _, err := p.file.f.ReadAt(header, 0); err != nil {
		return fmt.Errorf("pager: read super-page: %w", err)
	}
	sp, err := DecodeSuperPage(header)
	if err != nil {
		return err
	}
	p.pageSize = int(sp.PageSize)
	p.file.pageSize = p.pageSize
	p.super = sp
	return nil
}

// bootstrap initializes a brand-new file: super-page, and a bitmap root
// page covering it and itself.
func (p *Pager) bootstrap() error {
	id := uuid.New()
	p.super = SuperPage{
		Version:     FormatVersion,
		PageSize:    uint32(p.pageSize),
		BitmapRoot:  1,
		CatalogRoot: 0, // set once the catalog package creates its root
		PageCount:   2,
		WALOffset:   0,
		InstanceID:  id,
	}

	if err := p.file.truncateGrow(int64(p.pageSize) * 2); err != nil {
		return fmt.Errorf("pager: grow new file: %w", err)
	}

	bitmapBuf := make([]byte, p.pageSize)
	InitBitmapPage(bitmapBuf, 1)
	SetBit(bitmapBuf, 0, true) // super-page
	SetBit(bitmapBuf, 1, true) // bitmap root itself
	StampCRC(bitmapBuf)
	if err := p.file.writePage(1, bitmapBuf); err != nil {
		return err
	}

	return p.persistSuperPageLocked()
}

func (p *Pager) persistSuperPageLocked() error {
	buf := p.super.Encode(p.pageSize)
	if err := p.file.writePage(SuperPageID, buf); err != nil {
		return err
	}
	return p.file.sync()
}

// PageSize returns the effective page size for this open database.
func (p *Pager) PageSize() int { return p.pageSize }

// SuperPageSnapshot returns a copy of the current super-page fields.
func (p *Pager) SuperPageSnapshot() SuperPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.super
}

// SetCatalogRoot atomically rewrites the super-page's catalog root
// pointer and fsyncs it durably — the commit-protocol root swap of
// spec.md §4.6 step 4, specialized to the catalog.
func (p *Pager) SetCatalogRoot(root uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.super.CatalogRoot = root
	return p.persistSuperPageLocked()
}

// InstanceID returns the database's generated instance id, a diagnostic
// correlation id rather than load-bearing state.
func (p *Pager) InstanceID() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uuid.UUID(p.super.InstanceID)
}

// BitmapRoot returns the page id of the free-page bitmap's root page.
func (p *Pager) BitmapRoot() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.super.BitmapRoot
}

// CatalogRoot returns the current catalog root page id, or 0 if the
// catalog has not been created yet.
func (p *Pager) CatalogRoot() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.super.CatalogRoot
}

// PageRef is a scoped handle to a pinned buffer: callers must Release it
// on every exit path, mirroring the teacher's rent/return buffer
// discipline.
type PageRef struct {
	pager *Pager
	buf   *buffer
}

// Data returns the page's raw bytes, including header and trailing CRC.
func (r *PageRef) Data() []byte { return r.buf.data }

// MarkDirty flags the page for write-back at the next flush.
func (r *PageRef) MarkDirty() { r.pager.pool.markDirty(r.buf) }

// Release returns the buffer to the pool.
func (r *PageRef) Release() { r.pager.pool.release(r.buf) }

// FetchPage pins and returns the page with the given id.
func (p *Pager) FetchPage(pageID uint32) (*PageRef, error) {
	buf, err := p.pool.acquire(pageID)
	if err != nil {
		return nil, err
	}
	return &PageRef{pager: p, buf: buf}, nil
}

// AllocatePage reserves a new page id via first-fit over the free-page
// bitmap, growing the file by one page when the tracked range is
// saturated. A grown page count is persisted to the super-page eagerly
// (not gated behind the WAL root swap); the bitmap bit is set in the
// buffered bitmap page, which is logged and discarded like any other
// dirty page — see DESIGN.md.
func (p *Pager) AllocatePage() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bitmapCap := BitmapCapacity(p.pageSize)

	bmRef, err := p.pool.acquire(p.super.BitmapRoot)
	if err != nil {
		return 0, err
	}
	defer p.pool.release(bmRef)

	for idx := 2; idx < int(p.super.PageCount); idx++ {
		if !GetBit(bmRef.data, idx) {
			SetBit(bmRef.data, idx, true)
			p.pool.markDirty(bmRef)
			return uint32(idx), nil
		}
	}

	newID := p.super.PageCount
	if int(newID) >= bitmapCap {
		return 0, fmt.Errorf("pager: free-page bitmap exhausted at %d pages (chained bitmap pages not implemented)", bitmapCap)
	}

	if err := p.file.truncateGrow(int64(newID+1) * int64(p.pageSize)); err != nil {
		return 0, fmt.Errorf("pager: grow file: %w", err)
	}
	SetBit(bmRef.data, int(newID), true)
	p.pool.markDirty(bmRef)

	p.super.PageCount++
	if err := p.persistSuperPageLocked(); err != nil {
		return 0, err
	}
	return newID, nil
}

// FreePage returns a page id to the free-page bitmap for reuse.
func (p *Pager) FreePage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bmRef, err := p.pool.acquire(p.super.BitmapRoot)
	if err != nil {
		return err
	}
	defer p.pool.release(bmRef)

	SetBit(bmRef.data, int(pageID), false)
	p.pool.markDirty(bmRef)
	return nil
}

// FlushAndSync writes every dirty buffer and forces durable storage,
// the durability gate the transaction manager relies on at commit.
func (p *Pager) FlushAndSync() error {
	if err := p.pool.flushAllDirty(); err != nil {
		return err
	}
	return p.file.sync()
}

// Stats reports buffer pool hit/miss/eviction counters.
func (p *Pager) Stats() Stats { return p.pool.stats() }

// DirtyPages snapshots every currently-dirty buffer, for the
// transaction manager to log to the WAL ahead of writing them back.
func (p *Pager) DirtyPages() []DirtyPage { return p.pool.DirtySnapshot() }

// Abort discards every currently-dirty buffer's uncommitted changes by
// re-reading its page from disk.
func (p *Pager) Abort() error { return p.pool.discardDirty() }

// WriteRawPage writes a page's bytes directly to the data file,
// bypassing the buffer pool. Used only during WAL recovery, before any
// page has been cached.
func (p *Pager) WriteRawPage(pageID uint32, data []byte) error {
	return p.file.writePage(pageID, data)
}

// SyncDataFile forces the data file durable without flushing buffers,
// the post-apply fsync step of the commit protocol.
func (p *Pager) SyncDataFile() error { return p.file.sync() }

// Close flushes outstanding writes and closes the backing file.
func (p *Pager) Close() error {
	if err := p.FlushAndSync(); err != nil {
		return err
	}
	return p.file.close()
}
