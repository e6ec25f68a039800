package pager

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Buffer states, mirroring the teacher's buffer manager vocabulary
// (invalid/valid, dirty tracked separately).
const (
	bufferStateInvalid = 0
	bufferStateValid   = 1
)

// buffer is a single pooled page-sized slot.
type buffer struct {
	mu         sync.Mutex
	state      int
	refCount   int
	usageCount int
	referenced bool

	pageID  uint32
	data    []byte
	dirty   bool
	touched time.Time
}

// bufferPool is a fixed-size pool of page buffers backed by clock-sweep
// eviction, adapted from buffermgr.BufferPool to a single backing file
// (one FileID, so BufferTag collapses to a bare page id).
type bufferPool struct {
	mu        sync.Mutex
	buffers   []*buffer
	byPageID  map[uint32]int
	clockHand int

	pageSize int
	capacity int

	hits, misses, evictions, writes uint64
	syncInterval                    int

	file *dataFile

	logger *zap.SugaredLogger
}

func newBufferPool(capacity, pageSize int, file *dataFile, syncInterval int, logger *zap.SugaredLogger) *bufferPool {
	bp := &bufferPool{
		buffers:      make([]*buffer, capacity),
		byPageID:     make(map[uint32]int, capacity),
		pageSize:     pageSize,
		capacity:     capacity,
		syncInterval: syncInterval,
		file:         file,
		logger:       logger,
	}
	for i := range bp.buffers {
		bp.buffers[i] = &buffer{data: make([]byte, pageSize)}
	}
	return bp
}

// acquire returns the buffer holding pageID, reading it from disk on a
// cache miss, and increments its reference count. The caller must call
// release when done (scoped rent/return, guaranteed even on error paths
// by the PageRef wrapper in pager.go).
func (bp *bufferPool) acquire(pageID uint32) (*buffer, error) {
	bp.mu.Lock()
	if idx, found := bp.byPageID[pageID]; found {
		buf := bp.buffers[idx]
		bp.hits++
		bp.mu.Unlock()

		buf.mu.Lock()
		buf.refCount++
		buf.usageCount++
		buf.referenced = true
		buf.mu.Unlock()
		return buf, nil
	}
	bp.misses++
	idx, err := bp.findVictim()
	if err != nil {
		bp.mu.Unlock()
		return nil, err
	}
	buf := bp.buffers[idx]
	bp.mu.Unlock()

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.dirty {
		if err := bp.writeLocked(buf); err != nil {
			return nil, fmt.Errorf("pager: flush dirty buffer before reuse: %w", err)
		}
	}

	bp.mu.Lock()
	if buf.state != bufferStateInvalid {
		delete(bp.byPageID, buf.pageID)
	}
	bp.byPageID[pageID] = idx
	bp.mu.Unlock()

	if err := bp.file.readPage(pageID, buf.data); err != nil {
		bp.mu.Lock()
		delete(bp.byPageID, pageID)
		bp.mu.Unlock()
		return nil, err
	}

	buf.pageID = pageID
	buf.state = bufferStateValid
	buf.refCount = 1
	buf.usageCount = 1
	buf.referenced = true
	buf.dirty = false
	return buf, nil
}

// findVictim finds a free or evictable buffer slot. Caller holds bp.mu.
func (bp *bufferPool) findVictim() (int, error) {
	for i, b := range bp.buffers {
		if b.state == bufferStateInvalid {
			return i, nil
		}
	}

	start := bp.clockHand
	for {
		idx := bp.clockHand
		bp.clockHand = (bp.clockHand + 1) % bp.capacity
		b := bp.buffers[idx]

		b.mu.Lock()
		if b.refCount > 0 {
			b.mu.Unlock()
		} else if b.referenced {
			b.referenced = false
			b.mu.Unlock()
		} else {
			b.mu.Unlock()
			bp.evictions++
			return idx, nil
		}

		if bp.clockHand == start {
			return 0, fmt.Errorf("pager: all %d buffers pinned, cannot evict", bp.capacity)
		}
	}
}

// release decrements a buffer's reference count.
func (bp *bufferPool) release(buf *buffer) {
	buf.mu.Lock()
	if buf.refCount > 0 {
		buf.refCount--
	}
	buf.mu.Unlock()
}

// markDirty flags a buffer for write-back.
func (bp *bufferPool) markDirty(buf *buffer) {
	buf.mu.Lock()
	buf.dirty = true
	buf.touched = time.Now()
	buf.mu.Unlock()
}

func (bp *bufferPool) writeLocked(buf *buffer) error {
	bp.logger.Debugf("writing buffer for page %d to disk", buf.pageID)
	if err := bp.file.writePage(buf.pageID, buf.data); err != nil {
		return err
	}
	buf.dirty = false
	bp.writes++
	if bp.syncInterval > 0 && bp.writes%uint64(bp.syncInterval) == 0 {
		if err := bp.file.sync(); err != nil {
			bp.logger.Warnf("interval sync failed: %v", err)
		}
	}
	return nil
}

// flushAllDirty writes every dirty buffer to disk.
func (bp *bufferPool) flushAllDirty() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, buf := range bp.buffers {
		buf.mu.Lock()
		if buf.state != bufferStateInvalid && buf.dirty {
			if err := bp.writeLocked(buf); err != nil {
				buf.mu.Unlock()
				return err
			}
		}
		buf.mu.Unlock()
	}
	return nil
}

// discardDirty re-reads every dirty buffer from disk, discarding its
// uncommitted in-memory changes — the abort path.
func (bp *bufferPool) discardDirty() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, buf := range bp.buffers {
		buf.mu.Lock()
		if buf.state != bufferStateInvalid && buf.dirty {
			if err := bp.file.readPage(buf.pageID, buf.data); err != nil {
				buf.mu.Unlock()
				return err
			}
			buf.dirty = false
		}
		buf.mu.Unlock()
	}
	return nil
}

// DirtySnapshot copies every currently-dirty buffer's page id and bytes,
// for the transaction manager to fold into a WAL record before they are
// written back to the data file.
func (bp *bufferPool) DirtySnapshot() []DirtyPage {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var out []DirtyPage
	for _, buf := range bp.buffers {
		buf.mu.Lock()
		if buf.state != bufferStateInvalid && buf.dirty {
			out = append(out, DirtyPage{PageID: buf.pageID, Data: append([]byte(nil), buf.data...)})
		}
		buf.mu.Unlock()
	}
	return out
}

// DirtyPage is one dirty buffer's page id and byte image.
type DirtyPage struct {
	PageID uint32
	Data   []byte
}

// Stats mirrors buffermgr.BufferStats for caller-facing diagnostics.
type Stats struct {
	TotalBuffers int
	UsedBuffers  int
	DirtyBuffers int
	Hits         uint64
	Misses       uint64
	HitRatio     float64
	Evictions    uint64
}

func (bp *bufferPool) stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	s := Stats{TotalBuffers: bp.capacity, Hits: bp.hits, Misses: bp.misses, Evictions: bp.evictions}
	for _, buf := range bp.buffers {
		buf.mu.Lock()
		if buf.state != bufferStateInvalid {
			s.UsedBuffers++
			if buf.dirty {
				s.DirtyBuffers++
			}
		}
		buf.mu.Unlock()
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}
