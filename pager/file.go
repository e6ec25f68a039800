package pager

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// dataFile wraps the single backing file. The pager is the only component
// that touches the filesystem (§4.1).
type dataFile struct {
	mu       sync.RWMutex
	f        *os.File
	pageSize int
}

func openDataFile(path string, pageSize int) (*dataFile, bool, error) {
	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("pager: open %s: %w", path, err)
	}
	return &dataFile{f: f, pageSize: pageSize}, existed, nil
}

func (df *dataFile) readPage(pageID uint32, dst []byte) error {
	df.mu.RLock()
	defer df.mu.RUnlock()

	offset := int64(pageID) * int64(df.pageSize)
	n, err := df.f.ReadAt(dst, offset)
	if err != nil && n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		if n == 0 {
			return fmt.Errorf("pager: read page %d: %w", pageID, err)
		}
	}
	return nil
}

func (df *dataFile) writePage(pageID uint32, src []byte) error {
	df.mu.Lock()
	defer df.mu.Unlock()

	offset := int64(pageID) * int64(df.pageSize)
	n, err := df.f.WriteAt(src, offset)
	if err != nil {
		return fmt.Errorf("pager: write page %d: %w", pageID, err)
	}
	if n < len(src) {
		return fmt.Errorf("pager: short write for page %d: wrote %d of %d bytes", pageID, n, len(src))
	}
	return nil
}

// sync forces durable storage via fdatasync, following the teacher's use
// of golang.org/x/sys/unix for mmap/file durability in
// bundle_storage_engine.go.
func (df *dataFile) sync() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if err := unix.Fdatasync(int(df.f.Fd())); err != nil {
		// Fall back to the portable Sync on platforms where
		// fdatasync isn't wired (the unix build tag still compiles
		// there but the syscall may be unavailable).
		return df.f.Sync()
	}
	return nil
}

func (df *dataFile) truncateGrow(newSize int64) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.f.Truncate(newSize)
}

func (df *dataFile) size() (int64, error) {
	df.mu.RLock()
	defer df.mu.RUnlock()
	info, err := df.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (df *dataFile) close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.f.Close()
}
