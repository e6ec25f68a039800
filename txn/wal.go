package txn

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sync"

	"gdbx/pager"

	"golang.org/x/sys/unix"
)

// walFile holds at most one pending commit record at a time: this
// package's single-writer model never needs more than the transaction
// currently being committed, so a successful commit always resets the
// file back to empty (spec.md §4.6's "truncate the WAL" step).
//
// Record wire format:
//
//	[4]  total payload length (BE)
//	[..] payload: [8]txnID [4]numPages { [4]pageID [4]len []data }...
//	[4]  CRC-32 of payload (BE)
//
// A record is only trusted if the full length+CRC envelope is present
// and the CRC matches — a torn write from a crash mid-fsync is
// discarded rather than replayed.
type walFile struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func openWAL(path string) (*walFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("txn: open wal %s: %w", path, err)
	}
	return &walFile{f: f, path: path}, nil
}

// WriteRecord overwrites the WAL with a single record for txnID and
// fsyncs it durably before returning.
func (w *walFile) WriteRecord(txnID uint64, pages []pager.DirtyPage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload := encodeRecord(txnID, pages)
	buf := make([]byte, 4+len(payload)+4)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[4:], payload)
	sum := crc32.ChecksumIEEE(payload)
	binary.BigEndian.PutUint32(buf[4+len(payload):], sum)

	if _, err := w.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("txn: write wal record: %w", err)
	}
	if err := w.f.Truncate(int64(len(buf))); err != nil {
		return fmt.Errorf("txn: truncate wal to record size: %w", err)
	}
	return w.sync()
}

func encodeRecord(txnID uint64, pages []pager.DirtyPage) []byte {
	size := 8 + 4
	for _, p := range pages {
		size += 4 + 4 + len(p.Data)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint64(buf[0:8], txnID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(pages)))
	off := 12
	for _, p := range pages {
		binary.BigEndian.PutUint32(buf[off:off+4], p.PageID)
		off += 4
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(p.Data)))
		off += 4
		copy(buf[off:], p.Data)
		off += len(p.Data)
	}
	return buf
}

// ReadRecord returns the currently-stored record, if one is present and
// intact. ok is false (with no error) for an empty, torn, or corrupt
// WAL — none of those are replayed.
func (w *walFile) ReadRecord() (txnID uint64, pages []pager.DirtyPage, ok bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := w.f.Stat()
	if err != nil {
		return 0, nil, false, err
	}
	if info.Size() < 8 {
		return 0, nil, false, nil
	}

	lenBuf := make([]byte, 4)
	if _, err := w.f.ReadAt(lenBuf, 0); err != nil {
		return 0, nil, false, nil
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf)
	want := int64(4) + int64(payloadLen) + 4
	if info.Size() < want {
		return 0, nil, false, nil // torn write
	}

	rest := make([]byte, payloadLen+4)
	if _, err := w.f.ReadAt(rest, 4); err != nil {
		return 0, nil, false, nil
	}
	payload := rest[:payloadLen]
	storedSum := binary.BigEndian.Uint32(rest[payloadLen:])
	if crc32.ChecksumIEEE(payload) != storedSum {
		return 0, nil, false, nil // corrupt/torn
	}

	if len(payload) < 12 {
		return 0, nil, false, nil
	}
	txnID = binary.BigEndian.Uint64(payload[0:8])
	numPages := binary.BigEndian.Uint32(payload[8:12])
	off := 12
	for i := uint32(0); i < numPages; i++ {
		if off+8 > len(payload) {
			return 0, nil, false, nil
		}
		pageID := binary.BigEndian.Uint32(payload[off : off+4])
		off += 4
		dataLen := binary.BigEndian.Uint32(payload[off : off+4])
		off += 4
		if off+int(dataLen) > len(payload) {
			return 0, nil, false, nil
		}
		data := append([]byte(nil), payload[off:off+int(dataLen)]...)
		off += int(dataLen)
		pages = append(pages, pager.DirtyPage{PageID: pageID, Data: data})
	}
	return txnID, pages, true, nil
}

// Reset truncates the WAL back to empty, marking the prior record fully
// applied.
func (w *walFile) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Truncate(0); err != nil {
		return err
	}
	return w.sync()
}

func (w *walFile) sync() error {
	if err := unix.Fdatasync(int(w.f.Fd())); err != nil {
		return w.f.Sync()
	}
	return nil
}

func (w *walFile) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
