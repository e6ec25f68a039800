// Package txn is the transaction manager: single-writer commit
// protocol over a write-ahead log, and crash recovery, grounded on the
// teacher's Journal (append-before-apply durability, one file per
// lifecycle) but built around binary page images instead of text lines
// (spec.md §4.6).
package txn

import (
	"fmt"
	"sync"
	"time"

	"gdbx/pager"

	"go.uber.org/zap"
)

// Manager serializes writers and runs the WAL-ahead commit protocol:
// write dirty pages to the WAL and fsync it, apply them to the data
// file and fsync that, atomically swap the catalog root and fsync the
// super-page, then truncate the WAL.
type Manager struct {
	mu        sync.Mutex
	pager     *pager.Pager
	wal       *walFile
	nextTxnID uint64
	logger    *zap.SugaredLogger
	log       *CommitLog
}

// Open wraps p, replaying any complete-but-unapplied WAL record left
// behind by a crash before accepting new transactions.
func Open(p *pager.Pager, dataPath string, logger *zap.SugaredLogger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	w, err := openWAL(dataPath + ".wal")
	if err != nil {
		return nil, err
	}
	m := &Manager{pager: p, wal: w, logger: logger, log: newCommitLog(64)}
	if err := m.recover(); err != nil {
		w.close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) recover() error {
	txnID, pages, ok, err := m.wal.ReadRecord()
	if err != nil {
		return fmt.Errorf("txn: reading wal for recovery: %w", err)
	}
	if !ok {
		return nil
	}
	m.logger.Infof("recovering %d pages from wal for txn %d", len(pages), txnID)
	for _, dp := range pages {
		if err := m.pager.WriteRawPage(dp.PageID, dp.Data); err != nil {
			return fmt.Errorf("txn: replaying wal page %d: %w", dp.PageID, err)
		}
	}
	if err := m.pager.SyncDataFile(); err != nil {
		return err
	}
	return m.wal.Reset()
}

// Begin starts a write transaction. The single-writer model means this
// just serializes against any other in-flight transaction; callers
// must always follow with Commit or Abort.
func (m *Manager) Begin() {
	m.mu.Lock()
}

// Commit runs the WAL-ahead commit protocol over every page the
// transaction left dirty, then atomically publishes newCatalogRoot as
// the database's catalog root.
func (m *Manager) Commit(newCatalogRoot uint32) error {
	defer m.mu.Unlock()

	dirty := m.pager.DirtyPages()
	m.nextTxnID++
	txnID := m.nextTxnID

	if len(dirty) > 0 {
		if err := m.wal.WriteRecord(txnID, dirty); err != nil {
			return fmt.Errorf("txn: write wal: %w", err)
		}
		if err := m.pager.FlushAndSync(); err != nil {
			return fmt.Errorf("txn: flush data pages: %w", err)
		}
	}

	if err := m.pager.SetCatalogRoot(newCatalogRoot); err != nil {
		return fmt.Errorf("txn: swap catalog root: %w", err)
	}

	if len(dirty) > 0 {
		if err := m.wal.Reset(); err != nil {
			return fmt.Errorf("txn: truncate wal: %w", err)
		}
	}

	m.log.record(txnID, len(dirty))
	return nil
}

// Abort discards every page the transaction left dirty and releases
// the writer lock.
func (m *Manager) Abort() error {
	defer m.mu.Unlock()
	return m.pager.Abort()
}

// Close closes the WAL file handle.
func (m *Manager) Close() error { return m.wal.close() }

// CommitEntry is one completed transaction's diagnostic record.
type CommitEntry struct {
	TxnID     uint64
	PageCount int
	At        time.Time
}

// CommitLog is an in-memory ring buffer of recent commits, a
// supplement beyond what spec.md requires — useful for a status
// endpoint or test assertions without re-reading the WAL.
type CommitLog struct {
	mu      sync.Mutex
	entries []CommitEntry
	cap     int
}

func newCommitLog(capacity int) *CommitLog {
	return &CommitLog{cap: capacity}
}

func (l *CommitLog) record(txnID uint64, pageCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, CommitEntry{TxnID: txnID, PageCount: pageCount, At: time.Now()})
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Recent returns the most recently committed transactions, newest last.
func (m *Manager) Recent() []CommitEntry {
	m.log.mu.Lock()
	defer m.log.mu.Unlock()
	out := make([]CommitEntry, len(m.log.entries))
	copy(out, m.log.entries)
	return out
}
