// Package gdbx is an embedded, single-file document database: a fixed-
// page pager, order-preserving key encoding, primary and secondary
// B+trees, a document heap, a WAL-backed single-writer transaction
// manager, a persistent catalog, and a tagged filter model driving a
// query planner and executor. The document model itself is deliberately
// left to the caller — see TypeInfo and JsonCodec in doc.go.
package gdbx

import (
	"fmt"
	"strings"
	"sync"

	"gdbx/catalog"
	"gdbx/heap"
	"gdbx/keyenc"
	"gdbx/loc"
	"gdbx/pager"
	"gdbx/ptree"
	"gdbx/stree"
	"gdbx/txn"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// collectionHandle is one collection's open trees, heap, and the
// in-memory catalog entry mutated as writes land — refreshed from the
// catalog store on Abort, staged back to it on Commit.
type collectionHandle struct {
	entry   catalog.CollectionEntry
	primary *ptree.Tree
	heap    *heap.Heap
	indexes map[string]*stree.Tree // keyed by IndexDefinition.FieldPath
}

// Database is one open handle onto a single backing file. The control
// surface mirrors §6: Begin/Commit/Abort bracket every mutating call;
// GetByID and Query don't need a transaction of their own.
//
// Isolation note: this single-process implementation has no copy-on-write
// or shadow paging at the page layer — Insert/Replace/DeleteByID mutate
// B+tree and heap pages in place, and the pager's buffer pool is keyed
// purely by page id. A pinned root captured at read-start would still
// observe those in-place mutations, so true snapshot isolation (a reader
// seeing only the pre-commit state of a transaction in progress on this
// handle) isn't implemented. What mu actually provides is serialization:
// GetByID and Query take the same mutex Insert/Replace/DeleteByID hold
// for their whole call, so a read started mid-transaction on this handle
// observes that transaction's uncommitted writes (read-your-own-writes),
// never a torn/half-written read. Concurrent writers are still excluded
// for a transaction's whole span by txn.Manager's own lock (txn/manager.go).
// A reader on a second, independently-opened *Database handle against the
// same file only ever sees committed state, since it reloads the catalog
// from the pager's published root.
type Database struct {
	mu     sync.Mutex
	path   string
	opts   Options
	logger *zap.SugaredLogger

	pager *pager.Pager
	txn   *txn.Manager
	store *catalog.Store

	collections map[string]*collectionHandle
	inTxn       bool
	dirty       bool
}

// Open opens (or creates) the database file at path.
func Open(path string, opts Options) (*Database, error) {
	opts = opts.normalize()

	p, err := pager.Open(path, pager.Config{
		PageSize:           opts.PageSize,
		BufferPoolSize:     opts.BufferPoolSize,
		SyncOnCommit:       opts.SyncOnCommit,
		SyncIntervalWrites: opts.SyncIntervalWrites,
		Logger:             opts.Logger,
	})
	if err != nil {
		return nil, NewError(ErrKindIoError, fmt.Sprintf("open %s", path), err)
	}

	tm, err := txn.Open(p, path, opts.Logger)
	if err != nil {
		p.Close()
		return nil, NewError(ErrKindIoError, "open transaction manager", err)
	}

	db := &Database{
		path:   path,
		opts:   opts,
		logger: opts.Logger,
		pager:  p,
		txn:    tm,
		store:  catalog.NewStore(p, opts.Logger),
	}
	if err := db.reloadCollections(); err != nil {
		tm.Close()
		p.Close()
		return nil, err
	}
	return db, nil
}

// reloadCollections re-reads the catalog and re-opens every collection's
// trees/heap against its currently-published roots, discarding any
// in-memory root mutations an aborted transaction left behind.
func (db *Database) reloadCollections() error {
	entries, err := db.store.Load()
	if err != nil {
		return NewError(ErrKindFileCorrupt, "load catalog", err)
	}
	collections := make(map[string]*collectionHandle, len(entries))
	for name, entry := range entries {
		h, err := db.openCollection(entry)
		if err != nil {
			return err
		}
		collections[name] = h
	}
	db.collections = collections
	return nil
}

func (db *Database) openCollection(entry catalog.CollectionEntry) (*collectionHandle, error) {
	h, err := heap.Open(db.pager, entry.HeapRoot, entry.HeapFreeMapRoot)
	if err != nil {
		return nil, NewError(ErrKindIoError, "open heap", err)
	}
	indexes := make(map[string]*stree.Tree, len(entry.Indexes))
	for _, idx := range entry.Indexes {
		indexes[idx.FieldPath] = stree.Open(db.pager, idx.Root)
	}
	return &collectionHandle{
		entry:   entry,
		primary: ptree.Open(db.pager, entry.PrimaryRoot),
		heap:    h,
		indexes: indexes,
	}, nil
}

// Close flushes and releases the backing file. Closing with an open
// transaction aborts it first.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errs error
	if db.inTxn {
		if err := db.txn.Abort(); err != nil {
			errs = multierr.Append(errs, err)
		}
		db.inTxn = false
	}
	stats := db.pager.Stats()
	db.logger.Infow("closing database", "path", db.path, "hits", stats.Hits, "misses", stats.Misses, "evictions", stats.Evictions)

	errs = multierr.Append(errs, db.txn.Close())
	errs = multierr.Append(errs, db.pager.Close())
	return errs
}

// Begin starts a write transaction. Every collection-mutating method
// below (EnsureCollection, CreateIndex, DropIndex, Insert, Replace,
// DeleteByID) must run between a Begin and its matching Commit/Abort.
func (db *Database) Begin() {
	if db.opts.ReadOnly {
		return
	}
	db.txn.Begin()
	db.mu.Lock()
	db.inTxn = true
	db.dirty = false
	db.mu.Unlock()
}

// Commit publishes every change made since Begin. When no collection's
// catalog entry changed, it republishes the current catalog root
// unchanged rather than re-staging an identical payload.
func (db *Database) Commit() error {
	db.mu.Lock()
	if !db.inTxn {
		db.mu.Unlock()
		return ErrNotOpen
	}
	newRoot := db.pager.CatalogRoot()
	if db.dirty {
		entries := make(map[string]catalog.CollectionEntry, len(db.collections))
		for name, h := range db.collections {
			h.entry.PrimaryRoot = h.primary.Root()
			h.entry.HeapRoot = h.heap.Root()
			freeMapRoot, err := h.heap.Stage()
			if err != nil {
				db.mu.Unlock()
				return NewError(ErrKindIoError, "stage heap free-space map", err)
			}
			h.entry.HeapFreeMapRoot = freeMapRoot
			for i := range h.entry.Indexes {
				h.entry.Indexes[i].Root = h.indexes[h.entry.Indexes[i].FieldPath].Root()
			}
			entries[name] = h.entry
		}
		root, err := db.store.Stage(entries)
		if err != nil {
			db.mu.Unlock()
			return NewError(ErrKindIoError, "stage catalog", err)
		}
		newRoot = root
	}
	db.inTxn = false
	db.dirty = false
	db.mu.Unlock()

	if err := db.txn.Commit(newRoot); err != nil {
		return NewError(ErrKindIoError, "commit", err)
	}
	return nil
}

// Abort discards every change made since Begin and reloads every
// collection's trees from the still-published catalog state.
func (db *Database) Abort() error {
	db.mu.Lock()
	if !db.inTxn {
		db.mu.Unlock()
		return ErrNotOpen
	}
	db.inTxn = false
	db.dirty = false
	db.mu.Unlock()

	if err := db.txn.Abort(); err != nil {
		return NewError(ErrKindIoError, "abort", err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.reloadCollections()
}

// EnsureCollection creates ti's collection if it doesn't already exist,
// along with any single-field and compound indexes ti declares. A
// second call for an already-registered collection is a no-op — catalog
// entries are never implicitly destroyed (§3).
func (db *Database) EnsureCollection(ti TypeInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return ErrNotOpen
	}

	name := ti.CollectionName()
	if _, exists := db.collections[name]; exists {
		return nil
	}

	entry := catalog.CollectionEntry{Name: name, NextDocID: 1}
	unique := make(map[string]bool, len(ti.UniqueIndexFields()))
	for _, f := range ti.UniqueIndexFields() {
		unique[f] = true
	}
	for _, field := range ti.IndexedFields() {
		entry.Indexes = append(entry.Indexes, catalog.IndexDefinition{
			Name:      field,
			FieldPath: field,
			Unique:    unique[field],
		})
	}
	for _, group := range ti.CompoundIndexes() {
		entry.Indexes = append(entry.Indexes, catalog.IndexDefinition{
			Name:      strings.Join(group, "+"),
			FieldPath: strings.Join(group, ","),
		})
	}

	h, err := db.openCollection(entry)
	if err != nil {
		return err
	}
	db.collections[name] = h
	db.dirty = true
	return nil
}

// CreateIndex adds a new single-field secondary index to an existing
// collection, backfilling it from every already-committed document via
// codec.TryGetValue (codec operates on the same raw bytes the heap
// stores, so backfill needs no full Deserialize round-trip). A value
// that collides with an existing entry under a unique index aborts the
// whole CreateIndex with UniqueConstraintViolation, leaving the
// collection's index list unchanged.
func (db *Database) CreateIndex(collectionName, fieldPath string, unique bool, codec JsonCodec) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return ErrNotOpen
	}
	h, ok := db.collections[collectionName]
	if !ok {
		return NewError(ErrKindDocumentNotFound, "collection "+collectionName, nil)
	}
	if _, exists := h.entry.FindIndex(fieldPath); exists {
		return nil
	}

	tree := stree.Open(db.pager, 0)
	var rangeErr error
	err := h.primary.Range(nil, nil, func(docID int32, l loc.Location) (bool, error) {
		data, gerr := h.heap.Get(l)
		if gerr != nil {
			return false, gerr
		}
		v, present := codec.TryGetValue(data, fieldPath)
		if !present {
			return true, nil
		}
		key, eerr := keyenc.Encode(v)
		if eerr != nil {
			return false, eerr
		}
		if unique {
			if conflict, found, cerr := tree.UniqueConflict(key, docID); cerr != nil {
				return false, cerr
			} else if found {
				rangeErr = NewError(ErrKindUniqueConstraintViolation,
					fmt.Sprintf("field %q: docs %d and %d collide", fieldPath, conflict, docID), nil)
				return false, nil
			}
		}
		if ierr := tree.Insert(key, docID, l); ierr != nil {
			return false, ierr
		}
		return true, nil
	})
	if err != nil {
		return NewError(ErrKindIoError, "backfill index "+fieldPath, err)
	}
	if rangeErr != nil {
		return rangeErr
	}

	h.entry.Indexes = append(h.entry.Indexes, catalog.IndexDefinition{
		Name: fieldPath, FieldPath: fieldPath, Unique: unique, Root: tree.Root(),
	})
	h.indexes[fieldPath] = tree
	db.dirty = true
	return nil
}

// DropIndex removes a secondary index definition and its tree from a
// collection. Pages owned exclusively by the dropped index are not
// reclaimed (no index-tree page-walk/free pass is implemented).
func (db *Database) DropIndex(collectionName, indexName string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return ErrNotOpen
	}
	h, ok := db.collections[collectionName]
	if !ok {
		return NewError(ErrKindDocumentNotFound, "collection "+collectionName, nil)
	}
	kept := h.entry.Indexes[:0]
	for _, idx := range h.entry.Indexes {
		if idx.Name == indexName {
			delete(h.indexes, idx.FieldPath)
			continue
		}
		kept = append(kept, idx)
	}
	h.entry.Indexes = kept
	db.dirty = true
	return nil
}

// Insert assigns doc the collection's next DocId, stores it, updates
// every secondary index ti declares, and stamps the id back onto doc
// via ti.SetID. A collision on a unique index leaves no trace: the
// document is never stored and no index is touched.
func (db *Database) Insert(collectionName string, doc any, ti TypeInfo, codec JsonCodec) (int32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return 0, ErrNotOpen
	}
	h, ok := db.collections[collectionName]
	if !ok {
		return 0, NewError(ErrKindDocumentNotFound, "collection "+collectionName, nil)
	}

	fields := make(fieldMap, len(h.entry.Indexes))
	ti.ExtractIndexedFields(doc, fields)

	keys := make(map[string][]byte, len(h.entry.Indexes))
	for _, idx := range h.entry.Indexes {
		v, present := fieldValueFor(idx, fields)
		if !present {
			continue
		}
		key, err := keyenc.Encode(v)
		if err != nil {
			return 0, NewError(ErrKindEncodeUnsupported, "index "+idx.Name, err)
		}
		keys[idx.Name] = key
	}

	docID := h.entry.NextDocID
	for _, idx := range h.entry.Indexes {
		key, present := keys[idx.Name]
		if !idx.Unique || !present {
			continue
		}
		tree := h.indexes[idx.FieldPath]
		if conflict, found, err := tree.UniqueConflict(key, docID); err != nil {
			return 0, NewError(ErrKindIoError, "unique check", err)
		} else if found {
			return 0, NewError(ErrKindUniqueConstraintViolation,
				fmt.Sprintf("field %q: doc %d already holds this value", idx.FieldPath, conflict), nil)
		}
	}

	ti.SetID(doc, docID)
	data, err := codec.Serialize(doc)
	if err != nil {
		return 0, NewError(ErrKindEncodeUnsupported, "serialize document", err)
	}

	l, err := h.heap.Insert(data)
	if err != nil {
		return 0, NewError(ErrKindIoError, "heap insert", err)
	}
	if err := h.primary.Insert(docID, l); err != nil {
		return 0, NewError(ErrKindIoError, "primary insert", err)
	}
	for _, idx := range h.entry.Indexes {
		key, present := keys[idx.Name]
		if !present {
			continue
		}
		if err := h.indexes[idx.FieldPath].Insert(key, docID, l); err != nil {
			return 0, NewError(ErrKindIoError, "index insert", err)
		}
	}

	h.entry.NextDocID++
	db.dirty = true
	return docID, nil
}

// Replace overwrites an existing document in place: a new location is
// used transparently when the new payload no longer fits the old slot,
// and every secondary index whose extracted value changed is rewritten.
func (db *Database) Replace(collectionName string, docID int32, doc any, ti TypeInfo, codec JsonCodec) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return ErrNotOpen
	}
	h, ok := db.collections[collectionName]
	if !ok {
		return NewError(ErrKindDocumentNotFound, "collection "+collectionName, nil)
	}
	oldLoc, found, err := h.primary.Get(docID)
	if err != nil {
		return NewError(ErrKindIoError, "lookup", err)
	}
	if !found {
		return NewError(ErrKindDocumentNotFound, fmt.Sprintf("doc %d", docID), nil)
	}
	oldData, err := h.heap.Get(oldLoc)
	if err != nil {
		return NewError(ErrKindIoError, "read old document", err)
	}

	fields := make(fieldMap, len(h.entry.Indexes))
	ti.ExtractIndexedFields(doc, fields)

	for _, idx := range h.entry.Indexes {
		newVal, newPresent := fieldValueFor(idx, fields)
		oldVal, oldPresent := codec.TryGetValue(oldData, idx.FieldPath)
		if !idx.Unique || !newPresent {
			continue
		}
		if oldPresent {
			oldKey, _ := keyenc.Encode(oldVal)
			newKey, _ := keyenc.Encode(newVal)
			if string(oldKey) == string(newKey) {
				continue // unchanged; no new conflict to check
			}
		}
		newKey, err := keyenc.Encode(newVal)
		if err != nil {
			return NewError(ErrKindEncodeUnsupported, "index "+idx.Name, err)
		}
		if conflict, clashed, err := h.indexes[idx.FieldPath].UniqueConflict(newKey, docID); err != nil {
			return NewError(ErrKindIoError, "unique check", err)
		} else if clashed {
			return NewError(ErrKindUniqueConstraintViolation,
				fmt.Sprintf("field %q: doc %d already holds this value", idx.FieldPath, conflict), nil)
		}
	}

	data, err := codec.Serialize(doc)
	if err != nil {
		return NewError(ErrKindEncodeUnsupported, "serialize document", err)
	}
	newLoc, moved, err := h.heap.Replace(oldLoc, data)
	if err != nil {
		return NewError(ErrKindIoError, "heap replace", err)
	}
	if moved {
		if err := h.primary.Insert(docID, newLoc); err != nil {
			return NewError(ErrKindIoError, "re-point primary entry", err)
		}
	}

	for _, idx := range h.entry.Indexes {
		newVal, newPresent := fieldValueFor(idx, fields)
		oldVal, oldPresent := codec.TryGetValue(oldData, idx.FieldPath)
		tree := h.indexes[idx.FieldPath]
		if oldPresent {
			oldKey, _ := keyenc.Encode(oldVal)
			tree.Delete(oldKey, docID)
		}
		if newPresent {
			newKey, err := keyenc.Encode(newVal)
			if err != nil {
				return NewError(ErrKindEncodeUnsupported, "index "+idx.Name, err)
			}
			if err := tree.Insert(newKey, docID, newLoc); err != nil {
				return NewError(ErrKindIoError, "index insert", err)
			}
		}
	}

	db.dirty = true
	return nil
}

// DeleteByID tombstones docID's heap slot, removes its primary-tree
// entry, and removes every secondary-index entry whose value can still
// be read off the about-to-be-deleted document.
func (db *Database) DeleteByID(collectionName string, docID int32, codec JsonCodec) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return ErrNotOpen
	}
	h, ok := db.collections[collectionName]
	if !ok {
		return NewError(ErrKindDocumentNotFound, "collection "+collectionName, nil)
	}
	l, found, err := h.primary.Get(docID)
	if err != nil {
		return NewError(ErrKindIoError, "lookup", err)
	}
	if !found {
		return NewError(ErrKindDocumentNotFound, fmt.Sprintf("doc %d", docID), nil)
	}
	data, err := h.heap.Get(l)
	if err != nil {
		return NewError(ErrKindIoError, "read document", err)
	}

	for _, idx := range h.entry.Indexes {
		if v, present := codec.TryGetValue(data, idx.FieldPath); present {
			key, _ := keyenc.Encode(v)
			h.indexes[idx.FieldPath].Delete(key, docID)
		}
	}
	if _, err := h.primary.Delete(docID); err != nil {
		return NewError(ErrKindIoError, "delete primary entry", err)
	}
	if err := h.heap.Delete(l); err != nil {
		return NewError(ErrKindIoError, "delete heap slot", err)
	}

	db.dirty = true
	return nil
}

// GetByID reads and decodes one document. Usable outside a transaction:
// it reads whatever is currently visible through db.collections, which
// is the live, possibly-uncommitted state of an in-flight transaction on
// this same *Database handle (see the isolation note on Database).
func (db *Database) GetByID(collectionName string, docID int32, codec JsonCodec) (any, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	h, ok := db.collections[collectionName]
	if !ok {
		return nil, NewError(ErrKindDocumentNotFound, "collection "+collectionName, nil)
	}
	l, found, err := h.primary.Get(docID)
	if err != nil {
		return nil, NewError(ErrKindIoError, "lookup", err)
	}
	if !found {
		return nil, NewError(ErrKindDocumentNotFound, fmt.Sprintf("doc %d", docID), nil)
	}
	data, err := h.heap.Get(l)
	if err != nil {
		return nil, NewError(ErrKindIoError, "read document", err)
	}
	doc, err := codec.Deserialize(data)
	if err != nil {
		return nil, NewError(ErrKindEncodeUnsupported, "deserialize document", err)
	}
	return doc, nil
}

// fieldValueFor resolves idx's extracted value out of fields, joining a
// compound index's comma-separated field paths into one EncodeCompound
// payload. A single-field index simply looks up its one FieldPath.
func fieldValueFor(idx catalog.IndexDefinition, fields fieldMap) (keyenc.Value, bool) {
	if !strings.Contains(idx.FieldPath, ",") {
		v, ok := fields[idx.FieldPath]
		return v, ok
	}
	parts := strings.Split(idx.FieldPath, ",")
	values := make([]keyenc.Value, 0, len(parts))
	for _, p := range parts {
		v, ok := fields[p]
		if !ok {
			return keyenc.Value{}, false
		}
		values = append(values, v)
	}
	encoded, err := keyenc.EncodeCompound(values)
	if err != nil {
		return keyenc.Value{}, false
	}
	return keyenc.Value{Type: keyenc.String, Str: string(encoded)}, true
}

