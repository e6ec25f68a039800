// Package catalog implements the persistent collection/index registry
// (spec.md §4.7): collection and index metadata, BSON-encoded the way
// the teacher's engine package shaped its Bundle/Field/Constraint
// records, but stored directly in pager-managed pages instead of a
// side JSON file.
package catalog

// IndexDefinition describes one secondary index over a collection.
type IndexDefinition struct {
	Name      string `bson:"name"`
	FieldPath string `bson:"fieldPath"`
	Unique    bool   `bson:"unique"`
	Root      uint32 `bson:"root"`
}

// CollectionEntry is one collection's durable metadata: its primary
// B+tree root, the next DocId to assign, and its secondary indexes.
type CollectionEntry struct {
	Name        string `bson:"name"`
	PrimaryRoot uint32 `bson:"primaryRoot"`
	HeapRoot    uint32 `bson:"heapRoot"`
	// HeapFreeMapRoot is the chain head of the heap's bucketed
	// free-space summary (heap.Heap.FreeMapRoot) — 0 for a collection
	// with no heap pages yet, or one created before this field existed,
	// in which case the map starts empty and Insert uses only the tail
	// page until Insert or Delete has recorded other pages in it.
	HeapFreeMapRoot uint32            `bson:"heapFreeMapRoot"`
	NextDocID       int32             `bson:"nextDocId"`
	Indexes         []IndexDefinition `bson:"indexes"`
}

// document is the whole-catalog BSON payload persisted across one or
// more chained catalog pages.
type document struct {
	Collections map[string]CollectionEntry `bson:"collections"`
}

// FindIndex returns the named index definition, if present.
func (c CollectionEntry) FindIndex(name string) (IndexDefinition, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDefinition{}, false
}

// IndexOnField returns the first index defined over fieldPath, if any.
func (c CollectionEntry) IndexOnField(fieldPath string) (IndexDefinition, bool) {
	for _, idx := range c.Indexes {
		if idx.FieldPath == fieldPath {
			return idx, true
		}
	}
	return IndexDefinition{}, false
}
