package catalog

import (
	"path/filepath"
	"testing"

	"gdbx/pager"
)

func openTestPager(t *testing.T, pageSize int) *pager.Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.gdbx")
	p, err := pager.Open(path, pager.Config{PageSize: pageSize, BufferPoolSize: 16})
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestLoadEmptyCatalog(t *testing.T) {
	p := openTestPager(t, 4096)
	s := NewStore(p, nil)

	cols, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cols) != 0 {
		t.Fatalf("expected empty catalog, got %d collections", len(cols))
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	p := openTestPager(t, 4096)
	s := NewStore(p, nil)

	cols := map[string]CollectionEntry{
		"users": {
			Name:        "users",
			PrimaryRoot: 10,
			HeapRoot:    11,
			NextDocID:   42,
			Indexes: []IndexDefinition{
				{Name: "by_email", FieldPath: "email", Unique: true, Root: 12},
			},
		},
	}
	if err := s.Save(cols); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, ok := got["users"]
	if !ok {
		t.Fatalf("missing users collection after round trip")
	}
	if entry.NextDocID != 42 || entry.PrimaryRoot != 10 || entry.HeapRoot != 11 {
		t.Fatalf("unexpected entry after round trip: %+v", entry)
	}
	idx, ok := entry.IndexOnField("email")
	if !ok || !idx.Unique || idx.Root != 12 {
		t.Fatalf("unexpected index after round trip: %+v ok=%v", idx, ok)
	}
}

func TestSaveGrowsAndShrinksChain(t *testing.T) {
	// A tiny page size forces the catalog document to span many pages,
	// exercising chain growth, then shrink back down exercises freeing
	// surplus pages.
	p := openTestPager(t, 256)
	s := NewStore(p, nil)

	big := map[string]CollectionEntry{}
	for i := 0; i < 20; i++ {
		name := "collection_with_a_longish_name_" + string(rune('a'+i))
		big[name] = CollectionEntry{Name: name, PrimaryRoot: uint32(i + 1)}
	}
	if err := s.Save(big); err != nil {
		t.Fatalf("Save big: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load big: %v", err)
	}
	if len(got) != len(big) {
		t.Fatalf("got %d collections, want %d", len(got), len(big))
	}

	small := map[string]CollectionEntry{"only": {Name: "only", PrimaryRoot: 99}}
	if err := s.Save(small); err != nil {
		t.Fatalf("Save small: %v", err)
	}
	got2, err := s.Load()
	if err != nil {
		t.Fatalf("Load small: %v", err)
	}
	if len(got2) != 1 {
		t.Fatalf("got %d collections after shrink, want 1", len(got2))
	}
}
