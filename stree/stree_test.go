package stree

import (
	"path/filepath"
	"testing"

	"gdbx/keyenc"
	"gdbx/loc"
	"gdbx/pager"
)

func openTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.gdbx")
	p, err := pager.Open(path, pager.Config{PageSize: 4096, BufferPoolSize: 64})
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func strKey(s string) []byte {
	k, err := keyenc.Encode(keyenc.Value{Type: keyenc.String, Str: s})
	if err != nil {
		panic(err)
	}
	return k
}

func TestEqualsFindsAllDuplicates(t *testing.T) {
	p := openTestPager(t)
	tr := Open(p, 0)

	if err := tr.Insert(strKey("alice"), 1, loc.Location{PageID: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(strKey("alice"), 2, loc.Location{PageID: 2}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(strKey("bob"), 3, loc.Location{PageID: 3}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var docs []int32
	err := tr.Range(strKey("alice"), strKey("alice"), true, true, func(docID int32, l loc.Location) (bool, error) {
		docs = append(docs, docID)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %v, want 2 docs for 'alice'", docs)
	}
}

func TestUniqueConflictDetection(t *testing.T) {
	p := openTestPager(t)
	tr := Open(p, 0)

	if err := tr.Insert(strKey("unique@example.com"), 10, loc.Location{PageID: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	conflict, found, err := tr.UniqueConflict(strKey("unique@example.com"), 99)
	if err != nil {
		t.Fatalf("UniqueConflict: %v", err)
	}
	if !found || conflict != 10 {
		t.Fatalf("expected conflict with doc 10, got conflict=%d found=%v", conflict, found)
	}

	_, found, err = tr.UniqueConflict(strKey("unique@example.com"), 10)
	if err != nil {
		t.Fatalf("UniqueConflict self-exclude: %v", err)
	}
	if found {
		t.Fatalf("self-exclude should not report a conflict")
	}
}

func TestRangeExclusiveBounds(t *testing.T) {
	p := openTestPager(t)
	tr := Open(p, 0)

	for i := int32(0); i < 10; i++ {
		v := keyenc.Value{Type: keyenc.Int32, I64: int64(i)}
		key, err := keyenc.Encode(v)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if err := tr.Insert(key, i, loc.Location{PageID: uint32(i)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	lo, _ := keyenc.Encode(keyenc.Value{Type: keyenc.Int32, I64: 3})
	hi, _ := keyenc.Encode(keyenc.Value{Type: keyenc.Int32, I64: 7})

	var docs []int32
	err := tr.Range(lo, hi, false, false, func(docID int32, l loc.Location) (bool, error) {
		docs = append(docs, docID)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	want := []int32{4, 5, 6}
	if len(docs) != len(want) {
		t.Fatalf("got %v, want %v", docs, want)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Fatalf("got %v, want %v", docs, want)
		}
	}
}
