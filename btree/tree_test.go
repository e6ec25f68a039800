package btree

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"gdbx/pager"
)

func openTestPager(t *testing.T, pageSize int) *pager.Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.gdbx")
	p, err := pager.Open(path, pager.Config{PageSize: pageSize, BufferPoolSize: 64})
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func keyOf(n uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, n)
	return buf
}

func TestInsertAndSearch(t *testing.T) {
	p := openTestPager(t, 4096)
	tr := Open(p, 0, BytesComparator)

	for i := uint32(0); i < 500; i++ {
		if err := tr.Insert(keyOf(i), keyOf(i*2)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := uint32(0); i < 500; i++ {
		val, found, err := tr.Search(keyOf(i))
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !found {
			t.Fatalf("key %d not found after insert", i)
		}
		if binary.BigEndian.Uint32(val) != i*2 {
			t.Fatalf("value for key %d = %d, want %d", i, binary.BigEndian.Uint32(val), i*2)
		}
	}

	if _, found, _ := tr.Search(keyOf(99999)); found {
		t.Fatalf("unexpected hit for absent key")
	}
}

func TestInsertReplacesExistingKey(t *testing.T) {
	p := openTestPager(t, 4096)
	tr := Open(p, 0, BytesComparator)

	if err := tr.Insert(keyOf(1), keyOf(10)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(keyOf(1), keyOf(20)); err != nil {
		t.Fatalf("Insert replace: %v", err)
	}
	val, found, err := tr.Search(keyOf(1))
	if err != nil || !found {
		t.Fatalf("Search: found=%v err=%v", found, err)
	}
	if binary.BigEndian.Uint32(val) != 20 {
		t.Fatalf("value = %d, want 20", binary.BigEndian.Uint32(val))
	}
}

func TestScanOrderedRange(t *testing.T) {
	p := openTestPager(t, 4096)
	tr := Open(p, 0, BytesComparator)

	for i := uint32(0); i < 200; i++ {
		if err := tr.Insert(keyOf(i), keyOf(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	var got []uint32
	err := tr.Scan(keyOf(50), keyOf(60), true, false, func(k, v []byte) (bool, error) {
		got = append(got, binary.BigEndian.Uint32(k))
		return true, nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d results, want 10: %v", len(got), got)
	}
	for i, v := range got {
		if v != 50+uint32(i) {
			t.Fatalf("result[%d] = %d, want %d", i, v, 50+uint32(i))
		}
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	p := openTestPager(t, 4096)
	tr := Open(p, 0, BytesComparator)

	for i := uint32(0); i < 50; i++ {
		if err := tr.Insert(keyOf(i), keyOf(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	ok, err := tr.Delete(keyOf(25))
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, found, _ := tr.Search(keyOf(25)); found {
		t.Fatalf("key 25 still found after delete")
	}

	ok, err = tr.Delete(keyOf(99999))
	if err != nil || ok {
		t.Fatalf("Delete absent key: ok=%v err=%v", ok, err)
	}

	for i := uint32(0); i < 50; i++ {
		if i == 25 {
			continue
		}
		if _, found, _ := tr.Search(keyOf(i)); !found {
			t.Fatalf("key %d missing after unrelated delete", i)
		}
	}
}

func TestRootGrowsAcrossSplits(t *testing.T) {
	// A tiny page size forces splits quickly, exercising root growth
	// from a single leaf to a multi-level tree.
	p := openTestPager(t, 256)
	tr := Open(p, 0, BytesComparator)

	for i := uint32(0); i < 300; i++ {
		if err := tr.Insert(keyOf(i), keyOf(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < 300; i++ {
		if _, found, _ := tr.Search(keyOf(i)); !found {
			t.Fatalf("key %d missing after many splits", i)
		}
	}
}
