package heap

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"gdbx/loc"
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

func TestInsertAndGet(t *testing.T) {
	p := openTestPager(t, 4096)
	h, err := Open(p, 0, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	l, err := h.Insert([]byte("hello document"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := h.Get(l)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello document" {
		t.Fatalf("got %q", got)
	}
}

func TestDeleteThenGetFails(t *testing.T) {
	p := openTestPager(t, 4096)
	h, _ := Open(p, 0, 0)

	l, err := h.Insert([]byte("doomed"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := h.Delete(l); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := h.Get(l); err == nil {
		t.Fatalf("expected error reading a deleted slot")
	}
}

func TestReplaceInPlaceWhenSmallerOrEqual(t *testing.T) {
	p := openTestPager(t, 4096)
	h, _ := Open(p, 0, 0)

	l, err := h.Insert([]byte("original value"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	newLoc, moved, err := h.Replace(l, []byte("short"))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if moved {
		t.Fatalf("expected in-place replace for a shorter value")
	}
	if newLoc != l {
		t.Fatalf("location changed on in-place replace: %+v vs %+v", newLoc, l)
	}
	got, err := h.Get(l)
	if err != nil || string(got) != "short" {
		t.Fatalf("got %q err %v", got, err)
	}
}

func TestReplaceMovesWhenLarger(t *testing.T) {
	p := openTestPager(t, 4096)
	h, _ := Open(p, 0, 0)

	l, err := h.Insert([]byte("x"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	big := bytes.Repeat([]byte("y"), 500)
	newLoc, moved, err := h.Replace(l, big)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if !moved {
		t.Fatalf("expected move when growing a record")
	}
	got, err := h.Get(newLoc)
	if err != nil || !bytes.Equal(got, big) {
		t.Fatalf("got len=%d err=%v", len(got), err)
	}
	if _, err := h.Get(l); err == nil {
		t.Fatalf("old location should be tombstoned after move")
	}
}

type storedDoc struct {
	location loc.Location
	data     string
}

func TestInsertSpansMultipleHeapPages(t *testing.T) {
	p := openTestPager(t, 512)
	h, err := Open(p, 0, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const n = 50
	var stored []storedDoc
	for i := 0; i < n; i++ {
		doc := fmt.Sprintf("document number %d with some padding text", i)
		l, err := h.Insert([]byte(doc))
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		stored = append(stored, storedDoc{location: l, data: doc})
	}

	for _, sd := range stored {
		got, err := h.Get(sd.location)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != sd.data {
			t.Fatalf("got %q, want %q", got, sd.data)
		}
	}

	if h.root == h.tail {
		t.Fatalf("expected multiple heap pages for %d documents at page size 512", n)
	}
}

func TestReopenWalksChainToTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.gdbx")
	p, err := pager.Open(path, pager.Config{PageSize: 512, BufferPoolSize: 64})
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}

	h, err := Open(p, 0, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 30; i++ {
		if _, err := h.Insert([]byte(fmt.Sprintf("doc-%d-padding-padding", i))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	root := h.Root()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := pager.Open(path, pager.Config{PageSize: 512, BufferPoolSize: 64})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	h2, err := Open(p2, root, 0)
	if err != nil {
		t.Fatalf("Open after reopen: %v", err)
	}
	l, err := h2.Insert([]byte("appended after reopen"))
	if err != nil {
		t.Fatalf("Insert after reopen: %v", err)
	}
	got, err := h2.Get(l)
	if err != nil || string(got) != "appended after reopen" {
		t.Fatalf("got %q err %v", got, err)
	}
}

// TestDeleteOnNonTailPageIsReusedByLaterInsert locks in spec.md §4.5's
// bucketed free-space map: space freed by deleting a record on a
// non-tail page must be found and reused by a later insert, instead of
// always growing the chain.
func TestDeleteOnNonTailPageIsReusedByLaterInsert(t *testing.T) {
	p := openTestPager(t, 512)
	h, err := Open(p, 0, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	pad := func(i int) string {
		return fmt.Sprintf("document number %03d with enough padding to fill a slot", i)
	}

	// 24 fixed-length records fill exactly three 512-byte pages (8 each),
	// leaving the tail with no room for a 25th.
	var stored []storedDoc
	for i := 0; i < 24; i++ {
		l, err := h.Insert([]byte(pad(i)))
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		stored = append(stored, storedDoc{location: l, data: pad(i)})
	}
	if h.root == h.tail {
		t.Fatalf("expected multiple heap pages before the reuse check")
	}

	// Tombstone every record on every non-tail page, freeing them entirely.
	for _, sd := range stored {
		if sd.location.PageID != h.tail {
			if err := h.Delete(sd.location); err != nil {
				t.Fatalf("Delete: %v", err)
			}
		}
	}

	pagesBefore := chainLength(t, p, h.root)

	if _, err := h.Insert([]byte(pad(999))); err != nil {
		t.Fatalf("Insert after delete: %v", err)
	}

	pagesAfter := chainLength(t, p, h.root)
	if pagesAfter != pagesBefore {
		t.Fatalf("chain grew from %d to %d pages despite reusable free space on earlier pages", pagesBefore, pagesAfter)
	}
}

// TestFreeMapRoundTripsThroughStageAndOpen confirms the free-space map
// survives a Stage/reopen cycle the way the heap root itself does.
func TestFreeMapRoundTripsThroughStageAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.gdbx")
	p, err := pager.Open(path, pager.Config{PageSize: 512, BufferPoolSize: 64})
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}

	h, err := Open(p, 0, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 20; i++ {
		if _, err := h.Insert([]byte(fmt.Sprintf("doc-%03d-padding-padding-padding", i))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	firstPage := h.root
	if err := h.Delete(loc.Location{PageID: firstPage, Slot: 0}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	root := h.Root()
	freeMapRoot, err := h.Stage()
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if freeMapRoot == 0 {
		t.Fatalf("expected a non-zero free-map root after staging")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := pager.Open(path, pager.Config{PageSize: 512, BufferPoolSize: 64})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	h2, err := Open(p2, root, freeMapRoot)
	if err != nil {
		t.Fatalf("Open after reopen: %v", err)
	}
	if _, ok := h2.fm.entries[firstPage]; !ok {
		t.Fatalf("expected reopened free-map to know about page %d", firstPage)
	}
}

func chainLength(t *testing.T, p *pager.Pager, root uint32) int {
	t.Helper()
	n := 0
	pageID := root
	for pageID != noNext {
		n++
		ref, err := p.FetchPage(pageID)
		if err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
		body := ref.Data()[pager.BodyOffset():pager.BodyEnd(len(ref.Data()))]
		next := pageNext(body)
		ref.Release()
		pageID = next
	}
	return n
}
