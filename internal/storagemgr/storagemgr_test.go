package storagemgr

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/SimonWaldherr/tinyrdb/internal/page"
)

func newTestManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"), filepath.Join(dir, "meta.json"), capacity)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { m.Shutdown() })
	return m
}

func TestPageRoundTrip(t *testing.T) {
	m := newTestManager(t, 8)
	id, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	payload := bytes.Repeat([]byte{0x5A}, page.Size)
	if err := m.WritePage(id, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.FlushPage(id); err != nil {
		t.Fatalf("flush: %v", err)
	}
	m.DropCacheForTest(id)
	got, err := m.ReadPage(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch")
	}
}

func TestWritePageThenReadWithoutFlushReturnsWritten(t *testing.T) {
	m := newTestManager(t, 8)
	id, _ := m.AllocatePage()
	payload := []byte("in-cache-only")
	if err := m.WritePage(id, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.ReadPage(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := make([]byte, page.Size)
	copy(want, payload)
	if !bytes.Equal(got, want) {
		t.Fatalf("expected just-written bytes without flush")
	}
}

func TestEvictionFlushesDirtyPageBeforeDrop(t *testing.T) {
	m := newTestManager(t, 1)
	id1, _ := m.AllocatePage()
	id2, _ := m.AllocatePage()

	payload := []byte("dirty")
	if err := m.WritePage(id1, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Writing id2 with capacity 1 evicts id1; eviction must flush it first.
	if err := m.WritePage(id2, []byte("other")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.ReadPage(id1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := make([]byte, page.Size)
	copy(want, payload)
	if !bytes.Equal(got, want) {
		t.Fatalf("expected evicted dirty page to have been flushed to disk")
	}
}

func TestDeallocatePageFlushesThenFrees(t *testing.T) {
	m := newTestManager(t, 8)
	id, _ := m.AllocatePage()
	if err := m.WritePage(id, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.DeallocatePage(id); err != nil {
		t.Fatalf("deallocate: %v", err)
	}
	id2, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id2 != id {
		t.Fatalf("expected reuse of deallocated id %d, got %d", id, id2)
	}
}

func TestShutdownThenOperationsFail(t *testing.T) {
	m := newTestManager(t, 8)
	id, _ := m.AllocatePage()
	if err := m.WritePage(id, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := m.ReadPage(id); err == nil {
		t.Fatalf("expected read after shutdown to fail")
	}
}
