package page

import (
	"bytes"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "data.db"), filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAllocate_MonotonicWhenFreeListEmpty(t *testing.T) {
	m := newTestManager(t)
	id1, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	id2, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected ids 1,2; got %d,%d", id1, id2)
	}
}

func TestAllocateReuse_FreeListPreferredOverCounter(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := m.Deallocate(id); err != nil {
		t.Fatalf("deallocate: %v", err)
	}
	id2, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id2 != id {
		t.Fatalf("expected reuse of id %d, got %d", id, id2)
	}
}

func TestDeallocate_UnallocatedIsNoopNotError(t *testing.T) {
	m := newTestManager(t)
	if err := m.Deallocate(42); err != nil {
		t.Fatalf("deallocate of unallocated page should not error: %v", err)
	}
}

func TestReadFromDisk_NeverAllocatedReadsZero(t *testing.T) {
	m := newTestManager(t)
	buf, err := m.ReadFromDisk(7)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(buf) != Size {
		t.Fatalf("expected %d bytes, got %d", Size, len(buf))
	}
	if !bytes.Equal(buf, make([]byte, Size)) {
		t.Fatalf("expected zero page")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	payload := bytes.Repeat([]byte{0xAB}, 100)
	if err := m.WriteToDisk(id, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.ReadFromDisk(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := make([]byte, Size)
	copy(want, payload)
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch")
	}
}

func TestMetadataPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.db")
	metaPath := filepath.Join(dir, "meta.json")

	m1, err := Open(dataPath, metaPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, err := m1.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := m1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	m2, err := Open(dataPath, metaPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()
	if !m2.IsAllocated(id) {
		t.Fatalf("expected id %d to remain allocated after reopen", id)
	}
	id2, err := m2.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id2 == id {
		t.Fatalf("expected a fresh id, got reused %d", id)
	}
}
