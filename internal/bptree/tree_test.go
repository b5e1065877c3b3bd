package bptree

import (
	"path/filepath"
	"testing"

	"github.com/SimonWaldherr/tinyrdb/internal/page"
	"github.com/SimonWaldherr/tinyrdb/internal/storagemgr"
)

func newTestTree(t *testing.T) (*Tree, *storagemgr.Manager) {
	t.Helper()
	dir := t.TempDir()
	sm, err := storagemgr.Open(filepath.Join(dir, "d.db"), filepath.Join(dir, "m.json"), 64)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { sm.Shutdown() })
	tr, err := Create(sm)
	if err != nil {
		t.Fatalf("create tree: %v", err)
	}
	return tr, sm
}

func TestSearchCompleteness(t *testing.T) {
	tr, _ := newTestTree(t)
	for i := int32(0); i < 500; i++ {
		ok, err := tr.Insert(i, Value{PageID: 1, SlotID: uint16(i)})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("insert %d unexpectedly rejected", i)
		}
	}
	for i := int32(0); i < 500; i++ {
		v, found, err := tr.Search(i)
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if !found {
			t.Fatalf("key %d should be found", i)
		}
		if v.SlotID != uint16(i) {
			t.Fatalf("key %d: expected slot %d, got %d", i, i, v.SlotID)
		}
	}
	if _, found, _ := tr.Search(999999); found {
		t.Fatalf("never-inserted key should not be found")
	}
}

func TestInsertRejectsDuplicateKey(t *testing.T) {
	tr, _ := newTestTree(t)
	ok, err := tr.Insert(5, Value{PageID: 1, SlotID: 1})
	if err != nil || !ok {
		t.Fatalf("first insert should succeed: ok=%v err=%v", ok, err)
	}
	ok, err = tr.Insert(5, Value{PageID: 2, SlotID: 2})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ok {
		t.Fatalf("duplicate key insert should be rejected")
	}
	v, _, _ := tr.Search(5)
	if v.PageID != 1 {
		t.Fatalf("duplicate insert must not update existing value")
	}
}

func TestOrderedScanAfterManyInserts(t *testing.T) {
	tr, _ := newTestTree(t)
	keys := []int32{50, 10, 90, 30, 70, 20, 80, 40, 60, 5, 15, 25, 35, 45}
	for _, k := range keys {
		if _, err := insertMust(tr, k); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	kvs, err := tr.RangeSearch(-1<<30, 1<<30)
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	for i := 1; i < len(kvs); i++ {
		if kvs[i-1].Key >= kvs[i].Key {
			t.Fatalf("not strictly ascending at %d: %d >= %d", i, kvs[i-1].Key, kvs[i].Key)
		}
	}
	if len(kvs) != len(keys) {
		t.Fatalf("expected %d entries, got %d", len(keys), len(kvs))
	}
}

func insertMust(tr *Tree, k int32) (bool, error) {
	return tr.Insert(k, Value{PageID: page.ID(k), SlotID: uint16(k)})
}

func TestRangeSearchCorrectness(t *testing.T) {
	tr, _ := newTestTree(t)
	for i := int32(0); i < 100; i++ {
		if _, err := insertMust(tr, i); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	kvs, err := tr.RangeSearch(30, 45)
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	if len(kvs) != 16 {
		t.Fatalf("expected 16 entries in [30,45], got %d", len(kvs))
	}
	for i, kv := range kvs {
		want := int32(30 + i)
		if kv.Key != want {
			t.Fatalf("index %d: expected key %d, got %d", i, want, kv.Key)
		}
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	tr, _ := newTestTree(t)
	insertMust(tr, 1)
	insertMust(tr, 2)
	ok, err := tr.Delete(1)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, found, _ := tr.Search(1); found {
		t.Fatalf("deleted key should not be found")
	}
	if _, found, _ := tr.Search(2); !found {
		t.Fatalf("other key should remain")
	}
}

func TestDeleteMissingKeyReturnsFalse(t *testing.T) {
	tr, _ := newTestTree(t)
	ok, err := tr.Delete(123)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Fatalf("deleting a missing key should return false")
	}
}

func TestSplitPropagatesAndCreatesNewRoot(t *testing.T) {
	tr, _ := newTestTree(t)
	originalRoot := tr.Root()
	for i := int32(0); i < int32(Order*3); i++ {
		if _, err := insertMust(tr, i); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if tr.Root() == originalRoot {
		t.Fatalf("expected root to change after enough splits to overflow the original root")
	}
	// Every key must still be reachable through the new multi-level tree.
	for i := int32(0); i < int32(Order*3); i++ {
		if _, found, err := tr.Search(i); err != nil || !found {
			t.Fatalf("key %d not found after splits: found=%v err=%v", i, found, err)
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dataPath := dir + "/d.db"
	metaPath := dir + "/m.json"
	sm1, err := storagemgr.Open(dataPath, metaPath, 64)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tr1, err := Create(sm1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := int32(1); i <= 100; i++ {
		if _, err := tr1.Insert(i, Value{PageID: page.ID(i), SlotID: uint16(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	rootID := tr1.Root()
	if err := sm1.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	sm2, err := storagemgr.Open(dataPath, metaPath, 64)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer sm2.Shutdown()
	tr2 := Open(sm2, rootID)
	v, found, err := tr2.Search(57)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !found || v.SlotID != 57 {
		t.Fatalf("expected key 57 to persist, got found=%v v=%+v", found, v)
	}
}
