package bufferpool

import (
	"bytes"
	"testing"

	"github.com/SimonWaldherr/tinyrdb/internal/page"
)

func TestGetMiss(t *testing.T) {
	p := New(4)
	if _, ok := p.Get(1); ok {
		t.Fatalf("expected miss on empty pool")
	}
}

func TestPutThenGetHit(t *testing.T) {
	p := New(4)
	data := []byte("hello")
	p.Put(1, data, false)
	got, ok := p.Get(1)
	if !ok {
		t.Fatalf("expected hit")
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("data mismatch: %q", got)
	}
}

func TestLRUEviction_CapacityPlusOneEvictsOldest(t *testing.T) {
	p := New(3)
	for i := page.ID(1); i <= 3; i++ {
		p.Put(i, []byte{byte(i)}, false)
	}
	evicted := p.Put(4, []byte{4}, false)
	if evicted == nil || evicted.ID != 1 {
		t.Fatalf("expected id 1 evicted, got %+v", evicted)
	}
	if p.Contains(1) {
		t.Fatalf("id 1 should no longer be cached")
	}
}

func TestGetPromotesToMRU(t *testing.T) {
	p := New(2)
	p.Put(1, []byte{1}, false)
	p.Put(2, []byte{2}, false)
	p.Get(1) // promote 1 to MRU; 2 becomes LRU
	evicted := p.Put(3, []byte{3}, false)
	if evicted == nil || evicted.ID != 2 {
		t.Fatalf("expected id 2 evicted after promoting 1, got %+v", evicted)
	}
}

func TestDirtyFlushBeforeEviction(t *testing.T) {
	p := New(1)
	p.Put(1, []byte("dirty-data"), true)
	evicted := p.Put(2, []byte("new"), false)
	if evicted == nil || !evicted.Dirty {
		t.Fatalf("expected dirty eviction info, got %+v", evicted)
	}
	if !bytes.Equal(evicted.Bytes, []byte("dirty-data")) {
		t.Fatalf("eviction info carries stale bytes: %q", evicted.Bytes)
	}
}

func TestPutFalseDirtyDoesNotClearExistingDirty(t *testing.T) {
	p := New(4)
	p.Put(1, []byte("v1"), true)
	p.Put(1, []byte("v2"), false)
	flushed := p.FlushAll()
	if _, ok := flushed[1]; !ok {
		t.Fatalf("expected page 1 to still be dirty")
	}
}

func TestFlushAllClearsDirtyFlags(t *testing.T) {
	p := New(4)
	p.Put(1, []byte("a"), true)
	p.Put(2, []byte("b"), false)
	flushed := p.FlushAll()
	if len(flushed) != 1 {
		t.Fatalf("expected exactly one dirty page, got %d", len(flushed))
	}
	if len(p.FlushAll()) != 0 {
		t.Fatalf("expected dirty flags cleared after first flush")
	}
}

func TestRemoveReturnsDirtyFlag(t *testing.T) {
	p := New(4)
	p.Put(1, []byte("a"), true)
	if dirty := p.Remove(1); !dirty {
		t.Fatalf("expected dirty=true")
	}
	if p.Contains(1) {
		t.Fatalf("expected entry removed")
	}
}

func TestHitRate(t *testing.T) {
	p := New(4)
	p.Put(1, []byte("a"), false)
	p.Get(1) // hit
	p.Get(2) // miss
	if rate := p.HitRate(); rate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %f", rate)
	}
}

func TestMarkAndClearDirtyNoopOnAbsent(t *testing.T) {
	p := New(4)
	p.MarkDirty(99)
	p.ClearDirty(99)
}
