// Package bufferpool implements the LRU cache of page-sized byte buffers
// that sits in front of the Page Manager.
//
// What: a bounded-capacity cache keyed by page.ID, tracking a dirty bit and
// hit/miss counters, evicting least-recently-used entries on overflow.
// How: a map plus an intrusive doubly-linked list, the same structure as the
// teacher's PageBufferPool (internal/storage/pager/pager.go) — head is MRU,
// tail is LRU — but widened per spec.md §4.2 so the caller (not the pool)
// decides what to do with an evicted dirty page.
// Why: strict LRU with caller-driven flush-on-eviction keeps the pool
// policy-free and lets the Storage Manager own the write-through contract.
package bufferpool

import (
	"sync"

	"github.com/SimonWaldherr/tinyrdb/internal/observ"
	"github.com/SimonWaldherr/tinyrdb/internal/page"
)

type entry struct {
	id    page.ID
	buf   []byte
	dirty bool
	tick  uint64
	prev  *entry
	next  *entry
}

// Eviction describes the entry that was dropped to make room for a new one.
type Eviction struct {
	ID    page.ID
	Bytes []byte
	Dirty bool
}

// Pool is a bounded-capacity LRU cache of page buffers.
type Pool struct {
	mu       sync.Mutex
	capacity int
	entries  map[page.ID]*entry
	head     *entry // MRU
	tail     *entry // LRU
	tick     uint64
	hits     uint64
	misses   uint64
}

// New creates a Pool with the given capacity (minimum 1).
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		capacity: capacity,
		entries:  make(map[page.ID]*entry, capacity),
	}
}

// Get returns the cached bytes for id and promotes it to MRU, or (nil,
// false) on a miss. Hit/miss counters are updated either way.
func (p *Pool) Get(id page.ID) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		p.misses++
		observ.BufferPoolMisses.Inc()
		return nil, false
	}
	p.hits++
	observ.BufferPoolHits.Inc()
	p.touch(e)
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, true
}

// Put inserts or updates id's cached bytes. If the pool is at capacity and
// id is new, the LRU entry is evicted and returned so the caller can flush
// it if dirty. dirty=false on an already-dirty existing entry does NOT clear
// the flag — only explicit ClearDirty does that.
func (p *Pool) Put(id page.ID, data []byte, dirty bool) *Eviction {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	if e, ok := p.entries[id]; ok {
		e.buf = buf
		if dirty {
			e.dirty = true
		}
		p.touch(e)
		return nil
	}

	var evicted *Eviction
	if len(p.entries) >= p.capacity {
		evicted = p.evictLRULocked()
	}
	e := &entry{id: id, buf: buf, dirty: dirty}
	p.entries[id] = e
	p.pushFront(e)
	p.touch(e)
	return evicted
}

// MarkDirty sets the dirty flag for id. No-op if id isn't cached.
func (p *Pool) MarkDirty(id page.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		e.dirty = true
	} else {
		observ.Logger.Warn().Uint32("page_id", uint32(id)).Msg("bufferpool: mark_dirty on absent page")
	}
}

// ClearDirty clears the dirty flag for id. No-op if id isn't cached.
func (p *Pool) ClearDirty(id page.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		e.dirty = false
	}
}

// FlushAll returns every dirty entry's (id, bytes) and clears their dirty
// flags. It does not write to disk; the Storage Manager does that.
func (p *Pool) FlushAll() map[page.ID][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[page.ID][]byte)
	for id, e := range p.entries {
		if e.dirty {
			buf := make([]byte, len(e.buf))
			copy(buf, e.buf)
			out[id] = buf
			e.dirty = false
		}
	}
	return out
}

// Remove evicts id without flushing and reports whether it was dirty.
func (p *Pool) Remove(id page.ID) (wasDirty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return false
	}
	p.unlink(e)
	delete(p.entries, id)
	return e.dirty
}

// Clear drops every entry without flushing. Used in tests and explicit reset.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[page.ID]*entry, p.capacity)
	p.head = nil
	p.tail = nil
}

// HitRate returns hits / (hits + misses), or 0 when there have been no
// lookups yet.
func (p *Pool) HitRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.hits + p.misses
	if total == 0 {
		return 0
	}
	return float64(p.hits) / float64(total)
}

// Contains reports whether id currently has a cache entry. Test/diagnostic use.
func (p *Pool) Contains(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[id]
	return ok
}

func (p *Pool) evictLRULocked() *Eviction {
	e := p.tail
	if e == nil {
		return nil
	}
	p.unlink(e)
	delete(p.entries, e.id)
	observ.BufferPoolEvictions.Inc()
	return &Eviction{ID: e.id, Bytes: e.buf, Dirty: e.dirty}
}

func (p *Pool) touch(e *entry) {
	p.tick++
	e.tick = p.tick
	p.moveToFront(e)
}

func (p *Pool) pushFront(e *entry) {
	e.prev = nil
	e.next = p.head
	if p.head != nil {
		p.head.prev = e
	}
	p.head = e
	if p.tail == nil {
		p.tail = e
	}
}

func (p *Pool) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		p.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		p.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (p *Pool) moveToFront(e *entry) {
	if p.head == e {
		return
	}
	p.unlink(e)
	p.pushFront(e)
}
