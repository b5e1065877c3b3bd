// Package storagemgr implements the Storage Manager: the single public
// interface to pages, composing the Page Manager and Buffer Pool and
// guaranteeing write-through-on-eviction.
//
// Grounded on the teacher's Pager (internal/storage/pager/pager.go), which
// plays the same composing role over its own buffer pool and free-list, but
// simplified to the cache+disk fallthrough contract spec.md §4.3 describes
// (no WAL, no transactions — out of scope per spec.md §1/§5).
package storagemgr

import (
	"fmt"
	"sync"

	"github.com/SimonWaldherr/tinyrdb/internal/bufferpool"
	"github.com/SimonWaldherr/tinyrdb/internal/observ"
	"github.com/SimonWaldherr/tinyrdb/internal/page"
	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

// Manager is the single public interface to pages.
type Manager struct {
	mu       sync.Mutex
	pages    *page.Manager
	pool     *bufferpool.Pool
	shutdown bool
}

// Open constructs a Manager over the given backing files with the given
// buffer pool capacity.
func Open(dataPath, metaPath string, capacity int) (*Manager, error) {
	pm, err := page.Open(dataPath, metaPath)
	if err != nil {
		return nil, fmt.Errorf("storagemgr: %w", err)
	}
	return &Manager{
		pages: pm,
		pool:  bufferpool.New(capacity),
	}, nil
}

func (m *Manager) checkOpen() error {
	if m.shutdown {
		return &sqlerr.StorageError{Message: "storage manager is shut down"}
	}
	return nil
}

// ReadPage returns id's bytes, checking the cache before falling through to
// disk. A disk fallthrough populates the cache clean.
func (m *Manager) ReadPage(id page.ID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	if buf, ok := m.pool.Get(id); ok {
		return buf, nil
	}
	buf, err := m.pages.ReadFromDisk(id)
	if err != nil {
		return nil, &sqlerr.StorageError{PageID: uint64(id), Message: "read from disk failed", Err: err}
	}
	if evicted := m.pool.Put(id, buf, false); evicted != nil && evicted.Dirty {
		if err := m.pages.WriteToDisk(evicted.ID, evicted.Bytes); err != nil {
			observ.Logger.Warn().Err(err).Uint32("page_id", uint32(evicted.ID)).
				Msg("storagemgr: flush of evicted dirty page failed")
		}
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// WritePage caches data, zero-padded or truncated to page.Size, for id with
// the dirty flag set. Disk is untouched.
func (m *Manager) WritePage(id page.ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	buf := make([]byte, page.Size)
	copy(buf, data)
	if evicted := m.pool.Put(id, buf, true); evicted != nil && evicted.Dirty {
		if err := m.pages.WriteToDisk(evicted.ID, evicted.Bytes); err != nil {
			return &sqlerr.StorageError{PageID: uint64(evicted.ID), Message: "flush of evicted dirty page failed", Err: err}
		}
	}
	return nil
}

// AllocatePage delegates to the Page Manager.
func (m *Manager) AllocatePage() (page.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	return m.pages.Allocate()
}

// DeallocatePage flushes any cached dirty copy to disk first, removes it
// from the cache, then delegates to the Page Manager.
func (m *Manager) DeallocatePage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if buf, ok := m.pool.Get(id); ok {
		dirty := m.pool.Remove(id)
		if dirty {
			if err := m.pages.WriteToDisk(id, buf); err != nil {
				return &sqlerr.StorageError{PageID: uint64(id), Message: "flush before deallocate failed", Err: err}
			}
		}
	}
	return m.pages.Deallocate(id)
}

// FlushPage writes id's cached bytes to disk if dirty, and clears the flag.
func (m *Manager) FlushPage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	buf, ok := m.pool.Get(id)
	if !ok {
		return nil
	}
	// Remove reports the dirty flag; the page is re-cached clean either way.
	dirty := m.pool.Remove(id)
	m.pool.Put(id, buf, false)
	if !dirty {
		return nil
	}
	if err := m.pages.WriteToDisk(id, buf); err != nil {
		return &sqlerr.StorageError{PageID: uint64(id), Message: "flush failed", Err: err}
	}
	return nil
}

// FlushAllPages writes every dirty cache entry to disk.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	dirty := m.pool.FlushAll()
	for id, buf := range dirty {
		if err := m.pages.WriteToDisk(id, buf); err != nil {
			return &sqlerr.StorageError{PageID: uint64(id), Message: "flush_all_pages failed", Err: err}
		}
	}
	return nil
}

// Shutdown flushes all pages, then marks the manager closed; further
// operations fail.
func (m *Manager) Shutdown() error {
	if err := m.FlushAllPages(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	return m.pages.Close()
}

// HitRate exposes the buffer pool's hit rate for diagnostics/metrics.
func (m *Manager) HitRate() float64 {
	return m.pool.HitRate()
}

// DropCacheForTest removes id from the buffer pool without flushing. Used
// only by tests to exercise the disk-fallthrough path (Testable Property 1).
func (m *Manager) DropCacheForTest(id page.ID) {
	m.pool.Remove(id)
}
