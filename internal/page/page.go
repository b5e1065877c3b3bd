// Package page implements the Page Manager: the component that owns the
// backing file and the authoritative page-allocation state.
//
// What: fixed-size page allocation, recycling through a free list, and raw
// disk I/O for a flat file of PageSize-byte pages.
// How: allocation state is mirrored to a JSON sidecar file after every
// mutating operation, the way the teacher's Pager persists its Superblock
// after every page-count change; unlike the teacher's binary superblock,
// the sidecar here is a plain JSON document per spec.md §6.
// Why: a JSON sidecar keeps the allocator state human-inspectable and trivial
// to version, matching the "Page Manager Metadata" data model in spec.md §3;
// binary superblock encoding is unnecessary complexity for a single-writer
// core with no WAL in this scope.
package page

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/SimonWaldherr/tinyrdb/internal/observ"
)

// ID identifies a page; 1-based, 0 is the invalid/sentinel id.
type ID uint32

// InvalidID is the sentinel used for "no page" (e.g. root of an empty tree,
// parent of the root, next-leaf of the last leaf).
const InvalidID ID = 0

// Size is the fixed page size in bytes, per spec.md §3.
const Size = 4096

// Metadata is the persisted sidecar record described in spec.md §6.
type Metadata struct {
	NextPageID      ID             `json:"next_page_id"`
	FreePages       []ID           `json:"free_pages"`
	AllocatedPages  []ID           `json:"allocated_pages"`
	PageTablespaces map[ID]string  `json:"page_tablespaces,omitempty"`
	PageUsage       map[ID]string  `json:"page_usage,omitempty"`
}

// Manager owns the backing file and the allocation metadata.
type Manager struct {
	mu          sync.Mutex
	file        *os.File
	metaPath    string
	nextPageID  ID
	freePages   []ID // FIFO: index 0 is head
	allocated   map[ID]struct{}
	tablespaces map[ID]string
}

// Open opens (or creates) the backing file at dataPath and loads or
// initialises the metadata sidecar at metaPath.
func Open(dataPath, metaPath string) (*Manager, error) {
	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("page: open data file: %w", err)
	}
	m := &Manager{
		file:        f,
		metaPath:    metaPath,
		nextPageID:  1,
		allocated:   make(map[ID]struct{}),
		tablespaces: make(map[ID]string),
	}
	if err := m.loadMetadata(); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadMetadata() error {
	data, err := os.ReadFile(m.metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return m.persistLocked()
		}
		return fmt.Errorf("page: read metadata: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return fmt.Errorf("page: parse metadata: %w", err)
	}
	if md.NextPageID == 0 {
		md.NextPageID = 1
	}
	m.nextPageID = md.NextPageID
	m.freePages = append([]ID(nil), md.FreePages...)
	m.allocated = make(map[ID]struct{}, len(md.AllocatedPages))
	for _, id := range md.AllocatedPages {
		m.allocated[id] = struct{}{}
	}
	m.tablespaces = md.PageTablespaces
	if m.tablespaces == nil {
		m.tablespaces = make(map[ID]string)
	}
	return nil
}

// persistLocked writes the metadata sidecar. Best-effort per spec.md §4.1:
// an error here is logged, not fatal, since a lost metadata write after a
// crash may leak a page id but never corrupts already-written pages.
func (m *Manager) persistLocked() error {
	allocated := make([]ID, 0, len(m.allocated))
	for id := range m.allocated {
		allocated = append(allocated, id)
	}
	md := Metadata{
		NextPageID:      m.nextPageID,
		FreePages:       m.freePages,
		AllocatedPages:  allocated,
		PageTablespaces: m.tablespaces,
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		observ.Logger.Warn().Err(err).Msg("page: marshal metadata failed")
		return nil
	}
	tmp := m.metaPath + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		observ.Logger.Warn().Err(err).Msg("page: write metadata sidecar failed")
		return nil
	}
	if err := os.Rename(tmp, m.metaPath); err != nil {
		observ.Logger.Warn().Err(err).Msg("page: rename metadata sidecar failed")
		_ = os.Remove(tmp)
	}
	return nil
}

// Allocate returns the head of the free list if non-empty, else the next
// monotonic id. The returned id is marked allocated and metadata persisted.
func (m *Manager) Allocate() (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id ID
	if len(m.freePages) > 0 {
		id = m.freePages[0]
		m.freePages = m.freePages[1:]
	} else {
		id = m.nextPageID
		m.nextPageID++
	}
	m.allocated[id] = struct{}{}
	if err := m.persistLocked(); err != nil {
		return 0, err
	}
	observ.PagesAllocated.Inc()
	return id, nil
}

// Deallocate removes id from the allocated set and appends it to the free
// list. Idempotent (and merely logged) on an id that isn't allocated.
func (m *Manager) Deallocate(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.allocated[id]; !ok {
		observ.Logger.Warn().Uint32("page_id", uint32(id)).Msg("page: deallocate of unallocated page ignored")
		return nil
	}
	delete(m.allocated, id)
	delete(m.tablespaces, id)
	m.freePages = append(m.freePages, id)
	observ.PagesFreed.Inc()
	return m.persistLocked()
}

// IsAllocated reports whether id is currently in the allocated set.
func (m *Manager) IsAllocated(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.allocated[id]
	return ok
}

// SetTablespace tags a page with an opaque tablespace label.
func (m *Manager) SetTablespace(id ID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tablespaces[id] = tag
	return m.persistLocked()
}

// ReadFromDisk reads exactly Size bytes for id. Pages beyond EOF, or never
// allocated, read back as all-zero rather than failing.
func (m *Manager) ReadFromDisk(id ID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, Size)
	offset := int64(id-1) * Size
	n, err := m.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		// Short read / EOF: a never-written page reads as zeros.
		return buf, nil
	}
	// A short read (n < Size) is zero-padded because buf was pre-sized.
	return buf, nil
}

// WriteToDisk writes data to id's page slot, truncating or zero-padding to
// exactly Size bytes, then flushes the file handle.
func (m *Manager) WriteToDisk(id ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, Size)
	copy(buf, data) // zero-pads if data is shorter, truncates if longer
	offset := int64(id-1) * Size
	if _, err := m.file.WriteAt(buf, offset); err != nil {
		return &writeError{id: id, err: err}
	}
	return m.file.Sync()
}

type writeError struct {
	id  ID
	err error
}

func (e *writeError) Error() string { return fmt.Sprintf("page %d: write failed: %v", e.id, e.err) }
func (e *writeError) Unwrap() error { return e.err }

// Close flushes metadata and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.persistLocked()
	return m.file.Close()
}
