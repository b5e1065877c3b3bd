// Package catalog implements the Catalog: the persistent, single-writer,
// JSON-backed mapping from table/view/index names to schema metadata.
//
// Grounded on the teacher's CatalogManager (internal/storage/catalog.go),
// which also guards a handful of name->metadata maps behind one RWMutex and
// exposes Register*/Get*-style accessors; widened here with the view and
// index namespaces, CASCADE semantics and find_best_index scoring spec.md
// §4.5 requires, and with synchronous JSON persistence replacing the
// teacher's pure in-memory model (spec.md §6: "a single-writer, JSON-backed"
// store, written on every mutation).
package catalog

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SimonWaldherr/tinyrdb/internal/observ"
	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

// ColumnType is the closed set of column types the parser recognises.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeVarchar
	TypeChar
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeVarchar:
		return "VARCHAR"
	case TypeChar:
		return "CHAR"
	default:
		return "UNKNOWN"
	}
}

// Constraint is a bitmask of column constraints.
type Constraint int

const (
	ConstraintNone Constraint = 0
	ConstraintNotNull Constraint = 1 << (iota - 1)
	ConstraintPrimaryKey
	ConstraintUnique
	ConstraintHasDefault
)

// Column describes one table column.
type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	TypeLen    int        `json:"type_len,omitempty"` // VARCHAR(n)/CHAR(n)
	Constraint Constraint `json:"constraints"`
	Default    any        `json:"default,omitempty"`
}

// Table is a Catalog Entry per spec.md §3.
type Table struct {
	Name         string    `json:"name"`
	Columns      []Column  `json:"columns"`
	CreatedAt    time.Time `json:"created_at"`
	RowCountHint int64     `json:"row_count_hint"`
}

// IndexKind distinguishes structural index types; tinyrdb only implements
// the B+ tree kind but the field keeps the data model open-ended as spec.md
// §3 ("kind") implies.
type IndexKind string

const IndexKindBTree IndexKind = "btree"

// Index is an `indexes` entry per spec.md §3.
type Index struct {
	Name    string    `json:"name"`
	Table   string    `json:"table"`
	Columns []string  `json:"columns"`
	Unique  bool      `json:"unique"`
	Kind    IndexKind `json:"type"`
	Created time.Time `json:"created_at"`
}

// View is a `views` entry per spec.md §3.
type View struct {
	Name             string    `json:"name"`
	Definition       string    `json:"definition"`
	Columns          []string  `json:"columns"`
	Materialized     bool      `json:"is_materialized"`
	Dependencies     []string  `json:"dependencies"`
	WithCheckOption  bool      `json:"with_check_option"`
	Created          time.Time `json:"created_at"`
}

type fileFormat struct {
	Tables  map[string]Table `json:"tables"`
	Indexes map[string]Index `json:"indexes"`
	Views   map[string]View  `json:"views"`
	Meta    struct {
		Version   int       `json:"version"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"metadata"`
}

// Catalog is the authoritative schema store, single-writer, JSON-backed.
type Catalog struct {
	mu      sync.RWMutex
	path    string
	tables  map[string]Table
	indexes map[string]Index
	views   map[string]View
}

// Open loads path, or initialises an empty catalog if it doesn't exist.
func Open(path string) (*Catalog, error) {
	c := &Catalog{
		path:    path,
		tables:  make(map[string]Table),
		indexes: make(map[string]Index),
		views:   make(map[string]View),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, c.persistLocked()
		}
		return nil, err
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, err
	}
	if ff.Tables != nil {
		c.tables = ff.Tables
	}
	if ff.Indexes != nil {
		c.indexes = ff.Indexes
	}
	if ff.Views != nil {
		c.views = ff.Views
	}
	return c, nil
}

func (c *Catalog) persistLocked() error {
	ff := fileFormat{Tables: c.tables, Indexes: c.indexes, Views: c.views}
	ff.Meta.Version = 1
	ff.Meta.CreatedAt = time.Now()
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ---- Tables -----------------------------------------------------------

// CreateTable registers a new table. Returns false (not an error) if the
// name already exists, per spec.md §4.5/§7.
func (c *Catalog) CreateTable(name string, cols []Column) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		observ.Logger.Debug().Str("table", name).Msg("catalog: create_table of existing name")
		return false, nil
	}
	c.tables[name] = Table{Name: name, Columns: cols, CreatedAt: time.Now()}
	return true, c.persistLocked()
}

// DropTable removes a table and cascades to its indexes. ifExists suppresses
// the false-return for a missing table (no-op success). cascadeViews drops
// dependent views too; otherwise a table with dependent views is refused
// unless none exist.
func (c *Catalog) DropTable(name string, ifExists, cascadeViews bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; !exists {
		return ifExists, nil
	}

	dependents := c.viewsDependingOnLocked(name)
	if len(dependents) > 0 && !cascadeViews {
		return false, nil
	}
	for _, v := range dependents {
		delete(c.views, v)
	}
	for idxName, idx := range c.indexes {
		if idx.Table == name {
			delete(c.indexes, idxName)
		}
	}
	delete(c.tables, name)
	return true, c.persistLocked()
}

func (c *Catalog) viewsDependingOnLocked(table string) []string {
	var out []string
	for name, v := range c.views {
		for _, dep := range v.Dependencies {
			if dep == table {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// TableExists reports whether name is a registered table.
func (c *Catalog) TableExists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[name]
	return ok
}

// GetColumns returns the columns of name, or (nil, false) if it doesn't exist.
func (c *Catalog) GetColumns(name string) ([]Column, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, false
	}
	return append([]Column(nil), t.Columns...), true
}

// GetColumnType returns the type of table.column, or an error if either
// doesn't exist.
func (c *Catalog) GetColumnType(table, column string) (ColumnType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[table]
	if !ok {
		return 0, &sqlerr.CatalogError{Name: table, Message: "table does not exist"}
	}
	for _, col := range t.Columns {
		if col.Name == column {
			return col.Type, nil
		}
	}
	return 0, &sqlerr.CatalogError{Name: column, Message: "column does not exist on table " + table}
}

// IncrementRowCount updates a table's row_count_hint by delta (may be
// negative for deletes).
func (c *Catalog) IncrementRowCount(table string, delta int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[table]
	if !ok {
		return &sqlerr.CatalogError{Name: table, Message: "table does not exist"}
	}
	t.RowCountHint += delta
	if t.RowCountHint < 0 {
		t.RowCountHint = 0
	}
	c.tables[table] = t
	return c.persistLocked()
}

// ---- Indexes ------------------------------------------------------------

// CreateIndex registers a new index. Returns false if the name already
// exists, the table doesn't exist, or any column doesn't exist on it.
func (c *Catalog) CreateIndex(name, table string, columns []string, unique bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indexes[name]; exists {
		return false, nil
	}
	t, ok := c.tables[table]
	if !ok {
		return false, nil
	}
	colSet := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		colSet[col.Name] = true
	}
	for _, col := range columns {
		if !colSet[col] {
			return false, nil
		}
	}
	c.indexes[name] = Index{Name: name, Table: table, Columns: columns, Unique: unique, Kind: IndexKindBTree, Created: time.Now()}
	return true, c.persistLocked()
}

// DropIndex removes an index. ifExists suppresses the false-return for a
// missing index.
func (c *Catalog) DropIndex(name string, ifExists bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indexes[name]; !exists {
		return ifExists, nil
	}
	delete(c.indexes, name)
	return true, c.persistLocked()
}

// ListIndexes returns every index defined on table.
func (c *Catalog) ListIndexes(table string) []Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Index
	for _, idx := range c.indexes {
		if idx.Table == table {
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindBestIndex scores candidate indexes on table against predicateColumns
// (an ordered slice: predicateColumns[0] is the most selective/first-tested
// column) by (i) length of prefix match with predicateColumns (weighted
// heavily), (ii) presence of unique, (iii) narrower indexes preferred as a
// tiebreak. Returns (nil, false) if no index has a non-empty prefix match.
func (c *Catalog) FindBestIndex(table string, predicateColumns []string) (*Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Index
	bestScore := -1
	for name, idx := range c.indexes {
		idx := idx
		if idx.Table != table {
			continue
		}
		prefix := prefixMatchLen(idx.Columns, predicateColumns)
		if prefix == 0 {
			continue
		}
		score := prefix * 1000
		if idx.Unique {
			score += 100
		}
		score -= len(idx.Columns) // narrower indexes preferred as tiebreak
		if score > bestScore || (score == bestScore && best != nil && name < best.Name) {
			bestScore = score
			idxCopy := idx
			best = &idxCopy
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func prefixMatchLen(indexCols, predicateCols []string) int {
	n := 0
	for n < len(indexCols) && n < len(predicateCols) && indexCols[n] == predicateCols[n] {
		n++
	}
	return n
}

// ---- Views ----------------------------------------------------------------

// CreateView registers a new view. Returns false if the name already
// exists. Dependency resolution is single-level only (spec.md §9 Open
// Questions): `dependencies` lists only the directly-referenced tables or
// views named in the view's own FROM clause, not their transitive closure.
func (c *Catalog) CreateView(name, definition string, columns, dependencies []string, materialized bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.views[name]; exists {
		return false, nil
	}
	if _, isTable := c.tables[name]; isTable {
		return false, nil
	}
	c.views[name] = View{
		Name: name, Definition: definition, Columns: columns,
		Dependencies: dependencies, Materialized: materialized, Created: time.Now(),
	}
	return true, c.persistLocked()
}

// DropView removes a view. With cascade=true, views that depend on name are
// also dropped; otherwise a view with dependents is refused unless none
// depend on it (RESTRICT, the default per spec.md's "optionally").
func (c *Catalog) DropView(name string, ifExists, cascade bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.views[name]; !exists {
		return ifExists, nil
	}
	dependents := c.viewsDependingOnViewLocked(name)
	if len(dependents) > 0 && !cascade {
		return false, nil
	}
	for _, dep := range dependents {
		delete(c.views, dep)
	}
	delete(c.views, name)
	return true, c.persistLocked()
}

func (c *Catalog) viewsDependingOnViewLocked(view string) []string {
	var out []string
	for name, v := range c.views {
		for _, dep := range v.Dependencies {
			if dep == view {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// ViewExists reports whether name is a registered view.
func (c *Catalog) ViewExists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.views[name]
	return ok
}

// GetView returns a view's definition, or (View{}, false) if absent.
func (c *Catalog) GetView(name string) (View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[name]
	return v, ok
}

// CheckViewDAG reports whether adding a view named name with the given
// dependencies would introduce a cycle in the view dependency graph (spec.md
// §3 invariant: "view dependencies form a DAG"). Only one level of the
// existing graph is walked, consistent with CreateView's single-level
// dependency resolution.
func (c *Catalog) CheckViewDAG(name string, dependencies []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, dep := range dependencies {
		if dep == name {
			return false
		}
		if v, ok := c.views[dep]; ok {
			for _, transitive := range v.Dependencies {
				if transitive == name {
					return false
				}
			}
		}
	}
	return true
}

// NormalizeIdent lower-cases nothing — tinyrdb preserves case but treats
// lookups case-sensitively, matching the teacher's identifier handling.
func NormalizeIdent(s string) string { return strings.TrimSpace(s) }
