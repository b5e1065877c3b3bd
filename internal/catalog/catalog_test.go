package catalog

import (
	"path/filepath"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestCreateTableThenExists(t *testing.T) {
	c := newTestCatalog(t)
	ok, err := c.CreateTable("t", []Column{{Name: "id", Type: TypeInt}})
	if err != nil || !ok {
		t.Fatalf("create table: ok=%v err=%v", ok, err)
	}
	if !c.TableExists("t") {
		t.Fatalf("expected table to exist")
	}
}

func TestCreateTableDuplicateReturnsFalse(t *testing.T) {
	c := newTestCatalog(t)
	c.CreateTable("t", nil)
	ok, err := c.CreateTable("t", nil)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if ok {
		t.Fatalf("duplicate create should return false")
	}
}

func TestDropTableCascadesIndexes(t *testing.T) {
	c := newTestCatalog(t)
	c.CreateTable("t", []Column{{Name: "id", Type: TypeInt}})
	c.CreateIndex("idx_t_id", "t", []string{"id"}, false)
	ok, err := c.DropTable("t", false, false)
	if err != nil || !ok {
		t.Fatalf("drop table: ok=%v err=%v", ok, err)
	}
	if len(c.ListIndexes("t")) != 0 {
		t.Fatalf("expected indexes to cascade-drop")
	}
}

func TestDropMissingTableWithoutIfExistsReturnsFalse(t *testing.T) {
	c := newTestCatalog(t)
	ok, err := c.DropTable("nope", false, false)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if ok {
		t.Fatalf("expected false for missing table without IF EXISTS")
	}
}

func TestDropMissingTableWithIfExistsReturnsTrue(t *testing.T) {
	c := newTestCatalog(t)
	ok, err := c.DropTable("nope", true, false)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if !ok {
		t.Fatalf("expected true (no-op success) for IF EXISTS")
	}
}

func TestCreateIndexRejectsUnknownColumn(t *testing.T) {
	c := newTestCatalog(t)
	c.CreateTable("t", []Column{{Name: "id", Type: TypeInt}})
	ok, err := c.CreateIndex("idx", "t", []string{"missing"}, false)
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	if ok {
		t.Fatalf("expected false for unknown column")
	}
}

func TestFindBestIndexPrefersLongerPrefix(t *testing.T) {
	c := newTestCatalog(t)
	c.CreateTable("t", []Column{{Name: "a", Type: TypeInt}, {Name: "b", Type: TypeInt}})
	c.CreateIndex("idx_a", "t", []string{"a"}, false)
	c.CreateIndex("idx_ab", "t", []string{"a", "b"}, false)
	best, ok := c.FindBestIndex("t", []string{"a", "b"})
	if !ok {
		t.Fatalf("expected a match")
	}
	if best.Name != "idx_ab" {
		t.Fatalf("expected idx_ab to win on longer prefix, got %s", best.Name)
	}
}

func TestFindBestIndexNoMatchReturnsFalse(t *testing.T) {
	c := newTestCatalog(t)
	c.CreateTable("t", []Column{{Name: "a", Type: TypeInt}})
	c.CreateIndex("idx_a", "t", []string{"a"}, false)
	_, ok := c.FindBestIndex("t", []string{"z"})
	if ok {
		t.Fatalf("expected no match for unrelated predicate column")
	}
}

func TestCreateViewAndDropRestrict(t *testing.T) {
	c := newTestCatalog(t)
	c.CreateTable("t", []Column{{Name: "id", Type: TypeInt}})
	ok, err := c.CreateView("v1", "SELECT * FROM t", []string{"id"}, []string{"t"}, false)
	if err != nil || !ok {
		t.Fatalf("create view: ok=%v err=%v", ok, err)
	}
	ok, err = c.CreateView("v2", "SELECT * FROM v1", []string{"id"}, []string{"v1"}, false)
	if err != nil || !ok {
		t.Fatalf("create dependent view: ok=%v err=%v", ok, err)
	}
	ok, err = c.DropView("v1", false, false)
	if err != nil {
		t.Fatalf("drop view: %v", err)
	}
	if ok {
		t.Fatalf("expected drop without CASCADE to be refused while v2 depends on v1")
	}
	ok, err = c.DropView("v1", false, true)
	if err != nil || !ok {
		t.Fatalf("cascade drop: ok=%v err=%v", ok, err)
	}
	if c.ViewExists("v2") {
		t.Fatalf("expected v2 to cascade-drop with v1")
	}
}

func TestCheckViewDAGRejectsSelfReference(t *testing.T) {
	c := newTestCatalog(t)
	if c.CheckViewDAG("v1", []string{"v1"}) {
		t.Fatalf("expected self-reference to be rejected")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	c1, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c1.CreateTable("t", []Column{{Name: "id", Type: TypeInt}})

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !c2.TableExists("t") {
		t.Fatalf("expected table to survive reopen")
	}
}
