package compiler

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/SimonWaldherr/tinyrdb/internal/catalog"
	"github.com/SimonWaldherr/tinyrdb/internal/planner"
	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.json"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	return c
}

func TestCompileCreateTableThenSelect(t *testing.T) {
	cat := newTestCatalog(t)
	if _, err := Compile(cat, "CREATE TABLE t (id INT, name VARCHAR(10));"); err != nil {
		t.Fatalf("unexpected error compiling CREATE TABLE: %v", err)
	}
	plan, err := Compile(cat, "SELECT * FROM t;")
	if err != nil {
		t.Fatalf("unexpected error compiling SELECT: %v", err)
	}
	if _, ok := plan.(*planner.SeqScan); !ok {
		t.Fatalf("expected *planner.SeqScan, got %#v", plan)
	}
}

func TestCompileLexicalErrorWrapped(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := Compile(cat, "SELECT 'unterminated FROM t;")
	if err == nil {
		t.Fatalf("expected an error")
	}
	ce, ok := err.(*sqlerr.CompilerError)
	if !ok {
		t.Fatalf("expected *sqlerr.CompilerError, got %T", err)
	}
	if _, ok := ce.Cause.(*sqlerr.LexicalError); !ok {
		t.Fatalf("expected wrapped *sqlerr.LexicalError, got %T", ce.Cause)
	}
}

func TestCompileSyntaxErrorWrapped(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := Compile(cat, "SELECT a FROM t WHERE;")
	ce, ok := err.(*sqlerr.CompilerError)
	if !ok {
		t.Fatalf("expected *sqlerr.CompilerError, got %T", err)
	}
	if _, ok := ce.Cause.(*sqlerr.SyntaxError); !ok {
		t.Fatalf("expected wrapped *sqlerr.SyntaxError, got %T", ce.Cause)
	}
}

func TestCompileSemanticErrorWrapped(t *testing.T) {
	cat := newTestCatalog(t)
	cat.CreateTable("t", []catalog.Column{{Name: "id", Type: catalog.TypeInt}})
	_, err := Compile(cat, "SELECT missing FROM t;")
	ce, ok := err.(*sqlerr.CompilerError)
	if !ok {
		t.Fatalf("expected *sqlerr.CompilerError, got %T", err)
	}
	if _, ok := ce.Cause.(*sqlerr.SemanticError); !ok {
		t.Fatalf("expected wrapped *sqlerr.SemanticError, got %T", ce.Cause)
	}
}

func TestCompileSilentSwallowsErrors(t *testing.T) {
	cat := newTestCatalog(t)
	if plan := CompileSilent(cat, "SELECT a FROM t WHERE;"); plan != nil {
		t.Fatalf("expected nil plan for an invalid statement, got %#v", plan)
	}
	cat.CreateTable("t", []catalog.Column{{Name: "id", Type: catalog.TypeInt}})
	if plan := CompileSilent(cat, "SELECT id FROM t;"); plan == nil {
		t.Fatalf("expected a plan for a valid statement")
	}
}

func TestCompileMultipleAccumulatesCatalogMutations(t *testing.T) {
	cat := newTestCatalog(t)
	results := CompileMultiple(cat, []string{
		"CREATE TABLE t (id INT);",
		"SELECT id FROM t;",
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error compiling CREATE TABLE: %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Fatalf("expected the second statement to see the first's CREATE TABLE, got %v", results[1].Err)
	}
}

func TestCompileMultipleDoesNotAbortOnEarlierFailure(t *testing.T) {
	cat := newTestCatalog(t)
	cat.CreateTable("t", []catalog.Column{{Name: "id", Type: catalog.TypeInt}})
	results := CompileMultiple(cat, []string{
		"SELECT missing FROM t;",
		"SELECT id FROM t;",
	})
	if results[0].Err == nil {
		t.Fatalf("expected the first statement to fail")
	}
	if results[1].Err != nil {
		t.Fatalf("expected the second statement to still compile, got %v", results[1].Err)
	}
}

// TestCompilerDeterminism is Testable Property 8: compiling s1 then s2
// against a catalog produces the same plan for s2 as compiling s2 alone
// against a fresh catalog, as long as s1 does not mutate the catalog.
func TestCompilerDeterminism(t *testing.T) {
	s1 := "SELECT id FROM t;"
	s2 := "SELECT id FROM t WHERE id = 1;"

	catA := newTestCatalog(t)
	catA.CreateTable("t", []catalog.Column{{Name: "id", Type: catalog.TypeInt}})
	if _, err := Compile(catA, s1); err != nil {
		t.Fatalf("unexpected error compiling s1: %v", err)
	}
	planAfterS1, err := Compile(catA, s2)
	if err != nil {
		t.Fatalf("unexpected error compiling s2 after s1: %v", err)
	}

	catB := newTestCatalog(t)
	catB.CreateTable("t", []catalog.Column{{Name: "id", Type: catalog.TypeInt}})
	planAlone, err := Compile(catB, s2)
	if err != nil {
		t.Fatalf("unexpected error compiling s2 alone: %v", err)
	}

	if !reflect.DeepEqual(planAfterS1, planAlone) {
		t.Fatalf("expected identical plans, got %#v vs %#v", planAfterS1, planAlone)
	}
}
