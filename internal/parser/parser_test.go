package parser

import (
	"testing"

	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

func mustParse(t *testing.T, sql string) Statement {
	t.Helper()
	p, err := New(sql)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	stmt, err := p.ParseStatement()
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	return stmt
}

func TestParseCreateTableWithConstraints(t *testing.T) {
	stmt := mustParse(t, "CREATE TABLE IF NOT EXISTS t (id INT PRIMARY KEY, name VARCHAR(20) NOT NULL, flag INT DEFAULT 0);")
	ct, ok := stmt.(*CreateTable)
	if !ok {
		t.Fatalf("expected *CreateTable, got %T", stmt)
	}
	if !ct.IfNotExists {
		t.Fatalf("expected IfNotExists true")
	}
	if len(ct.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(ct.Columns))
	}
	if ct.Columns[1].TypeLen != 20 {
		t.Fatalf("expected VARCHAR(20), got len=%d", ct.Columns[1].TypeLen)
	}
	if ct.Columns[2].Default == nil {
		t.Fatalf("expected DEFAULT expr on third column")
	}
}

func TestParseDropTableCascade(t *testing.T) {
	stmt := mustParse(t, "DROP TABLE IF EXISTS t CASCADE;")
	dt, ok := stmt.(*DropTable)
	if !ok {
		t.Fatalf("expected *DropTable, got %T", stmt)
	}
	if !dt.IfExists || !dt.Cascade {
		t.Fatalf("expected IfExists and Cascade true, got %+v", dt)
	}
}

func TestParseCreateIndexUnique(t *testing.T) {
	stmt := mustParse(t, "CREATE UNIQUE INDEX idx_t_a ON t (a, b);")
	ci, ok := stmt.(*CreateIndex)
	if !ok {
		t.Fatalf("expected *CreateIndex, got %T", stmt)
	}
	if !ci.Unique || len(ci.Columns) != 2 {
		t.Fatalf("unexpected index: %+v", ci)
	}
}

func TestParseInsertWithColumnList(t *testing.T) {
	stmt := mustParse(t, "INSERT INTO t (id, name) VALUES (1, 'bob');")
	ins, ok := stmt.(*Insert)
	if !ok {
		t.Fatalf("expected *Insert, got %T", stmt)
	}
	if len(ins.Columns) != 2 || len(ins.Values) != 2 {
		t.Fatalf("unexpected insert: %+v", ins)
	}
}

func TestParseSelectWithJoinWhereGroupHavingOrder(t *testing.T) {
	sql := `SELECT a.id, COUNT(*) AS n FROM a JOIN b ON a.id = b.a_id
		WHERE a.x > 5 GROUP BY a.id HAVING COUNT(*) > 1 ORDER BY n DESC;`
	stmt := mustParse(t, sql)
	sel, ok := stmt.(*Select)
	if !ok {
		t.Fatalf("expected *Select, got %T", stmt)
	}
	join, ok := sel.From.(*Join)
	if !ok {
		t.Fatalf("expected *Join FROM clause, got %T", sel.From)
	}
	if join.Kind != JoinInner {
		t.Fatalf("expected inner join")
	}
	if sel.Where == nil || sel.Having == nil {
		t.Fatalf("expected WHERE and HAVING to be populated")
	}
	if len(sel.GroupBy) != 1 || len(sel.OrderBy) != 1 {
		t.Fatalf("expected 1 GROUP BY and 1 ORDER BY item")
	}
	if !sel.OrderBy[0].Desc {
		t.Fatalf("expected DESC order")
	}
}

func TestParseAliasWithoutAS(t *testing.T) {
	stmt := mustParse(t, "SELECT x.id FROM table1 x;")
	sel := stmt.(*Select)
	ref, ok := sel.From.(*TableRef)
	if !ok {
		t.Fatalf("expected *TableRef, got %T", sel.From)
	}
	if ref.Alias != "x" {
		t.Fatalf("expected alias x without AS, got %q", ref.Alias)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	// a = 1 + 2 * 3 should parse as a = (1 + (2 * 3)): top Binary op "=",
	// "+" on its right, "*" under the "+".
	stmt := mustParse(t, "SELECT 1 FROM t WHERE a = 1 + 2 * 3;")
	sel := stmt.(*Select)
	eq, ok := sel.Where.(*Binary)
	if !ok || eq.Op != "=" {
		t.Fatalf("expected top-level '=' binary, got %#v", sel.Where)
	}
	plus, ok := eq.Right.(*Binary)
	if !ok || plus.Op != "+" {
		t.Fatalf("expected '+' on rhs of '=', got %#v", eq.Right)
	}
	mul, ok := plus.Right.(*Binary)
	if !ok || mul.Op != "*" {
		t.Fatalf("expected '*' nested under '+', got %#v", plus.Right)
	}
}

func TestParseOrAndPrecedence(t *testing.T) {
	// a = 1 OR b = 2 AND c = 3  parses as  a=1 OR (b=2 AND c=3)
	stmt := mustParse(t, "SELECT 1 FROM t WHERE a = 1 OR b = 2 AND c = 3;")
	sel := stmt.(*Select)
	or, ok := sel.Where.(*Binary)
	if !ok || or.Op != "OR" {
		t.Fatalf("expected top-level OR, got %#v", sel.Where)
	}
	and, ok := or.Right.(*Binary)
	if !ok || and.Op != "AND" {
		t.Fatalf("expected AND nested under OR, got %#v", or.Right)
	}
}

func TestParseInListAndSubquery(t *testing.T) {
	stmt := mustParse(t, "SELECT 1 FROM t WHERE a IN (1, 2, 3);")
	sel := stmt.(*Select)
	in, ok := sel.Where.(*In)
	if !ok || len(in.List) != 3 {
		t.Fatalf("expected IN list of 3, got %#v", sel.Where)
	}

	stmt2 := mustParse(t, "SELECT 1 FROM t WHERE a NOT IN (SELECT id FROM u);")
	sel2 := stmt2.(*Select)
	in2, ok := sel2.Where.(*In)
	if !ok || in2.Subq == nil || !in2.Negated {
		t.Fatalf("expected negated subquery IN, got %#v", sel2.Where)
	}
}

func TestParseUpdateAndDelete(t *testing.T) {
	stmt := mustParse(t, "UPDATE t SET a = 1, b = a + 1 WHERE id = 5;")
	upd, ok := stmt.(*Update)
	if !ok || len(upd.Set) != 2 || upd.Where == nil {
		t.Fatalf("unexpected update: %#v", stmt)
	}

	stmt2 := mustParse(t, "DELETE FROM t WHERE id = 5;")
	del, ok := stmt2.(*Delete)
	if !ok || del.Where == nil {
		t.Fatalf("unexpected delete: %#v", stmt2)
	}
}

func TestParseTrailingTokensAfterSemicolonIsSyntaxError(t *testing.T) {
	p, err := New("SELECT 1 FROM t; garbage")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, err = p.ParseStatement()
	if err == nil {
		t.Fatalf("expected syntax error for trailing tokens")
	}
	var se *sqlerr.SyntaxError
	if !asSyntaxError(err, &se) {
		t.Fatalf("expected *sqlerr.SyntaxError, got %T", err)
	}
}

// TestSyntaxErrorLocality mirrors scenario S6: the error location must be at
// or after the first offending token, not at the start of the statement.
func TestSyntaxErrorLocality(t *testing.T) {
	p, err := New("SELECT a FROM t WHERE;")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, err = p.ParseStatement()
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	var se *sqlerr.SyntaxError
	if !asSyntaxError(err, &se) {
		t.Fatalf("expected *sqlerr.SyntaxError, got %T", err)
	}
	if se.Line != 1 || se.Column < len("SELECT a FROM t WHERE") {
		t.Fatalf("expected error at or after the WHERE token, got line=%d column=%d", se.Line, se.Column)
	}
}

func TestParseMissingFromIsSyntaxError(t *testing.T) {
	p, err := New("SELECT 1;")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	_, err = p.ParseStatement()
	if err == nil {
		t.Fatalf("expected syntax error for missing FROM")
	}
}

func asSyntaxError(err error, target **sqlerr.SyntaxError) bool {
	if se, ok := err.(*sqlerr.SyntaxError); ok {
		*target = se
		return true
	}
	return false
}
