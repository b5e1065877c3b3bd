package planner

import (
	"fmt"

	"github.com/SimonWaldherr/tinyrdb/internal/catalog"
	"github.com/SimonWaldherr/tinyrdb/internal/parser"
)

// Generate lowers a semantically-validated statement into an operator tree.
// Per spec.md §4.9 the generator assumes semantic analysis has already
// succeeded; an unrecognised statement type is a programmer error, not a
// user-visible failure, and panics rather than returning an error.
func Generate(cat *catalog.Catalog, stmt parser.Statement) Node {
	switch s := stmt.(type) {
	case *parser.CreateTable:
		return &DDL{Op: "CREATE_TABLE", Name: s.Name}
	case *parser.DropTable:
		return &DDL{Op: "DROP_TABLE", Name: s.Name}
	case *parser.CreateIndex:
		return &DDL{Op: "CREATE_INDEX", Name: s.Name}
	case *parser.DropIndex:
		return &DDL{Op: "DROP_INDEX", Name: s.Name}
	case *parser.CreateView:
		return &DDL{Op: "CREATE_VIEW", Name: s.Name}
	case *parser.DropView:
		return &DDL{Op: "DROP_VIEW", Name: s.Name}
	case *parser.Insert:
		return &Insert{Table: s.Table, Columns: s.Columns, Values: s.Values}
	case *parser.Update:
		return &Update{Table: s.Table, Set: s.Set, Child: buildReadPlan(cat, s.Table, "", s.Where)}
	case *parser.Delete:
		return &Delete{Table: s.Table, Child: buildReadPlan(cat, s.Table, "", s.Where)}
	case *parser.Select:
		return generateSelect(cat, s)
	default:
		panic(fmt.Sprintf("planner: unsupported statement type %T", stmt))
	}
}

// buildReadPlan produces the scan (or index-scan) plan UPDATE/DELETE use to
// locate the rows a WHERE predicate matches. SELECT does not use it; its
// scans come from lowerFrom and the rewrite passes.
func buildReadPlan(cat *catalog.Catalog, table, alias string, where parser.Expr) Node {
	if where == nil {
		return &SeqScan{Table: table, Alias: alias}
	}
	cols := equalityColumns(flattenAnd(where))
	if idx, ok := cat.FindBestIndex(table, cols); ok {
		return &IndexScan{Table: table, Alias: alias, Index: idx.Name, Predicate: where}
	}
	return &Filter{Predicate: where, Child: &SeqScan{Table: table, Alias: alias}}
}

func generateSelect(cat *catalog.Catalog, sel *parser.Select) Node {
	tree := lowerFrom(sel.From)

	if sel.Where != nil {
		tree = &Filter{Predicate: sel.Where, Child: tree}
	}
	if len(sel.GroupBy) > 0 {
		tree = &GroupBy{Keys: sel.GroupBy, Aggregates: extractAggregates(sel.Columns), Child: tree}
	}
	if sel.Having != nil {
		tree = &Filter{Predicate: sel.Having, Child: tree}
	}
	tree = &Project{Columns: sel.Columns, Child: tree}
	if len(sel.OrderBy) > 0 {
		tree = &Sort{Keys: convertOrderBy(sel.OrderBy), Child: tree}
	}

	return rewriteToFixedPoint(cat, tree)
}

func lowerFrom(from parser.FromClause) Node {
	switch f := from.(type) {
	case *parser.TableRef:
		return &SeqScan{Table: f.Name, Alias: f.Alias}
	case *parser.Join:
		return &Join{Kind: f.Kind, Predicate: f.On, Left: lowerFrom(f.Left), Right: lowerFrom(f.Right)}
	case *parser.Subquery:
		// A derived table has no catalog-backed scan; represented as a
		// named pseudo-scan so its alias still participates in predicate
		// qualification elsewhere in the tree.
		return &SeqScan{Table: f.Alias, Alias: f.Alias}
	default:
		panic(fmt.Sprintf("planner: unsupported FROM clause %T", from))
	}
}

func extractAggregates(items []parser.SelectItem) []Aggregate {
	var out []Aggregate
	for _, item := range items {
		fn, ok := item.Expr.(*parser.Function)
		if !ok || !isAggregateName(fn.Name) {
			continue
		}
		agg := Aggregate{Name: fn.Name, Star: fn.Star, Alias: item.Alias}
		if !fn.Star && len(fn.Args) == 1 {
			agg.Arg = fn.Args[0]
		}
		out = append(out, agg)
	}
	return out
}

func isAggregateName(name string) bool {
	switch name {
	case "COUNT", "SUM", "AVG", "MAX", "MIN":
		return true
	default:
		return false
	}
}

func convertOrderBy(items []parser.OrderItem) []SortKey {
	out := make([]SortKey, len(items))
	for i, item := range items {
		out[i] = SortKey{Expr: item.Expr, Desc: item.Desc}
	}
	return out
}

// ---- Rewrites ---------------------------------------------------------
//
// Applied in the order spec.md §4.9 names, each repeated to a fixed point:
// predicate pushdown, projection pushdown, redundant operator elimination.

func rewriteToFixedPoint(cat *catalog.Catalog, tree Node) Node {
	for {
		next, changedPredicate := pushdownPredicates(cat, tree)
		next, changedProjection := pushdownProjections(next)
		next, changedRedundant := eliminateRedundant(next)
		tree = next
		if !changedPredicate && !changedProjection && !changedRedundant {
			return tree
		}
	}
}

// transform walks n bottom-up, rewriting every node with step, and reports
// whether anything changed anywhere in the subtree.
func transform(n Node, step func(Node) (Node, bool)) (Node, bool) {
	kids := n.Children()
	if len(kids) == 0 {
		return step(n)
	}
	newKids := make([]Node, len(kids))
	changedBelow := false
	for i, k := range kids {
		nk, ch := transform(k, step)
		newKids[i] = nk
		changedBelow = changedBelow || ch
	}
	rebuilt := n
	if changedBelow {
		rebuilt = withChildren(n, newKids)
	}
	out, changedHere := step(rebuilt)
	return out, changedBelow || changedHere
}

// pushdownPredicates implements rewrite 1: a Filter over a Join splits its
// conjuncts and pushes each one that references only one side's
// tables/aliases below the join into that side; a Filter directly over a
// SeqScan whose conjuncts match an indexed column prefix replaces the scan
// with an IndexScan carrying the (whole) predicate.
func pushdownPredicates(cat *catalog.Catalog, tree Node) (Node, bool) {
	return transform(tree, func(n Node) (Node, bool) {
		f, ok := n.(*Filter)
		if !ok {
			return n, false
		}
		switch child := f.Child.(type) {
		case *Join:
			conjuncts := flattenAnd(f.Predicate)
			leftNames := scanNames(child.Left)
			rightNames := scanNames(child.Right)
			var remaining []parser.Expr
			changed := false
			newLeft, newRight := child.Left, child.Right
			for _, c := range conjuncts {
				refs := referencedQualifiers(c)
				switch {
				case len(refs) > 0 && subsetOf(refs, leftNames):
					newLeft = &Filter{Predicate: c, Child: newLeft}
					changed = true
				case len(refs) > 0 && subsetOf(refs, rightNames):
					newRight = &Filter{Predicate: c, Child: newRight}
					changed = true
				default:
					remaining = append(remaining, c)
				}
			}
			if !changed {
				return n, false
			}
			newJoin := &Join{Kind: child.Kind, Predicate: child.Predicate, Left: newLeft, Right: newRight}
			if len(remaining) == 0 {
				return newJoin, true
			}
			return &Filter{Predicate: andAll(remaining), Child: newJoin}, true
		case *SeqScan:
			cols := equalityColumns(flattenAnd(f.Predicate))
			if idx, ok := cat.FindBestIndex(child.Table, cols); ok {
				return &IndexScan{Table: child.Table, Alias: child.Alias, Index: idx.Name, Predicate: f.Predicate}, true
			}
			return n, false
		default:
			return n, false
		}
	})
}

// pushdownProjections implements rewrite 2: narrow each leaf scan to only
// the columns referenced anywhere in the statement, skipping scans that are
// already immediately wrapped by a Project (including one this pass itself
// inserted on a previous fixed-point iteration).
func pushdownProjections(tree Node) (Node, bool) {
	if hasStarProjection(tree) {
		return tree, false
	}
	needed := referencedColumnNames(tree)
	if len(needed) == 0 {
		return tree, false
	}
	return insertProjections(tree, needed)
}

// insertProjections wraps each scan not already directly beneath a Project
// with a narrowing Project. A scan immediately under an existing Project is
// left alone — that Project (the select list itself, or one this pass
// already inserted on a prior fixed-point iteration) already narrows it, so
// re-wrapping would just nest an identical Project forever and never reach
// a fixed point.
func insertProjections(n Node, needed []string) (Node, bool) {
	switch v := n.(type) {
	case *SeqScan, *IndexScan:
		return wrapProject(n, needed), true
	case *Project:
		child, changed := skipDirectScan(v.Child, needed)
		if !changed {
			return v, false
		}
		return &Project{Columns: v.Columns, Child: child}, true
	default:
		kids := n.Children()
		if len(kids) == 0 {
			return n, false
		}
		newKids := make([]Node, len(kids))
		changed := false
		for i, k := range kids {
			nk, ch := insertProjections(k, needed)
			newKids[i] = nk
			changed = changed || ch
		}
		if !changed {
			return n, false
		}
		return withChildren(n, newKids), true
	}
}

func skipDirectScan(n Node, needed []string) (Node, bool) {
	switch n.(type) {
	case *SeqScan, *IndexScan:
		return n, false
	default:
		return insertProjections(n, needed)
	}
}

func wrapProject(n Node, needed []string) Node {
	items := make([]parser.SelectItem, len(needed))
	for i, name := range needed {
		items[i] = parser.SelectItem{Expr: &parser.Identifier{Name: name}}
	}
	return &Project{Columns: items, Child: n}
}

func hasStarProjection(n Node) bool {
	p, ok := n.(*Project)
	if !ok {
		for _, c := range n.Children() {
			if hasStarProjection(c) {
				return true
			}
		}
		return false
	}
	for _, item := range p.Columns {
		if item.Star {
			return true
		}
	}
	for _, c := range n.Children() {
		if hasStarProjection(c) {
			return true
		}
	}
	return false
}

func referencedColumnNames(n Node) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var exprs []parser.Expr
	var walk func(Node)
	walk = func(node Node) {
		switch v := node.(type) {
		case *Filter:
			exprs = append(exprs, v.Predicate)
		case *Join:
			if v.Predicate != nil {
				exprs = append(exprs, v.Predicate)
			}
		case *Project:
			for _, item := range v.Columns {
				if !item.Star {
					exprs = append(exprs, item.Expr)
				}
			}
		case *GroupBy:
			exprs = append(exprs, v.Keys...)
			for _, agg := range v.Aggregates {
				if agg.Arg != nil {
					exprs = append(exprs, agg.Arg)
				}
			}
		case *Sort:
			for _, k := range v.Keys {
				exprs = append(exprs, k.Expr)
			}
		}
		for _, c := range node.Children() {
			walk(c)
		}
	}
	walk(n)
	for _, e := range exprs {
		for _, id := range referencedIdentifiers(e) {
			add(id.Name)
		}
	}
	return out
}

// eliminateRedundant implements rewrite 3: drop a Filter with a
// constant-true predicate, collapse a Project that is an identity wrapper
// introduced by repeated pushdown iterations, and drop a bare "SELECT *"
// Project entirely since its child already produces whole rows.
func eliminateRedundant(tree Node) (Node, bool) {
	return transform(tree, func(n Node) (Node, bool) {
		switch v := n.(type) {
		case *Filter:
			if isConstantTrue(v.Predicate) {
				return v.Child, true
			}
			return n, false
		case *Project:
			if isStarProjection(v) {
				return v.Child, true
			}
			if inner, ok := v.Child.(*Project); ok && sameColumnNames(v.Columns, inner.Columns) {
				return inner, true
			}
			return n, false
		default:
			return n, false
		}
	})
}

func isStarProjection(p *Project) bool {
	return len(p.Columns) == 1 && p.Columns[0].Star
}

func isConstantTrue(expr parser.Expr) bool {
	lit, ok := expr.(*parser.Literal)
	if !ok {
		return false
	}
	b, ok := lit.Val.(bool)
	return ok && b
}

func sameColumnNames(a, b []parser.SelectItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Star != b[i].Star {
			return false
		}
		if a[i].Star {
			continue
		}
		ai, aok := a[i].Expr.(*parser.Identifier)
		bi, bok := b[i].Expr.(*parser.Identifier)
		if !aok || !bok || ai.Name != bi.Name {
			return false
		}
	}
	return true
}

// ---- Expression helpers -------------------------------------------------

func flattenAnd(expr parser.Expr) []parser.Expr {
	if b, ok := expr.(*parser.Binary); ok && b.Op == "AND" {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []parser.Expr{expr}
}

func andAll(exprs []parser.Expr) parser.Expr {
	result := exprs[0]
	for _, e := range exprs[1:] {
		result = &parser.Binary{Op: "AND", Left: result, Right: e}
	}
	return result
}

// equalityColumns returns, in encounter order, the column names appearing
// on either side of a top-level equality conjunct — the predicate-column
// prefix the Catalog's find_best_index scoring expects.
func equalityColumns(conjuncts []parser.Expr) []string {
	var cols []string
	for _, e := range conjuncts {
		b, ok := e.(*parser.Binary)
		if !ok || b.Op != "=" {
			continue
		}
		if id, ok := b.Left.(*parser.Identifier); ok {
			cols = append(cols, id.Name)
			continue
		}
		if id, ok := b.Right.(*parser.Identifier); ok {
			cols = append(cols, id.Name)
		}
	}
	return cols
}

func referencedIdentifiers(expr parser.Expr) []*parser.Identifier {
	var out []*parser.Identifier
	var walk func(parser.Expr)
	walk = func(e parser.Expr) {
		switch v := e.(type) {
		case *parser.Identifier:
			out = append(out, v)
		case *parser.Binary:
			walk(v.Left)
			walk(v.Right)
		case *parser.Function:
			for _, a := range v.Args {
				walk(a)
			}
		case *parser.In:
			walk(v.Expr)
			for _, item := range v.List {
				walk(item)
			}
		}
	}
	walk(expr)
	return out
}

// referencedQualifiers returns the distinct table/alias qualifiers expr's
// identifiers carry (unqualified identifiers are omitted: they can't be
// safely attributed to one join side).
func referencedQualifiers(expr parser.Expr) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range referencedIdentifiers(expr) {
		if id.Qualifier == "" || seen[id.Qualifier] {
			continue
		}
		seen[id.Qualifier] = true
		out = append(out, id.Qualifier)
	}
	return out
}

// scanNames collects every scan's display name reachable under n.
func scanNames(n Node) []string {
	var out []string
	switch v := n.(type) {
	case *SeqScan:
		out = append(out, v.DisplayName())
	case *IndexScan:
		out = append(out, v.DisplayName())
	}
	for _, c := range n.Children() {
		out = append(out, scanNames(c)...)
	}
	return out
}

func subsetOf(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if !set[v] {
			return false
		}
	}
	return true
}
