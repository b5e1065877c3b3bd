// Package planner lowers a validated AST into a tree of relational
// operators and applies rule-based rewrites to it.
//
// Grounded on the teacher's plan package (internal/engine/plan.go), which
// also lowers its AST into a small closed set of operator structs walked by
// a visitor instead of reflection; widened here to the operator set and
// cost model spec.md §3/§4.9 specify, and to the three named rewrite
// passes (predicate pushdown, projection pushdown, redundant elimination)
// applied to a fixed point.
package planner

import "github.com/SimonWaldherr/tinyrdb/internal/parser"

// Cost weights from spec.md §4.9. Join costs triple under CROSS JOIN.
const (
	costSeqScan    = 100
	costIndexScan  = 10
	costFilter     = 5
	costProject    = 2
	costJoin       = 200
	costGroupBy    = 150
	costSortBase   = 300
	costSortPerKey = 50
)

// Node is the tagged-union root of the operator tree. Each concrete type
// below is one variant; EstCost reports only this node's own contribution
// (TotalCost sums the whole subtree).
type Node interface {
	EstCost() int
	Children() []Node
}

// TotalCost sums a node's own cost and every descendant's, per spec.md §4.9
// ("total cost is the sum over the subtree").
func TotalCost(n Node) int {
	cost := n.EstCost()
	for _, c := range n.Children() {
		cost += TotalCost(c)
	}
	return cost
}

// SeqScan reads every row of Table. Alias is the display name used by
// ancestor operators when the FROM clause named one (spec.md §4.9
// "Aliases").
type SeqScan struct {
	Table string
	Alias string
}

func (s *SeqScan) EstCost() int    { return costSeqScan }
func (s *SeqScan) Children() []Node { return nil }

// DisplayName returns the alias if set, else the table name.
func (s *SeqScan) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Table
}

// IndexScan reads only the rows matching Predicate via Index, replacing a
// SeqScan+Filter when the Catalog reports a usable index (spec.md §4.9
// rewrite 1).
type IndexScan struct {
	Table     string
	Alias     string
	Index     string
	Predicate parser.Expr
}

func (s *IndexScan) EstCost() int     { return costIndexScan }
func (s *IndexScan) Children() []Node { return nil }

func (s *IndexScan) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Table
}

// Filter discards rows not matching Predicate.
type Filter struct {
	Predicate parser.Expr
	Child     Node
}

func (f *Filter) EstCost() int     { return costFilter }
func (f *Filter) Children() []Node { return []Node{f.Child} }

// Project narrows each row to Columns.
type Project struct {
	Columns []parser.SelectItem
	Child   Node
}

func (p *Project) EstCost() int     { return costProject }
func (p *Project) Children() []Node { return []Node{p.Child} }

// Join combines Left and Right under Predicate (nil for CROSS JOIN).
type Join struct {
	Kind      parser.JoinKind
	Predicate parser.Expr
	Left      Node
	Right     Node
}

func (j *Join) EstCost() int {
	if j.Kind == parser.JoinCross {
		return costJoin * 3
	}
	return costJoin
}
func (j *Join) Children() []Node { return []Node{j.Left, j.Right} }

// Aggregate is one GROUP BY aggregate function applied in a GroupBy node.
type Aggregate struct {
	Name  string
	Arg   parser.Expr // nil for COUNT(*)
	Star  bool
	Alias string
}

// GroupBy partitions rows by Keys and computes Aggregates per partition.
type GroupBy struct {
	Keys       []parser.Expr
	Aggregates []Aggregate
	Child      Node
}

func (g *GroupBy) EstCost() int     { return costGroupBy }
func (g *GroupBy) Children() []Node { return []Node{g.Child} }

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr parser.Expr
	Desc bool
}

// Sort orders rows by Keys.
type Sort struct {
	Keys  []SortKey
	Child Node
}

func (s *Sort) EstCost() int     { return costSortBase + costSortPerKey*len(s.Keys) }
func (s *Sort) Children() []Node { return []Node{s.Child} }

// DDL is a single schema-mutation operator (spec.md §4.9: "CREATE/DROP/...
// a single DDL/DML operator at the root"). Op is one of CREATE_TABLE,
// DROP_TABLE, CREATE_INDEX, DROP_INDEX, CREATE_VIEW, DROP_VIEW.
type DDL struct {
	Op   string
	Name string
}

func (d *DDL) EstCost() int     { return 0 }
func (d *DDL) Children() []Node { return nil }

// Insert writes one row of Values into Table's Columns.
type Insert struct {
	Table   string
	Columns []string
	Values  []parser.Expr
}

func (i *Insert) EstCost() int     { return 1 }
func (i *Insert) Children() []Node { return nil }

// Update applies Set to every row produced by Child (the read plan for the
// WHERE predicate).
type Update struct {
	Table string
	Set   []parser.Assignment
	Child Node
}

func (u *Update) EstCost() int     { return 1 }
func (u *Update) Children() []Node { return []Node{u.Child} }

// Delete removes every row produced by Child.
type Delete struct {
	Table string
	Child Node
}

func (d *Delete) EstCost() int     { return 1 }
func (d *Delete) Children() []Node { return []Node{d.Child} }

// withChildren rebuilds n with newChildren in place of n.Children(), used by
// the generic bottom-up rewrite walker. Leaf nodes return themselves.
func withChildren(n Node, newChildren []Node) Node {
	switch v := n.(type) {
	case *Filter:
		return &Filter{Predicate: v.Predicate, Child: newChildren[0]}
	case *Project:
		return &Project{Columns: v.Columns, Child: newChildren[0]}
	case *Join:
		return &Join{Kind: v.Kind, Predicate: v.Predicate, Left: newChildren[0], Right: newChildren[1]}
	case *GroupBy:
		return &GroupBy{Keys: v.Keys, Aggregates: v.Aggregates, Child: newChildren[0]}
	case *Sort:
		return &Sort{Keys: v.Keys, Child: newChildren[0]}
	case *Update:
		return &Update{Table: v.Table, Set: v.Set, Child: newChildren[0]}
	case *Delete:
		return &Delete{Table: v.Table, Child: newChildren[0]}
	default:
		return n
	}
}
