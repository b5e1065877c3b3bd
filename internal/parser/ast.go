// Package parser builds an abstract syntax tree from a lexer.Token stream
// via recursive descent.
//
// Grounded on the teacher's Parser (internal/engine/parser.go): the same
// two-token-lookahead (cur/peek) recursive-descent shape, and the same
// tagged-union-via-interface AST style (Statement, Expr), narrowed to the
// grammar spec.md §4.7 specifies and carrying a source Pos on every node.
// For statements, literals, identifiers, function calls, subqueries and
// table references the Pos is that of the node's first token. A Binary or
// In node records the position of its operator token, and a Join records
// the position of its right-hand table reference, not of its first token.
package parser

import "github.com/SimonWaldherr/tinyrdb/internal/catalog"

// Pos is a source position, attached to every AST node for diagnostics.
type Pos struct {
	Line   int
	Column int
}

// Statement is the root interface for every parsed SQL statement.
type Statement interface{ stmtPos() Pos }

// Expr is the root interface for every parsed expression.
type Expr interface{ exprPos() Pos }

// ---- Statements -----------------------------------------------------------

type ColumnDef struct {
	Name       string
	Type       catalog.ColumnType
	TypeLen    int
	Constraint catalog.Constraint
	Default    Expr
}

type CreateTable struct {
	Pos         Pos
	Name        string
	Columns     []ColumnDef
	IfNotExists bool
}

func (s *CreateTable) stmtPos() Pos { return s.Pos }

type DropTable struct {
	Pos      Pos
	Name     string
	IfExists bool
	Cascade  bool
}

func (s *DropTable) stmtPos() Pos { return s.Pos }

type CreateIndex struct {
	Pos     Pos
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (s *CreateIndex) stmtPos() Pos { return s.Pos }

type DropIndex struct {
	Pos      Pos
	Name     string
	IfExists bool
}

func (s *DropIndex) stmtPos() Pos { return s.Pos }

type CreateView struct {
	Pos          Pos
	Name         string
	Select       *Select
	Materialized bool
}

func (s *CreateView) stmtPos() Pos { return s.Pos }

type DropView struct {
	Pos      Pos
	Name     string
	IfExists bool
	Cascade  bool
}

func (s *DropView) stmtPos() Pos { return s.Pos }

type Insert struct {
	Pos     Pos
	Table   string
	Columns []string // empty means "all columns, in declared order"
	Values  []Expr
}

func (s *Insert) stmtPos() Pos { return s.Pos }

type Assignment struct {
	Column string
	Value  Expr
}

type Update struct {
	Pos     Pos
	Table   string
	Set     []Assignment
	Where   Expr
}

func (s *Update) stmtPos() Pos { return s.Pos }

type Delete struct {
	Pos   Pos
	Table string
	Where Expr
}

func (s *Delete) stmtPos() Pos { return s.Pos }

// ---- FROM clause ------------------------------------------------------

type TableRef struct {
	Pos   Pos
	Name  string
	Alias string // "" if none
}

type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinCross
)

type Join struct {
	Pos   Pos
	Kind  JoinKind
	Left  FromClause
	Right FromClause
	On    Expr // nil for CROSS JOIN
}

func (j *Join) fromPos() Pos { return j.Pos }

// FromClause is the root interface of the FROM-clause grammar:
// table_ref (join_type JOIN table_ref ON expr)*.
type FromClause interface{ fromPos() Pos }

func (t *TableRef) fromPos() Pos { return t.Pos }

type Subquery struct {
	Pos    Pos
	Select *Select
	Alias  string
}

func (s *Subquery) fromPos() Pos { return s.Pos }
func (s *Subquery) exprPos() Pos { return s.Pos }

// ---- SELECT -------------------------------------------------------------

type SelectItem struct {
	Star  bool // true for '*'
	Expr  Expr
	Alias string
}

type OrderItem struct {
	Expr Expr
	Desc bool
}

type Select struct {
	Pos     Pos
	Columns []SelectItem
	From    FromClause
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []OrderItem
}

func (s *Select) stmtPos() Pos { return s.Pos }
func (s *Select) exprPos() Pos { return s.Pos }

// ---- Expressions --------------------------------------------------------

type Literal struct {
	Pos Pos
	Val any // int64, string, bool, nil
}

func (e *Literal) exprPos() Pos { return e.Pos }

type Identifier struct {
	Pos       Pos
	Qualifier string // "" if unqualified
	Name      string
}

func (e *Identifier) exprPos() Pos { return e.Pos }

type Binary struct {
	Pos   Pos
	Op    string
	Left  Expr
	Right Expr
}

func (e *Binary) exprPos() Pos { return e.Pos }

type Function struct {
	Pos  Pos
	Name string
	Args []Expr
	Star bool // COUNT(*)
}

func (e *Function) exprPos() Pos { return e.Pos }

type In struct {
	Pos     Pos
	Expr    Expr
	List    []Expr  // nil if Subquery is set
	Subq    *Select // nil if List is set
	Negated bool
}

func (e *In) exprPos() Pos { return e.Pos }
