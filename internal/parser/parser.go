package parser

import (
	"fmt"
	"strings"

	"github.com/SimonWaldherr/tinyrdb/internal/catalog"
	"github.com/SimonWaldherr/tinyrdb/internal/lexer"
	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

var aggregateNames = map[string]bool{"COUNT": true, "SUM": true, "AVG": true, "MAX": true, "MIN": true}

// Parser holds the token stream and current/peek tokens for recursive
// descent, mirroring the teacher's Parser (cur/peek, p.next()).
type Parser struct {
	toks []lexer.Token
	pos  int
}

// New tokenises sql and returns a Parser positioned at the first token.
func New(sql string) (*Parser, error) {
	toks, err := lexer.Tokenize(sql)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) pos_() Pos { t := p.cur(); return Pos{Line: t.Line, Column: t.Column} }

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == lexer.Keyword && t.Lexeme == kw
}
func (p *Parser) isSymbol(sym string) bool {
	t := p.cur()
	return t.Kind == lexer.Symbol && t.Lexeme == sym
}

func (p *Parser) expectKeyword(kw string) error {
	if p.isKeyword(kw) {
		p.advance()
		return nil
	}
	return p.syntaxErr("expected keyword "+kw, kw)
}
func (p *Parser) expectSymbol(sym string) error {
	if p.isSymbol(sym) {
		p.advance()
		return nil
	}
	return p.syntaxErr("expected '"+sym+"'", sym)
}

func (p *Parser) syntaxErr(msg, expected string) error {
	t := p.cur()
	return &sqlerr.SyntaxError{Line: t.Line, Column: t.Column, Message: msg + fmt.Sprintf(" (got %q)", t.Lexeme), Expected: expected}
}

// parseIdent accepts a lexer.Ident token and returns its lexeme; reserved
// keywords are rejected with a syntax error.
func (p *Parser) parseIdent() (string, error) {
	t := p.cur()
	if t.Kind == lexer.Ident {
		p.advance()
		return t.Lexeme, nil
	}
	return "", p.syntaxErr("expected identifier", "identifier")
}

// ---- Top level ------------------------------------------------------------

// ParseStatement parses exactly one statement terminated by ';', rejecting
// any trailing tokens (spec.md §4.7: "trailing tokens after the mandatory
// semicolon are a syntax error").
func (p *Parser) ParseStatement() (Statement, error) {
	stmt, err := p.parseOneStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.EOF {
		return nil, p.syntaxErr("unexpected tokens after statement", "EOF")
	}
	return stmt, nil
}

func (p *Parser) parseOneStatement() (Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("DROP"):
		return p.parseDrop()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	default:
		return nil, p.syntaxErr("expected a statement", "statement")
	}
}

// ---- CREATE / DROP ----------------------------------------------------

func (p *Parser) parseCreate() (Statement, error) {
	pos := p.pos_()
	p.advance() // CREATE
	switch {
	case p.isKeyword("TABLE"):
		return p.parseCreateTable(pos)
	case p.isKeyword("INDEX"):
		return p.parseCreateIndex(pos, false)
	case p.isKeyword("UNIQUE"):
		p.advance()
		if err := p.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndexBody(pos, true)
	case p.isKeyword("VIEW"):
		return p.parseCreateView(pos, false)
	case p.isKeyword("MATERIALIZED"):
		p.advance()
		if err := p.expectKeyword("VIEW"); err != nil {
			return nil, err
		}
		return p.parseCreateView(pos, true)
	default:
		return nil, p.syntaxErr("expected TABLE, INDEX or VIEW", "TABLE|INDEX|VIEW")
	}
}

func (p *Parser) parseIfNotExists() bool {
	if p.isKeyword("IF") {
		p.advance()
		p.expectKeyword("NOT")
		p.expectKeyword("EXISTS")
		return true
	}
	return false
}

func (p *Parser) parseIfExists() bool {
	if p.isKeyword("IF") {
		p.advance()
		p.expectKeyword("EXISTS")
		return true
	}
	return false
}

func (p *Parser) parseCreateTable(pos Pos) (Statement, error) {
	p.advance() // TABLE
	ifNotExists := p.parseIfNotExists()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []ColumnDef
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CreateTable{Pos: pos, Name: name, Columns: cols, IfNotExists: ifNotExists}, nil
}

func (p *Parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ColumnDef{}, err
	}
	var col ColumnDef
	col.Name = name
	switch {
	case p.isKeyword("INT"):
		p.advance()
		col.Type = catalog.TypeInt
	case p.isKeyword("VARCHAR"), p.isKeyword("CHAR"):
		isVarchar := p.isKeyword("VARCHAR")
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return ColumnDef{}, err
		}
		t := p.cur()
		if t.Kind != lexer.IntLiteral {
			return ColumnDef{}, p.syntaxErr("expected length", "integer")
		}
		n := int(t.Literal.(int64))
		if n <= 0 {
			return ColumnDef{}, &sqlerr.SyntaxError{Line: t.Line, Column: t.Column, Message: "type length must be > 0"}
		}
		p.advance()
		if err := p.expectSymbol(")"); err != nil {
			return ColumnDef{}, err
		}
		col.TypeLen = n
		if isVarchar {
			col.Type = catalog.TypeVarchar
		} else {
			col.Type = catalog.TypeChar
		}
	default:
		return ColumnDef{}, p.syntaxErr("expected column type", "INT|VARCHAR|CHAR")
	}
	for {
		switch {
		case p.isKeyword("PRIMARY"):
			p.advance()
			p.expectKeyword("KEY")
			col.Constraint |= catalog.ConstraintPrimaryKey | catalog.ConstraintNotNull
		case p.isKeyword("NOT"):
			p.advance()
			p.expectKeyword("NULL")
			col.Constraint |= catalog.ConstraintNotNull
		case p.isKeyword("UNIQUE"):
			p.advance()
			col.Constraint |= catalog.ConstraintUnique
		case p.isKeyword("DEFAULT"):
			p.advance()
			expr, err := p.parsePrimary()
			if err != nil {
				return ColumnDef{}, err
			}
			col.Default = expr
			col.Constraint |= catalog.ConstraintHasDefault
		default:
			return col, nil
		}
	}
}

func (p *Parser) parseDrop() (Statement, error) {
	pos := p.pos_()
	p.advance() // DROP
	switch {
	case p.isKeyword("TABLE"):
		p.advance()
		ifExists := p.parseIfExists()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		cascade := false
		if p.isKeyword("CASCADE") {
			p.advance()
			cascade = true
		} else if p.isKeyword("RESTRICT") {
			p.advance()
		}
		return &DropTable{Pos: pos, Name: name, IfExists: ifExists, Cascade: cascade}, nil
	case p.isKeyword("INDEX"):
		p.advance()
		ifExists := p.parseIfExists()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &DropIndex{Pos: pos, Name: name, IfExists: ifExists}, nil
	case p.isKeyword("VIEW"):
		p.advance()
		ifExists := p.parseIfExists()
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		cascade := false
		if p.isKeyword("CASCADE") {
			p.advance()
			cascade = true
		} else if p.isKeyword("RESTRICT") {
			p.advance()
		}
		return &DropView{Pos: pos, Name: name, IfExists: ifExists, Cascade: cascade}, nil
	default:
		return nil, p.syntaxErr("expected TABLE, INDEX or VIEW", "TABLE|INDEX|VIEW")
	}
}

func (p *Parser) parseCreateIndex(pos Pos, unique bool) (Statement, error) {
	p.advance() // INDEX
	return p.parseCreateIndexBody(pos, unique)
}

func (p *Parser) parseCreateIndexBody(pos Pos, unique bool) (Statement, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CreateIndex{Pos: pos, Name: name, Table: table, Columns: cols, Unique: unique}, nil
}

func (p *Parser) parseCreateView(pos Pos, materialized bool) (Statement, error) {
	p.advance() // VIEW
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	sel, err := p.parseSelectBody()
	if err != nil {
		return nil, err
	}
	return &CreateView{Pos: pos, Name: name, Select: sel, Materialized: materialized}, nil
}

// ---- INSERT / UPDATE / DELETE ------------------------------------------

func (p *Parser) parseInsert() (Statement, error) {
	pos := p.pos_()
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.isSymbol("(") {
		p.advance()
		for {
			c, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.isSymbol(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		vals = append(vals, e)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &Insert{Pos: pos, Table: table, Columns: cols, Values: vals}, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	pos := p.pos_()
	p.advance() // UPDATE
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var sets []Assignment
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sets = append(sets, Assignment{Column: col, Value: val})
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	var where Expr
	if p.isKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &Update{Pos: pos, Table: table, Set: sets, Where: where}, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	pos := p.pos_()
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	var where Expr
	if p.isKeyword("WHERE") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &Delete{Pos: pos, Table: table, Where: where}, nil
}

// ---- SELECT ---------------------------------------------------------------

func (p *Parser) parseSelect() (Statement, error) {
	return p.parseSelectBody()
}

func (p *Parser) parseSelectBody() (*Select, error) {
	pos := p.pos_()
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseFromClause()
	if err != nil {
		return nil, err
	}
	sel := &Select{Pos: pos, Columns: items, From: from}

	if p.isKeyword("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = w
	}
	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if p.isSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if p.isKeyword("HAVING") {
		p.advance()
		h, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = h
	}
	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			desc := false
			if p.isKeyword("ASC") {
				p.advance()
			} else if p.isKeyword("DESC") {
				p.advance()
				desc = true
			}
			sel.OrderBy = append(sel.OrderBy, OrderItem{Expr: e, Desc: desc})
			if p.isSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return sel, nil
}

func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	if p.isSymbol("*") {
		p.advance()
		items = append(items, SelectItem{Star: true})
	} else {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := SelectItem{Expr: e}
			if p.isKeyword("AS") {
				p.advance()
				alias, err := p.parseIdent()
				if err != nil {
					return nil, err
				}
				item.Alias = alias
			} else if p.cur().Kind == lexer.Ident {
				item.Alias = p.advance().Lexeme
			}
			items = append(items, item)
			if p.isSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return items, nil
}

// parseFromClause implements from_clause := table_ref (join_type JOIN
// table_ref ON expr)*.
func (p *Parser) parseFromClause() (FromClause, error) {
	var left FromClause
	left, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	for {
		kind, ok, err := p.tryParseJoinKind()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		pos := p.pos_()
		right, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		var on Expr
		if kind != JoinCross {
			if err := p.expectKeyword("ON"); err != nil {
				return nil, err
			}
			on, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		left = &Join{Pos: pos, Kind: kind, Left: left, Right: right, On: on}
	}
	return left, nil
}

func (p *Parser) tryParseJoinKind() (JoinKind, bool, error) {
	switch {
	case p.isKeyword("JOIN"):
		p.advance()
		return JoinInner, true, nil
	case p.isKeyword("INNER"):
		p.advance()
		if err := p.expectKeyword("JOIN"); err != nil {
			return 0, false, err
		}
		return JoinInner, true, nil
	case p.isKeyword("LEFT"):
		p.advance()
		if p.isKeyword("OUTER") {
			p.advance()
		}
		if err := p.expectKeyword("JOIN"); err != nil {
			return 0, false, err
		}
		return JoinLeft, true, nil
	case p.isKeyword("RIGHT"):
		p.advance()
		if p.isKeyword("OUTER") {
			p.advance()
		}
		if err := p.expectKeyword("JOIN"); err != nil {
			return 0, false, err
		}
		return JoinRight, true, nil
	case p.isKeyword("CROSS"):
		p.advance()
		if err := p.expectKeyword("JOIN"); err != nil {
			return 0, false, err
		}
		return JoinCross, true, nil
	default:
		return 0, false, nil
	}
}

// parseTableRef implements table_ref := name [AS? alias]. An alias is only
// accepted when the next token is an identifier that is NOT a reserved
// keyword (spec.md §4.7 tie-break).
func (p *Parser) parseTableRef() (FromClause, error) {
	pos := p.pos_()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	ref := &TableRef{Pos: pos, Name: name}
	if p.isKeyword("AS") {
		p.advance()
		alias, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		ref.Alias = alias
		return ref, nil
	}
	if p.cur().Kind == lexer.Ident {
		ref.Alias = p.advance().Lexeme
	}
	return ref, nil
}

// ---- Expressions ------------------------------------------------------
//
// Precedence, lowest to highest:
//   OR > AND > equality (=, <>) > comparison (<,<=,>,>=,IN/NOT IN)
//     > additive (+,-) > multiplicative (*,/) > primary

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		pos := p.pos_()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Pos: pos, Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		pos := p.pos_()
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Binary{Pos: pos, Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("=") || p.isSymbol("<>") {
		pos := p.pos_()
		op := p.advance().Lexeme
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isSymbol("<"), p.isSymbol("<="), p.isSymbol(">"), p.isSymbol(">="):
			pos := p.pos_()
			op := p.advance().Lexeme
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &Binary{Pos: pos, Op: op, Left: left, Right: right}
		case p.isKeyword("IN"):
			in, err := p.parseIn(left, false)
			if err != nil {
				return nil, err
			}
			left = in
		case p.isKeyword("NOT") && p.peek().Kind == lexer.Keyword && p.peek().Lexeme == "IN":
			p.advance() // NOT
			in, err := p.parseIn(left, true)
			if err != nil {
				return nil, err
			}
			left = in
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseIn(left Expr, negated bool) (Expr, error) {
	pos := p.pos_()
	p.advance() // IN
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	if p.isKeyword("SELECT") {
		sub, err := p.parseSelectBody()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &In{Pos: pos, Expr: left, Subq: sub, Negated: negated}, nil
	}
	var list []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &In{Pos: pos, Expr: left, List: list, Negated: negated}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("+") || p.isSymbol("-") {
		pos := p.pos_()
		op := p.advance().Lexeme
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("*") || p.isSymbol("/") {
		pos := p.pos_()
		op := p.advance().Lexeme
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	pos := Pos{Line: t.Line, Column: t.Column}

	switch {
	case t.Kind == lexer.IntLiteral:
		p.advance()
		return &Literal{Pos: pos, Val: t.Literal}, nil
	case t.Kind == lexer.StringLiteral:
		p.advance()
		return &Literal{Pos: pos, Val: t.Literal}, nil
	case t.Kind == lexer.Keyword && t.Lexeme == "TRUE":
		p.advance()
		return &Literal{Pos: pos, Val: true}, nil
	case t.Kind == lexer.Keyword && t.Lexeme == "FALSE":
		p.advance()
		return &Literal{Pos: pos, Val: false}, nil
	case t.Kind == lexer.Keyword && t.Lexeme == "NULL":
		p.advance()
		return &Literal{Pos: pos, Val: nil}, nil
	case t.Kind == lexer.Symbol && t.Lexeme == "(":
		p.advance()
		if p.isKeyword("SELECT") {
			sub, err := p.parseSelectBody()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return &Subquery{Pos: pos, Select: sub}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.Kind == lexer.Keyword && aggregateNames[t.Lexeme]:
		return p.parseFunctionCall()
	case t.Kind == lexer.Ident:
		return p.parseIdentifierOrFunction()
	default:
		return nil, p.syntaxErr("expected an expression", "expression")
	}
}

func (p *Parser) parseFunctionCall() (Expr, error) {
	t := p.advance()
	pos := Pos{Line: t.Line, Column: t.Column}
	name := strings.ToUpper(t.Lexeme)
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	fn := &Function{Pos: pos, Name: name}
	if p.isSymbol("*") {
		p.advance()
		fn.Star = true
	} else if !p.isSymbol(")") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fn.Args = append(fn.Args, e)
			if p.isSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *Parser) parseIdentifierOrFunction() (Expr, error) {
	t := p.advance()
	pos := Pos{Line: t.Line, Column: t.Column}
	name := t.Lexeme

	if p.isSymbol(".") {
		p.advance()
		second, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &Identifier{Pos: pos, Qualifier: name, Name: second}, nil
	}
	if p.isSymbol("(") {
		p.advance()
		fn := &Function{Pos: pos, Name: strings.ToUpper(name)}
		if !p.isSymbol(")") {
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				fn.Args = append(fn.Args, e)
				if p.isSymbol(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return fn, nil
	}
	return &Identifier{Pos: pos, Name: name}, nil
}
