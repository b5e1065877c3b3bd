package lexer

import (
	"testing"

	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

func TestTokenizeBasicSelect(t *testing.T) {
	toks, err := Tokenize("SELECT id, name FROM t WHERE id = 5;")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if toks[0].Kind != Keyword || toks[0].Lexeme != "SELECT" {
		t.Fatalf("expected SELECT keyword, got %+v", toks[0])
	}
	if toks[len(toks)-1].Kind != EOF {
		t.Fatalf("expected final token to be EOF, got %+v", toks[len(toks)-1])
	}
}

func TestLineColumnTracking(t *testing.T) {
	toks, err := Tokenize("SELECT *\nFROM t;")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	var fromTok Token
	for _, tok := range toks {
		if tok.Lexeme == "FROM" {
			fromTok = tok
		}
	}
	if fromTok.Line != 2 || fromTok.Column != 1 {
		t.Fatalf("expected FROM at line 2 column 1, got line=%d column=%d", fromTok.Line, fromTok.Column)
	}
}

func TestStringLiteralWithEscape(t *testing.T) {
	toks, err := Tokenize(`SELECT 'it\'s here';`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if toks[1].Kind != StringLiteral || toks[1].Literal != "it's here" {
		t.Fatalf("expected unescaped literal, got %+v", toks[1])
	}
}

func TestUnterminatedStringIsLexicalError(t *testing.T) {
	_, err := Tokenize("SELECT 'oops")
	var lexErr *sqlerr.LexicalError
	if err == nil {
		t.Fatalf("expected lexical error")
	}
	if !isLexicalError(err, &lexErr) {
		t.Fatalf("expected *sqlerr.LexicalError, got %T", err)
	}
}

func TestUnrecognisedCharacterIsLexicalError(t *testing.T) {
	_, err := Tokenize("SELECT # FROM t;")
	if err == nil {
		t.Fatalf("expected lexical error for '#'")
	}
}

func TestLineComment(t *testing.T) {
	toks, err := Tokenize("SELECT 1 -- trailing comment\n;")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	found := false
	for _, tok := range toks {
		if tok.Lexeme == ";" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected semicolon to survive comment skipping")
	}
}

func isLexicalError(err error, target **sqlerr.LexicalError) bool {
	if le, ok := err.(*sqlerr.LexicalError); ok {
		*target = le
		return true
	}
	return false
}
