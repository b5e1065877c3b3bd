// Package sqlerr defines the closed error taxonomy shared by every layer of
// tinyrdb: lexer, parser, semantic analyser, storage manager and catalog.
//
// What: a small set of concrete error types, each implementing error, that
// carry positional or resource context alongside a message.
// How: callers construct the concrete type and return it (or wrap it with
// fmt.Errorf("...: %w", err)); callers upstream recover the concrete type
// with a type switch or type assertion (as Wrap does) for diagnostics.
// Why: a closed taxonomy lets every layer report failures uniformly without
// reflection-based type dispatch, and keeps CompilerError as a stable
// umbrella for anything reaching the public compiler surface.
package sqlerr

import "fmt"

// LexicalError reports a tokenisation failure.
type LexicalError struct {
	Line    int
	Column  int
	Message string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("lexical error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// SyntaxError reports a grammar violation encountered by the parser.
type SyntaxError struct {
	Line     int
	Column   int
	Message  string
	Expected string // optional description of the expected token
}

func (e *SyntaxError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("syntax error at %d:%d: %s (expected %s)", e.Line, e.Column, e.Message, e.Expected)
	}
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// SemanticErrorKind classifies the rule a SemanticError violates.
type SemanticErrorKind string

const (
	KindUnknownTable      SemanticErrorKind = "unknown_table"
	KindDuplicateTable    SemanticErrorKind = "duplicate_table"
	KindUnknownColumn     SemanticErrorKind = "unknown_column"
	KindDuplicateColumn   SemanticErrorKind = "duplicate_column"
	KindTypeMismatch      SemanticErrorKind = "type_mismatch"
	KindArityMismatch     SemanticErrorKind = "arity_mismatch"
	KindUngroupedColumn   SemanticErrorKind = "ungrouped_column"
	KindAggregateInWhere  SemanticErrorKind = "aggregate_in_where"
	KindHavingWithoutGrp  SemanticErrorKind = "having_without_group_by"
	KindInvalidOrderDir   SemanticErrorKind = "invalid_order_direction"
	KindInvalidAggArg     SemanticErrorKind = "invalid_aggregate_argument"
	KindMissingDefault    SemanticErrorKind = "missing_default"
	KindAmbiguousColumn   SemanticErrorKind = "ambiguous_column"
	KindCyclicViewDep     SemanticErrorKind = "cyclic_view_dependency"
	KindInvalidColumnType SemanticErrorKind = "invalid_column_type"
	KindUnknownIndex      SemanticErrorKind = "unknown_index"
	KindUnknownView       SemanticErrorKind = "unknown_view"
	KindDependentView     SemanticErrorKind = "dependent_view"
)

// SemanticError reports a name-resolution or type-checking failure.
type SemanticError struct {
	Kind          SemanticErrorKind
	Message       string
	OffendingNode string // a short description of the AST node, for diagnostics
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error [%s]: %s (at %s)", e.Kind, e.Message, e.OffendingNode)
}

// StorageError reports an I/O or capacity failure in the storage layer.
type StorageError struct {
	PageID  uint64
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage error (page %d): %s: %v", e.PageID, e.Message, e.Err)
	}
	return fmt.Sprintf("storage error (page %d): %s", e.PageID, e.Message)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CatalogError reports a catalog inconsistency detected mid-operation (as
// opposed to the boolean-false return used for ordinary name collisions).
type CatalogError struct {
	Name    string
	Message string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error %q: %s", e.Name, e.Message)
}

// CompilerError is the umbrella type returned from the public compiler
// surface; it wraps whichever concrete error was first encountered.
type CompilerError struct {
	Line    int
	Column  int
	Message string
	Cause   error
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("compile error at %d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *CompilerError) Unwrap() error { return e.Cause }

// Wrap converts any error produced by the compiler pipeline into a
// CompilerError, extracting line/column where available.
func Wrap(err error) *CompilerError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CompilerError); ok {
		return ce
	}
	switch e := err.(type) {
	case *LexicalError:
		return &CompilerError{Line: e.Line, Column: e.Column, Message: e.Message, Cause: err}
	case *SyntaxError:
		return &CompilerError{Line: e.Line, Column: e.Column, Message: e.Message, Cause: err}
	case *SemanticError:
		return &CompilerError{Message: e.Message, Cause: err}
	default:
		return &CompilerError{Message: err.Error(), Cause: err}
	}
}
