// Package compiler exposes the single public surface spec.md §6 names:
// lex -> parse -> analyse -> plan, collapsed into one call per SQL string.
//
// Grounded on the teacher's top-level tinysql.go facade, which also
// re-exports a pipeline of independently-testable internal packages behind
// a small number of top-level functions (ParseSQL, Compile, Execute); here
// the pipeline is lex/parse/semantic/planner rather than parse/execute, and
// every call is bound to one Catalog the way the teacher's Execute is bound
// to one DB.
package compiler

import (
	"github.com/SimonWaldherr/tinyrdb/internal/catalog"
	"github.com/SimonWaldherr/tinyrdb/internal/observ"
	"github.com/SimonWaldherr/tinyrdb/internal/parser"
	"github.com/SimonWaldherr/tinyrdb/internal/planner"
	"github.com/SimonWaldherr/tinyrdb/internal/semantic"
	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
)

// Compile runs the full pipeline against cat and returns the resulting
// operator tree, or the first error the pipeline reaches (spec.md §7:
// "a single error per call — the first one reached"), wrapped as a
// *sqlerr.CompilerError.
func Compile(cat *catalog.Catalog, sql string) (planner.Node, error) {
	p, err := parser.New(sql)
	if err != nil {
		observ.CompileErrors.WithLabelValues(errKind(err)).Inc()
		return nil, sqlerr.Wrap(err)
	}
	stmt, err := p.ParseStatement()
	if err != nil {
		observ.CompileErrors.WithLabelValues(errKind(err)).Inc()
		return nil, sqlerr.Wrap(err)
	}
	if err := semantic.Analyze(cat, stmt); err != nil {
		observ.CompileErrors.WithLabelValues(errKind(err)).Inc()
		return nil, sqlerr.Wrap(err)
	}
	plan := planner.Generate(cat, stmt)
	if ins, ok := stmt.(*parser.Insert); ok {
		// Schema mutations happen inside DDL semantic analysis (spec.md §5);
		// the row_count_hint is the one piece of catalog bookkeeping a DML
		// statement still touches (spec.md §8 S1), so it is updated here once
		// the statement is known to compile successfully.
		if err := cat.IncrementRowCount(ins.Table, 1); err != nil {
			return nil, sqlerr.Wrap(err)
		}
	}
	observ.Logger.Debug().Str("sql", sql).Int("cost", planner.TotalCost(plan)).Msg("compiler: compiled statement")
	return plan, nil
}

// CompileSilent runs Compile and converts any error into a nil result,
// matching spec.md §6's compile_silent.
func CompileSilent(cat *catalog.Catalog, sql string) planner.Node {
	plan, err := Compile(cat, sql)
	if err != nil {
		observ.Logger.Warn().Err(err).Str("sql", sql).Msg("compiler: compile_silent swallowed an error")
		return nil
	}
	return plan
}

// Result is one element of a CompileMultiple batch.
type Result struct {
	SQL  string
	Plan planner.Node
	Err  error
}

// CompileMultiple compiles each statement in order against the same
// Catalog, so that a DDL statement earlier in the batch is visible to
// semantic analysis of a later one — the "supplemented" multi-statement
// semantics SPEC_FULL.md documents, grounded on the teacher's QueryCache
// compiling each cached entry against one shared DB. A failure in one
// statement does not abort the batch; its Result simply carries the error.
func CompileMultiple(cat *catalog.Catalog, stmts []string) []Result {
	results := make([]Result, len(stmts))
	for i, sql := range stmts {
		plan, err := Compile(cat, sql)
		results[i] = Result{SQL: sql, Plan: plan, Err: err}
	}
	return results
}

// errKind extracts a short label identifying which layer of the pipeline an
// error came from, for the tinyrdb_compile_errors_total metric.
func errKind(err error) string {
	switch err.(type) {
	case *sqlerr.LexicalError:
		return "lexical"
	case *sqlerr.SyntaxError:
		return "syntax"
	case *sqlerr.SemanticError:
		return "semantic"
	default:
		return "other"
	}
}
