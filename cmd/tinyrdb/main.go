// Command tinyrdb is the REPL-less CLI driver spec.md §6 keeps outside the
// relational core: "tinyrdb compile <file.sql>" runs every statement in a
// file through the compiler and prints each statement's plan cost or error; "tinyrdb
// serve" starts a minimal ad hoc HTTP listener for local testing (the
// production listener with metrics and a compaction schedule is
// cmd/tinyrdb-server).
//
// Grounded on the teacher's cmd/vittoriadb main.go: a single urfave/cli.App
// with one subcommand per cli.Command and flag-backed configuration instead
// of positional-argument parsing.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/SimonWaldherr/tinyrdb/internal/catalog"
	"github.com/SimonWaldherr/tinyrdb/internal/compiler"
	"github.com/SimonWaldherr/tinyrdb/internal/config"
	"github.com/SimonWaldherr/tinyrdb/internal/observ"
	"github.com/SimonWaldherr/tinyrdb/internal/planner"
)

func main() {
	app := &cli.App{
		Name:  "tinyrdb",
		Usage: "compile SQL against a tinyrdb catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "", Usage: "path to a YAML config file"},
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "compile every statement in a .sql file and print its cost",
				ArgsUsage: "<file.sql>",
				Action:    runCompile,
			},
			{
				Name:  "serve",
				Usage: "start a minimal ad hoc HTTP listener for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":8089", Usage: "address to listen on"},
				},
				Action: runServe,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		observ.Logger.Fatal().Err(err).Msg("tinyrdb: exiting")
	}
}

func openCatalog(c *cli.Context) (*catalog.Catalog, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg.CatalogFile)
}

func runCompile(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one argument: <file.sql>", 1)
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	cat, err := openCatalog(c)
	if err != nil {
		return err
	}

	results := compiler.CompileMultiple(cat, splitStatements(string(data)))
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("statement %d: ERROR: %v\n", i+1, r.Err)
			continue
		}
		fmt.Printf("statement %d: ok, cost=%d\n", i+1, planner.TotalCost(r.Plan))
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d statements failed to compile", failed, len(results)), 1)
	}
	return nil
}

// splitStatements splits a .sql file's contents on top-level semicolons,
// skipping semicolons inside single-quoted string literals, and re-attaches
// the terminator each statement the parser requires.
func splitStatements(src string) []string {
	var out []string
	var cur strings.Builder
	inString := false
	for i := 0; i < len(src); i++ {
		ch := src[i]
		cur.WriteByte(ch)
		switch {
		case ch == '\'':
			inString = !inString
		case ch == ';' && !inString:
			stmt := strings.TrimSpace(cur.String())
			if stmt != ";" && stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest+";")
	}
	return out
}

func runServe(c *cli.Context) error {
	cat, err := openCatalog(c)
	if err != nil {
		return err
	}
	addr := c.String("addr")
	observ.Logger.Info().Str("addr", addr).Msg("tinyrdb: ad hoc listener starting")

	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SQL string `json:"sql"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		plan, err := compiler.Compile(cat, req.SQL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"cost": planner.TotalCost(plan)})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(addr, mux)
}
