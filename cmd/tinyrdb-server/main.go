// Command tinyrdb-server is the optional HTTP front door spec.md §1
// explicitly keeps outside the relational core: it exposes POST /query over
// the compiler, plus /metrics and /healthz, and runs a background
// compactor that periodically flushes the storage manager's buffer pool.
//
// Grounded on the teacher's cmd/vittoriadb shape (an urfave/cli App whose
// "run" command boots a gorilla/mux Server) is out of reach here since
// tinySQL itself ships no HTTP server; the router and job-scheduling shape
// below are grounded on VittoriaDB's pkg/server.Server (mux.NewRouter,
// writeJSON/writeError helpers) and tinySQL's internal/storage/scheduler.go
// (a robfig/cron.Cron driving a periodic maintenance task).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/SimonWaldherr/tinyrdb/internal/catalog"
	"github.com/SimonWaldherr/tinyrdb/internal/compiler"
	"github.com/SimonWaldherr/tinyrdb/internal/config"
	"github.com/SimonWaldherr/tinyrdb/internal/observ"
	"github.com/SimonWaldherr/tinyrdb/internal/planner"
	"github.com/SimonWaldherr/tinyrdb/internal/sqlerr"
	"github.com/SimonWaldherr/tinyrdb/internal/storagemgr"
)

func main() {
	app := &cli.App{
		Name:  "tinyrdb-server",
		Usage: "HTTP front door over the tinyrdb compiler and storage manager",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8089", Usage: "address to listen on"},
			&cli.StringFlag{Name: "config", Value: "", Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "compact-schedule", Value: "@every 5m", Usage: "cron schedule for the background page-flush compactor"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		observ.Logger.Fatal().Err(err).Msg("tinyrdb-server: exiting")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	cat, err := catalog.Open(cfg.CatalogFile)
	if err != nil {
		return err
	}
	store, err := storagemgr.Open(cfg.DataFile, cfg.MetadataFile, cfg.BufferPoolCapacity)
	if err != nil {
		return err
	}

	compactor := cron.New()
	if _, err := compactor.AddFunc(c.String("compact-schedule"), func() {
		if err := store.FlushAllPages(); err != nil {
			observ.Logger.Warn().Err(err).Msg("tinyrdb-server: background compaction flush failed")
			return
		}
		observ.Logger.Debug().Msg("tinyrdb-server: background compaction flush complete")
	}); err != nil {
		return err
	}
	compactor.Start()
	defer compactor.Stop()

	srv := newServer(cat, store, c.String("addr"))
	go func() {
		observ.Logger.Info().Str("addr", c.String("addr")).Msg("tinyrdb-server: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observ.Logger.Error().Err(err).Msg("tinyrdb-server: server stopped unexpectedly")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return store.Shutdown()
}

func newServer(cat *catalog.Catalog, store *storagemgr.Manager, addr string) *http.Server {
	h := &httpHandlers{cat: cat, store: store}
	router := mux.NewRouter()
	router.HandleFunc("/query", h.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(observ.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return &http.Server{Addr: addr, Handler: router}
}

type httpHandlers struct {
	cat   *catalog.Catalog
	store *storagemgr.Manager
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Plan any    `json:"plan,omitempty"`
	Cost int    `json:"cost,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (h *httpHandlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, queryResponse{Error: &errorBody{Kind: "request", Message: err.Error()}})
		return
	}

	plan, err := compiler.Compile(h.cat, req.SQL)
	if err != nil {
		ce := sqlerr.Wrap(err)
		writeJSON(w, http.StatusUnprocessableEntity, queryResponse{
			Error: &errorBody{Kind: "compile", Message: ce.Message, Line: ce.Line, Column: ce.Column},
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Plan: describePlan(plan), Cost: planner.TotalCost(plan)})
}

func (h *httpHandlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"buffer_pool_hit_rate": h.store.HitRate(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// describePlan renders an operator tree as nested maps for the wire, since
// planner.Node's concrete variants aren't otherwise JSON-addressable.
func describePlan(n planner.Node) map[string]any {
	if n == nil {
		return nil
	}
	out := map[string]any{"cost": n.EstCost()}
	switch v := n.(type) {
	case *planner.SeqScan:
		out["op"] = "SeqScan"
		out["table"] = v.DisplayName()
	case *planner.IndexScan:
		out["op"] = "IndexScan"
		out["table"] = v.DisplayName()
		out["index"] = v.Index
	case *planner.Filter:
		out["op"] = "Filter"
	case *planner.Project:
		out["op"] = "Project"
	case *planner.Join:
		out["op"] = "Join"
	case *planner.GroupBy:
		out["op"] = "GroupBy"
	case *planner.Sort:
		out["op"] = "Sort"
	case *planner.DDL:
		out["op"] = v.Op
		out["name"] = v.Name
	case *planner.Insert:
		out["op"] = "Insert"
		out["table"] = v.Table
	case *planner.Update:
		out["op"] = "Update"
		out["table"] = v.Table
	case *planner.Delete:
		out["op"] = "Delete"
		out["table"] = v.Table
	default:
		out["op"] = "Unknown"
	}
	var children []map[string]any
	for _, c := range n.Children() {
		children = append(children, describePlan(c))
	}
	if children != nil {
		out["children"] = children
	}
	return out
}
