// Package observ holds the structured logger and Prometheus metrics shared
// across every tinyrdb component, the way DocReasoner wires zerolog and
// client_golang through a single package rather than per-component globals.
package observ

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger. Components log through it
// directly and name themselves in the message prefix ("bufferpool: ...").
var Logger = newLogger()

func newLogger() zerolog.Logger {
	if isTestBinary() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().Level(zerolog.WarnLevel)
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func isTestBinary() bool {
	for _, a := range os.Args {
		if len(a) >= 5 && a[len(a)-5:] == ".test" {
			return true
		}
	}
	return false
}

// Registry is the Prometheus registry metrics are registered against. A
// driver binary (cmd/tinyrdb-server) exposes it via promhttp; the core never
// imports an HTTP transport itself.
var Registry = prometheus.NewRegistry()

var (
	BufferPoolHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyrdb_bufferpool_hits_total",
		Help: "Number of buffer pool lookups that found a cached page.",
	})
	BufferPoolMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyrdb_bufferpool_misses_total",
		Help: "Number of buffer pool lookups that missed the cache.",
	})
	BufferPoolEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyrdb_bufferpool_evictions_total",
		Help: "Number of pages evicted from the buffer pool.",
	})
	PagesAllocated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyrdb_pages_allocated_total",
		Help: "Number of pages allocated by the page manager.",
	})
	PagesFreed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyrdb_pages_freed_total",
		Help: "Number of pages returned to the free list.",
	})
	CompileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyrdb_compile_errors_total",
		Help: "Number of compile errors by taxonomy kind.",
	}, []string{"kind"})
)

func init() {
	Registry.MustRegister(BufferPoolHits, BufferPoolMisses, BufferPoolEvictions,
		PagesAllocated, PagesFreed, CompileErrors)
}
