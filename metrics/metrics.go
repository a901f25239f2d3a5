package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is registered on its own registry so several databases can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	// ChunksLoaded counts chunk files decoded from disk, by table kind (user|tmp).
	ChunksLoaded *prometheus.CounterVec
	// ChunksWritten counts whole-file chunk rewrites.
	ChunksWritten *prometheus.CounterVec
	BytesWritten  prometheus.Counter

	TablesCreated *prometheus.CounterVec
	TablesDropped *prometheus.CounterVec

	// Queries counts query runs by status (ok|error).
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram

	SortPasses prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ChunksLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdb_chunks_loaded_total",
			Help: "Total number of chunk files loaded from disk",
		}, []string{"table_kind"}),
		ChunksWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdb_chunks_written_total",
			Help: "Total number of chunk files written to disk",
		}, []string{"table_kind"}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "chunkdb_chunk_bytes_written_total",
			Help: "Total encoded chunk bytes written to disk",
		}),
		TablesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdb_tables_created_total",
			Help: "Total number of tables created",
		}, []string{"table_kind"}),
		TablesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdb_tables_dropped_total",
			Help: "Total number of tables dropped",
		}, []string{"table_kind"}),
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdb_queries_total",
			Help: "Total number of queries run",
		}, []string{"status"}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkdb_query_duration_seconds",
			Help:    "Query run latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		SortPasses: f.NewCounter(prometheus.CounterOpts{
			Name: "chunkdb_sort_passes_total",
			Help: "Total number of external sort passes, run building included",
		}),
	}
}

func TableKind(tmp bool) string {
	if tmp {
		return "tmp"
	}
	return "user"
}
