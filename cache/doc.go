// Package cache implements Cells, a bounded cache of decoded cells shared by
// all tables of a process.
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_cell_cache_hits_total",
		Help: "Cumulative number of cell cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_cell_cache_misses_total",
		Help: "Cumulative number of cell cache misses.",
	})
	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_cell_cache_evictions_total",
		Help: "Cumulative number of cells evicted from the cell cache to satisfy its byte budget.",
	})
	cacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabledb_cell_cache_bytes",
		Help: "Approximate number of bytes held by the cell cache.",
	})
)
