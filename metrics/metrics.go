// Package metrics declares collectors of the tabledb table layer. Lower
// layers (rowstore, cache, gc, journal) register their own collectors with
// promauto; collectors here are registered by the binary.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Keys for tabledb metrics.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Collectors for table.Master and table.DataTable metrics.
var (
	CommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tabledb_table_commits_total",
		Help: "Cumulative number of transaction commits, by status.",
	}, []string{"status"})
	RollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_table_rollbacks_total",
		Help: "Cumulative number of transactions rolled back.",
	})
	RowsAddedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_table_rows_added_total",
		Help: "Cumulative number of rows added by committed transactions.",
	})
	RowsRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_table_rows_removed_total",
		Help: "Cumulative number of rows removed by committed transactions.",
	})
	OpenTransactions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabledb_table_open_transactions",
		Help: "Number of currently open transactions, across all tables.",
	})
	RootLocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tabledb_table_root_locks",
		Help: "Number of currently held root locks, across all tables.",
	})
	SchemeRebuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_table_scheme_rebuilds_total",
		Help: "Cumulative number of column schemes rebuilt upon table open.",
	})
)

// TableCollectors returns the collectors of the table layer.
func TableCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		CommitsTotal,
		RollbacksTotal,
		RowsAddedTotal,
		RowsRemovedTotal,
		OpenTransactions,
		RootLocks,
		SchemeRebuildsTotal,
	}
}
