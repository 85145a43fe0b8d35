// Package gc implements Collector, which reclaims the physical storage of
// rows a table has deleted once no result set may still reference them.
//
// Deletions are marked as they commit, and a reclamation pass is posted to a
// background dispatcher with a short delay. The pass re-checks at execution
// time that the table holds no root locks and has no transaction changes
// pending, and is otherwise skipped: the next trigger posts another. Marked
// rows are tracked individually up to a bound, beyond which the Collector
// instead schedules a full sweep of every row of the table.
package gc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabledb_gc_passes_total",
		Help: "Cumulative number of garbage collection passes, by outcome.",
	}, []string{"outcome"})
	rowsReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_gc_rows_reclaimed_total",
		Help: "Cumulative number of rows physically reclaimed by garbage collection.",
	})
)

const (
	outcomeComplete = "complete"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)
