// Package journal implements Journal, the append-only log of row additions
// and removals made by a transaction against a single base table.
//
// Journals are never edited once written: entries are only normalized into
// the net sets of rows added and removed. Committing transactions cross-check
// their Journal against those committed concurrently, and a row removed by
// both is an unresolvable clash which aborts the later committer.
package journal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commitClashesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tabledb_journal_commit_clashes_total",
	Help: "Cumulative number of commits rejected due to concurrent removal of the same row.",
})
