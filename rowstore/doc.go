// Package rowstore implements Store, a durable mapping of integer row IDs to
// variable-length encoded rows.
//
// A Store is a pair of files. The sector file is an array of fixed-size
// sectors, each holding a status byte, the index of the next sector of its
// chain, and a payload. A row occupies a chain of one or more sectors, and
// reclaimed sectors are threaded onto a free list for re-use. The index file
// begins with a reserved header (store identity, sector size, the "next
// unique key" counter, the location of the serialized table Definition, and
// allocation counters) followed by a fixed-size entry per row ID.
//
// Row IDs are allocated densely and are never re-used: a deleted row's ID
// remains deleted for the lifetime of the Store.
//
// A Store opened for writing marks its header dirty until it's cleanly
// closed. Opening a dirty Store verifies every row's sector chain and
// rebuilds the free list, and reports that it did so in order that callers
// may schedule a fuller maintenance sweep of their own state.
package rowstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_rowstore_rows_written_total",
		Help: "Cumulative number of rows written to row stores.",
	})
	rowsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_rowstore_rows_deleted_total",
		Help: "Cumulative number of rows deleted from row stores.",
	})
	bytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_rowstore_bytes_written_total",
		Help: "Cumulative number of row bytes written to row stores.",
	})
	repairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_rowstore_repairs_total",
		Help: "Cumulative number of row stores repaired upon open.",
	})
)
