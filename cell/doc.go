// Package cell defines Cell, the typed value held by a single column of a
// single row, together with its total order and its compact tagged binary
// encoding.
//
// A Cell is one of six Kinds: NUMERIC (an arbitrary precision Decimal),
// STRING, BOOLEAN, TIME, BLOB and OBJECT (an opaque serialized object).
// Every Kind carries a distinct null state, which orders before every
// non-null value of the Kind. Cells of differing Kinds are incomparable.
//
// Encoded cells are a tag byte, a null byte and a Kind-specific payload.
// Large STRING, BLOB and OBJECT payloads are compressed with a configured
// codecs.Codec when doing so produces a strictly smaller encoding.
//
// Rows are sequences of encoded cells behind a header of per-column offsets,
// which allows a single column of a stored row to be decoded without
// decoding its siblings.
package cell

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compressedCellsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_cell_compressed_total",
		Help: "Cumulative number of encoded cells which were stored compressed.",
	})
	compressedBytesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabledb_cell_compressed_bytes_saved_total",
		Help: "Cumulative number of payload bytes saved by cell compression.",
	})
)
