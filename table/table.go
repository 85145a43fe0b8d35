// Package table composes row stores and schemes into tables.
//
// A Master is the base table backed by a rowstore.Store. It owns a Scheme
// of each column over its committed rows, and hands out DataTables:
// transactional views of a snapshot of the Master, each with its own
// Journal and copies of the Master's Schemes. Committing a DataTable checks
// its Journal against those committed concurrently, and applies it.
//
// VirtualTable, FilterTable and SubsetColumnTable derive from other tables
// without copying their rows. A Scheme requested of a derived table is
// resolved by delegation to its parents, and by mapping rows of the derived
// table into the row domain of the table which owns the Scheme.
package table

import (
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/scheme"
)

var (
	// ErrNotNull is returned when a null value is added to a NOT NULL column.
	ErrNotNull = errors.New("column may not be null")
	// ErrColumnType is returned when a cell's Kind doesn't match its column.
	ErrColumnType = errors.New("cell kind doesn't match column")
	// ErrTxnDone is returned by operations of a committed or rolled-back DataTable.
	ErrTxnDone = errors.New("transaction is already committed or rolled back")
	// ErrNotAncestor is returned when mapping rows into the domain of a table
	// which isn't an ancestor.
	ErrNotAncestor = errors.New("table is not an ancestor")
)

// Table is a table of rows and columns, which may be composed into derived tables.
type Table interface {
	scheme.Table

	// ColumnCount returns the number of columns.
	ColumnCount() int
	// ColumnName returns the name of |column|.
	ColumnName(column int) string
	// ColumnKind returns the Kind of |column|.
	ColumnKind(column int) cell.Kind
	// SchemeFor returns a Scheme of |column|, in the row domain of
	// |requester|. |requester| is this Table, or one deriving from it,
	// and |originalColumn| is the requested column in its numbering.
	SchemeFor(column, originalColumn int, requester scheme.Table) (scheme.Scheme, error)
}

// RootTable is a Table at the boundary of union-compatibility checks.
type RootTable interface {
	Table
	// TypeEquals returns whether rows of |other| may be unioned with this table.
	TypeEquals(other RootTable) bool
}

// FindColumn returns the index of the column of |t| named |name|, or -1.
func FindColumn(t Table, name string) int {
	for i, n := 0, t.ColumnCount(); i != n; i++ {
		if t.ColumnName(i) == name {
			return i
		}
	}
	return -1
}

// SchemeOf returns the Scheme of |column| of Table |t|, in its own row domain.
func SchemeOf(t Table, column int) (scheme.Scheme, error) {
	return t.SchemeFor(column, column, t)
}

// sequence returns [0, n).
func sequence(n int) []int {
	var out = make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func checkColumn(t Table, column int) error {
	if column < 0 || column >= t.ColumnCount() {
		return errors.Errorf("column %d out of range (of %d)", column, t.ColumnCount())
	}
	return nil
}
