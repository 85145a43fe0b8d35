// Package scheme implements selectable schemes: orderings over one column of
// one table, which answer range queries with row sets in column order.
//
// BlindSearch maintains no state and sorts the table upon every query, and
// suits columns of small or uninteresting domains. InsertSearch maintains a
// sorted list of rows which is updated incrementally as rows are inserted and
// removed. Both produce identical row sets for identical Ranges, and order
// rows of equal value by table enumeration order.
//
// A Scheme is mutable until frozen. Subset schemes, which restrict an
// ordering to the rows of a derived table, are always frozen.
package scheme

import (
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
)

// ErrSchemeFrozen is returned by mutations of a frozen Scheme.
var ErrSchemeFrozen = errors.New("scheme is frozen")

// Names of Scheme implementations, as selected by a column's index scheme.
const (
	InsertSearchName = "ordered"
	BlindSearchName  = "blind"
)

// Table is the view of a table required by a Scheme.
type Table interface {
	// RowCount returns the number of rows of the table.
	RowCount() int
	// Rows returns the rows of the table, in enumeration order.
	Rows() []int
	// CellAt returns the cell at |column| and |row|.
	CellAt(column, row int) (cell.Cell, error)
	// SetToRowTableDomain maps |rows| of the table's row domain into the row
	// domain of |ancestor|, which is the table itself or one it derives from.
	// |column| selects the ancestor where a table has multiple parents.
	SetToRowTableDomain(column int, rows []int, ancestor Table) ([]int, error)
}

// Scheme is an ordering over a column of a Table.
type Scheme interface {
	// Table indexed by the Scheme.
	Table() Table
	// Column of the Table which is indexed.
	Column() int
	// Frozen returns whether the Scheme is immutable.
	Frozen() bool
	// Freeze the Scheme, after which Insert and Remove fail.
	Freeze()
	// Insert |row| of the Table into the Scheme.
	Insert(row int) error
	// Remove |row| of the Table from the Scheme. The row's cell must still be readable.
	Remove(row int) error
	// SelectAll returns all rows of the Table, in column order.
	SelectAll() ([]int, error)
	// SelectRange returns the rows falling within the union of |ranges|, in
	// column order. Ranges must be non-overlapping and in ascending order.
	SelectRange(ranges ...Range) ([]int, error)
	// Subset returns a frozen Scheme of |table|'s |column|, having the same
	// order as this Scheme restricted to the rows of |table|. |table| must
	// derive from this Scheme's Table.
	Subset(table Table, column int) (Scheme, error)
	// Copy the Scheme to index |table|, which has the same row domain as the
	// Scheme's Table.
	Copy(table Table, frozen bool) (Scheme, error)
}

// New returns a new, empty and mutable Scheme named |name|.
func New(name string, table Table, column int) (Scheme, error) {
	switch name {
	case InsertSearchName:
		return NewInsertSearch(table, column), nil
	case BlindSearchName:
		return NewBlindSearch(table, column), nil
	default:
		return nil, errors.Errorf("unknown scheme %q", name)
	}
}

// Build a new Scheme named |name| and insert every row of |table|.
func Build(name string, table Table, column int) (Scheme, error) {
	var s, err = New(name, table, column)
	if err != nil {
		return nil, err
	}
	for _, row := range table.Rows() {
		if err = s.Insert(row); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// mutability is the two-state lifecycle of a Scheme.
type mutability struct{ frozen bool }

func (m *mutability) Frozen() bool { return m.frozen }
func (m *mutability) Freeze()      { m.frozen = true }

func (m *mutability) checkMutable() error {
	if m.frozen {
		return ErrSchemeFrozen
	}
	return nil
}
