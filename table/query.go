package table

import (
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/scheme"
)

// SimpleQuery is a narrow interface for reading and modifying a DataTable.
// It holds a root lock of the table's Master until Released, so that rows
// it returns remain readable.
type SimpleQuery struct {
	t        *DataTable
	released bool
}

// NewSimpleQuery returns a SimpleQuery of |t|, holding a root lock.
func NewSimpleQuery(t *DataTable) *SimpleQuery {
	t.master.AddRootLock()
	return &SimpleQuery{t: t}
}

// Table queried by the SimpleQuery.
func (q *SimpleQuery) Table() *DataTable { return q.t }

// RowEnumeration returns the visible rows of the table.
func (q *SimpleQuery) RowEnumeration() []int { return q.t.Rows() }

// Get the cell at |column| and |row|.
func (q *SimpleQuery) Get(column, row int) (cell.Cell, error) { return q.t.CellAt(column, row) }

// SelectIndexesEqual returns the rows whose |column| equals |value|, in
// the order of the column's Scheme.
func (q *SimpleQuery) SelectIndexesEqual(column int, value cell.Cell) ([]int, error) {
	var s, err = SchemeOf(q.t, column)
	if err != nil {
		return nil, err
	}
	return scheme.SelectEqual(s, value)
}

// SelectIndexesEqualPair returns rows whose |c1| equals |v1| and whose |c2|
// equals |v2|, in the order of the Scheme of |c1|.
func (q *SimpleQuery) SelectIndexesEqualPair(c1 int, v1 cell.Cell, c2 int, v2 cell.Cell) ([]int, error) {
	var rows, err = q.SelectIndexesEqual(c1, v1)
	if err != nil {
		return nil, err
	}
	var out = rows[:0]
	for _, row := range rows {
		var c, err = q.t.CellAt(c2, row)
		if err != nil {
			return nil, err
		}
		if cmp, err := cell.Compare(c, v2); err != nil {
			return nil, err
		} else if cmp == 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

// AddRow adds |r| to the table, returning its row ID.
func (q *SimpleQuery) AddRow(r *RowData) (int, error) { return q.t.AddRow(r) }

// RemoveRow removes |row| from the table.
func (q *SimpleQuery) RemoveRow(row int) error { return q.t.RemoveRow(row) }

// DeleteRows removes each of |rows| from the table.
func (q *SimpleQuery) DeleteRows(rows []int) error {
	for _, row := range rows {
		if err := q.t.RemoveRow(row); err != nil {
			return errors.WithMessagef(err, "deleting row %d", row)
		}
	}
	return nil
}

// Release the SimpleQuery's root lock. It's safe to call more than once.
func (q *SimpleQuery) Release() {
	if !q.released {
		q.released = true
		q.t.master.RemoveRootLock()
	}
}
