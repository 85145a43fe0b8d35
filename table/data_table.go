package table

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/journal"
	"go.tabledb.dev/core/rowstore"
	"go.tabledb.dev/core/scheme"
)

// DataTable is a transaction against a Master. It observes the rows
// committed as of its beginning, plus its own changes, which are recorded
// by its Journal and applied to the Master upon Commit. A DataTable is used
// by a single writer and is not safe for concurrent mutation.
type DataTable struct {
	master   *Master
	snapshot uint64
	visible  *roaring.Bitmap
	journal  *journal.Journal
	schemes  []scheme.Scheme
	done     atomic.Bool // Stored while holding the Master mutex.
}

var _ RootTable = (*DataTable)(nil)

// Master of the DataTable.
func (t *DataTable) Master() *Master { return t.master }

// Journal of the DataTable's changes.
func (t *DataTable) Journal() *journal.Journal { return t.journal }

// Done returns whether the DataTable was committed or rolled back.
func (t *DataTable) Done() bool { return t.done.Load() }

// RowCount returns the number of visible rows.
func (t *DataTable) RowCount() int { return int(t.visible.GetCardinality()) }

// Rows returns visible rows in ascending order.
func (t *DataTable) Rows() []int { return toInts(t.visible) }

// IsRowVisible returns whether |row| is visible to the DataTable.
func (t *DataTable) IsRowVisible(row int) bool {
	return row >= 0 && t.visible.Contains(uint32(row))
}

// CellAt returns the cell at |column| and |row|.
func (t *DataTable) CellAt(column, row int) (cell.Cell, error) {
	if err := checkColumn(t, column); err != nil {
		return cell.Cell{}, err
	}
	return t.master.cellAt(column, row)
}

func (t *DataTable) ColumnCount() int                { return len(t.master.def.Columns) }
func (t *DataTable) ColumnName(column int) string    { return t.master.def.Columns[column].Name }
func (t *DataTable) ColumnKind(column int) cell.Kind { return t.master.def.Columns[column].Kind }

// SetToRowTableDomain returns |rows|, as the DataTable has no ancestors.
func (t *DataTable) SetToRowTableDomain(_ int, rows []int, ancestor scheme.Table) ([]int, error) {
	if ancestor != scheme.Table(t) {
		return nil, ErrNotAncestor
	}
	return rows, nil
}

// SchemeFor returns the DataTable's Scheme of |column| if |requester| is
// the DataTable, and otherwise its subset in the row domain of |requester|.
func (t *DataTable) SchemeFor(column, originalColumn int, requester scheme.Table) (scheme.Scheme, error) {
	if err := checkColumn(t, column); err != nil {
		return nil, err
	} else if requester == scheme.Table(t) {
		return t.schemes[column], nil
	}
	return t.schemes[column].Subset(requester, originalColumn)
}

// TypeEquals returns whether |other| is this DataTable.
func (t *DataTable) TypeEquals(other RootTable) bool { return other == RootTable(t) }

// AddRow adds |r| as a new row, returning its row ID.
func (t *DataTable) AddRow(r *RowData) (int, error) {
	if t.done.Load() {
		return 0, ErrTxnDone
	} else if len(r.Cells()) != t.ColumnCount() {
		return 0, errors.Errorf("row has %d columns, but table %s has %d",
			len(r.Cells()), t.master.Name(), t.ColumnCount())
	} else if err := r.Validate(); err != nil {
		return 0, err
	}

	var b, err = t.master.enc.AppendRow(nil, r.Cells())
	if err != nil {
		return 0, errors.WithMessage(err, "encoding row")
	}
	row, err := t.master.writeRow(b)
	if err != nil {
		return 0, err
	}
	t.journal.Add(row)
	t.visible.Add(uint32(row))

	for i, s := range t.schemes {
		if err = s.Insert(row); err != nil {
			return 0, errors.WithMessagef(err, "indexing column %d", i)
		}
	}
	return row, nil
}

// RemoveRow removes visible |row|.
func (t *DataTable) RemoveRow(row int) error {
	if t.done.Load() {
		return ErrTxnDone
	} else if !t.IsRowVisible(row) {
		return errors.WithMessagef(rowstore.ErrDeletedRow, "row %d is not visible", row)
	} else if t.master.store.ReadOnly() {
		return rowstore.ErrReadOnly
	}

	for i, s := range t.schemes {
		if err := s.Remove(row); err != nil {
			return errors.WithMessagef(err, "unindexing column %d", i)
		}
	}
	t.visible.Remove(uint32(row))
	t.journal.Remove(row)
	return nil
}

// Commit the DataTable's changes to its Master. If a transaction which
// committed after this one began removed a row which this one also
// removed, journal.ErrRowRemoveClash is returned and the DataTable is
// rolled back.
func (t *DataTable) Commit() error {
	if t.done.Load() {
		return ErrTxnDone
	}
	return t.master.commit(t)
}

// Rollback discards the DataTable's changes.
func (t *DataTable) Rollback() error {
	if t.done.Load() {
		return ErrTxnDone
	}
	t.master.rollback(t)
	return nil
}
