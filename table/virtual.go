package table

import (
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/scheme"
)

// VirtualTable derives from one or more parent Tables by row indirection:
// each parent has a row map from rows of the VirtualTable to rows of the
// parent. Columns of the VirtualTable are the concatenation of the columns
// of its parents. A VirtualTable isn't safe for concurrent use.
type VirtualTable struct {
	parents      []Table
	rowMaps      [][]int
	columnTable  []int // Parent of each column.
	columnFilter []int // Column of the parent.
	schemes      []scheme.Scheme
	sortedColumn int
}

var _ Table = (*VirtualTable)(nil)

// NewVirtualTable returns a VirtualTable of |parents|, where |rowMaps[i]|
// maps rows of the VirtualTable to rows of |parents[i]|. All row maps must
// have equal length.
func NewVirtualTable(parents []Table, rowMaps [][]int) (*VirtualTable, error) {
	if len(parents) == 0 {
		return nil, errors.New("expected at least one parent")
	} else if len(parents) != len(rowMaps) {
		return nil, errors.Errorf("have %d parents but %d row maps", len(parents), len(rowMaps))
	}
	var t = &VirtualTable{
		parents:      parents,
		rowMaps:      rowMaps,
		sortedColumn: -1,
	}
	for p, parent := range parents {
		if len(rowMaps[p]) != len(rowMaps[0]) {
			return nil, errors.Errorf("row map %d has length %d, not %d", p, len(rowMaps[p]), len(rowMaps[0]))
		}
		for c, n := 0, parent.ColumnCount(); c != n; c++ {
			t.columnTable = append(t.columnTable, p)
			t.columnFilter = append(t.columnFilter, c)
		}
	}
	t.schemes = make([]scheme.Scheme, len(t.columnTable))
	return t, nil
}

// Select returns a VirtualTable of |rows| of |parent|.
func Select(parent Table, rows []int) (*VirtualTable, error) {
	return NewVirtualTable([]Table{parent}, [][]int{rows})
}

// CrossJoin returns a VirtualTable of every combination of a row of |left|
// and a row of |right|, ordered on |left| and then |right|.
func CrossJoin(left, right Table) (*VirtualTable, error) {
	var lr, rr = left.Rows(), right.Rows()
	var lm, rm = make([]int, 0, len(lr)*len(rr)), make([]int, 0, len(lr)*len(rr))

	for _, l := range lr {
		for _, r := range rr {
			lm, rm = append(lm, l), append(rm, r)
		}
	}
	return NewVirtualTable([]Table{left, right}, [][]int{lm, rm})
}

// Parents of the VirtualTable.
func (t *VirtualTable) Parents() []Table { return t.parents }

func (t *VirtualTable) RowCount() int { return len(t.rowMaps[0]) }
func (t *VirtualTable) Rows() []int   { return sequence(len(t.rowMaps[0])) }

func (t *VirtualTable) ColumnCount() int { return len(t.columnTable) }

func (t *VirtualTable) ColumnName(column int) string {
	return t.parents[t.columnTable[column]].ColumnName(t.columnFilter[column])
}

func (t *VirtualTable) ColumnKind(column int) cell.Kind {
	return t.parents[t.columnTable[column]].ColumnKind(t.columnFilter[column])
}

// CellAt returns the cell of the parent row mapped from |row|.
func (t *VirtualTable) CellAt(column, row int) (cell.Cell, error) {
	if err := checkColumn(t, column); err != nil {
		return cell.Cell{}, err
	} else if row < 0 || row >= t.RowCount() {
		return cell.Cell{}, errors.Errorf("row %d out of range (of %d)", row, t.RowCount())
	}
	var p = t.columnTable[column]
	return t.parents[p].CellAt(t.columnFilter[column], t.rowMaps[p][row])
}

// ResolvedRowSet maps |rows| of the VirtualTable to rows of its |parent|th parent.
func (t *VirtualTable) ResolvedRowSet(parent int, rows []int) ([]int, error) {
	if parent < 0 || parent >= len(t.parents) {
		return nil, errors.Errorf("parent %d out of range (of %d)", parent, len(t.parents))
	}
	var out = make([]int, len(rows))
	for i, row := range rows {
		if row < 0 || row >= t.RowCount() {
			return nil, errors.Errorf("row %d out of range (of %d)", row, t.RowCount())
		}
		out[i] = t.rowMaps[parent][row]
	}
	return out, nil
}

// SetToRowTableDomain maps |rows| through the parent of |column| and on to
// |ancestor|.
func (t *VirtualTable) SetToRowTableDomain(column int, rows []int, ancestor scheme.Table) ([]int, error) {
	if ancestor == scheme.Table(t) {
		return rows, nil
	} else if err := checkColumn(t, column); err != nil {
		return nil, err
	}
	var p = t.columnTable[column]
	var mapped, err = t.ResolvedRowSet(p, rows)
	if err != nil {
		return nil, err
	}
	return t.parents[p].SetToRowTableDomain(t.columnFilter[column], mapped, ancestor)
}

// SortedAgainst declares that rows of the VirtualTable are already in
// the order of |column|. Its Scheme of |column| is then taken directly
// from row order, rather than from its parent.
func (t *VirtualTable) SortedAgainst(column int) error {
	if err := checkColumn(t, column); err != nil {
		return err
	}
	if t.sortedColumn != -1 {
		t.schemes[t.sortedColumn] = nil
	}
	t.sortedColumn, t.schemes[column] = column, nil
	return nil
}

// SchemeFor returns a Scheme of |column| in the domain of |requester|. The
// VirtualTable's own Schemes are subsets of its parents', and are cached.
// Requests of other tables are passed through to the parent.
func (t *VirtualTable) SchemeFor(column, originalColumn int, requester scheme.Table) (scheme.Scheme, error) {
	if err := checkColumn(t, column); err != nil {
		return nil, err
	}
	var p = t.columnTable[column]

	if requester == scheme.Table(t) {
		if s := t.schemes[column]; s != nil {
			return s, nil
		}
		var s scheme.Scheme
		var err error

		if column == t.sortedColumn {
			s = scheme.NewSortedInsertSearch(t, column, t.Rows())
		} else if s, err = t.parents[p].SchemeFor(t.columnFilter[column], column, t); err != nil {
			return nil, err
		}
		t.schemes[column] = s
		return s, nil
	}

	if column == t.sortedColumn {
		var own, err = t.SchemeFor(column, column, t)
		if err != nil {
			return nil, err
		}
		return own.Subset(requester, originalColumn)
	}
	return t.parents[p].SchemeFor(t.columnFilter[column], originalColumn, requester)
}
