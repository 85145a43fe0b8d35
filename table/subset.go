package table

import (
	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/scheme"
)

// SubsetColumnTable projects columns of its parent, optionally renaming
// them. Rows pass through unchanged.
type SubsetColumnTable struct {
	parent     Table
	columnMap  []int // Subset column => parent column.
	reverseMap []int // Parent column => subset column, or -1.
	aliases    []string
	schemes    []scheme.Scheme
}

var _ RootTable = (*SubsetColumnTable)(nil)

// NewSubsetColumnTable returns a SubsetColumnTable of |parent|, where
// |columnMap[i]| is the parent column of column |i|. If |aliases| is
// non-empty, it names each column.
func NewSubsetColumnTable(parent Table, columnMap []int, aliases []string) (*SubsetColumnTable, error) {
	if len(aliases) != 0 && len(aliases) != len(columnMap) {
		return nil, errors.Errorf("have %d aliases but %d columns", len(aliases), len(columnMap))
	}
	var t = &SubsetColumnTable{
		parent:     parent,
		columnMap:  columnMap,
		reverseMap: make([]int, parent.ColumnCount()),
		aliases:    aliases,
		schemes:    make([]scheme.Scheme, len(columnMap)),
	}
	for i := range t.reverseMap {
		t.reverseMap[i] = -1
	}
	for i, c := range columnMap {
		if c < 0 || c >= parent.ColumnCount() {
			return nil, errors.Errorf("column %d maps to parent column %d, out of range (of %d)",
				i, c, parent.ColumnCount())
		}
		t.reverseMap[c] = i
	}
	return t, nil
}

// Parent of the SubsetColumnTable.
func (t *SubsetColumnTable) Parent() Table { return t.parent }

// ReverseColumn returns the column mapping to |parentColumn|, or -1.
func (t *SubsetColumnTable) ReverseColumn(parentColumn int) int { return t.reverseMap[parentColumn] }

func (t *SubsetColumnTable) RowCount() int    { return t.parent.RowCount() }
func (t *SubsetColumnTable) Rows() []int      { return t.parent.Rows() }
func (t *SubsetColumnTable) ColumnCount() int { return len(t.columnMap) }

func (t *SubsetColumnTable) ColumnName(column int) string {
	if len(t.aliases) != 0 {
		return t.aliases[column]
	}
	return t.parent.ColumnName(t.columnMap[column])
}

func (t *SubsetColumnTable) ColumnKind(column int) cell.Kind {
	return t.parent.ColumnKind(t.columnMap[column])
}

func (t *SubsetColumnTable) CellAt(column, row int) (cell.Cell, error) {
	if err := checkColumn(t, column); err != nil {
		return cell.Cell{}, err
	}
	return t.parent.CellAt(t.columnMap[column], row)
}

func (t *SubsetColumnTable) SetToRowTableDomain(column int, rows []int, ancestor scheme.Table) ([]int, error) {
	if ancestor == scheme.Table(t) {
		return rows, nil
	} else if err := checkColumn(t, column); err != nil {
		return nil, err
	}
	return t.parent.SetToRowTableDomain(t.columnMap[column], rows, ancestor)
}

// SchemeFor returns a Scheme of |column| in the domain of |requester|,
// delegating to the parent's mapped column.
func (t *SubsetColumnTable) SchemeFor(column, originalColumn int, requester scheme.Table) (scheme.Scheme, error) {
	if err := checkColumn(t, column); err != nil {
		return nil, err
	} else if requester != scheme.Table(t) {
		return t.parent.SchemeFor(t.columnMap[column], originalColumn, requester)
	} else if s := t.schemes[column]; s != nil {
		return s, nil
	}
	var s, err = t.parent.SchemeFor(t.columnMap[column], column, t)
	if err != nil {
		return nil, err
	}
	t.schemes[column] = s
	return s, nil
}

// TypeEquals returns whether |other| is this same SubsetColumnTable.
// Structural equivalence is not considered.
func (t *SubsetColumnTable) TypeEquals(other RootTable) bool { return other == RootTable(t) }
