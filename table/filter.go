package table

import (
	"go.tabledb.dev/core/cell"
	"go.tabledb.dev/core/scheme"
)

// FilterTable passes rows and columns through to its parent, and caches
// the Schemes it obtains from it.
type FilterTable struct {
	parent  Table
	schemes []scheme.Scheme
}

var _ Table = (*FilterTable)(nil)

// NewFilterTable returns a FilterTable of |parent|.
func NewFilterTable(parent Table) *FilterTable {
	return &FilterTable{
		parent:  parent,
		schemes: make([]scheme.Scheme, parent.ColumnCount()),
	}
}

// Parent of the FilterTable.
func (t *FilterTable) Parent() Table { return t.parent }

func (t *FilterTable) RowCount() int                   { return t.parent.RowCount() }
func (t *FilterTable) Rows() []int                     { return t.parent.Rows() }
func (t *FilterTable) ColumnCount() int                { return t.parent.ColumnCount() }
func (t *FilterTable) ColumnName(column int) string    { return t.parent.ColumnName(column) }
func (t *FilterTable) ColumnKind(column int) cell.Kind { return t.parent.ColumnKind(column) }

func (t *FilterTable) CellAt(column, row int) (cell.Cell, error) {
	return t.parent.CellAt(column, row)
}

func (t *FilterTable) SetToRowTableDomain(column int, rows []int, ancestor scheme.Table) ([]int, error) {
	if ancestor == scheme.Table(t) {
		return rows, nil
	}
	return t.parent.SetToRowTableDomain(column, rows, ancestor)
}

// SchemeFor fetches and caches the parent's Scheme of |column| in the
// FilterTable's domain. Other requesters are given its subset.
func (t *FilterTable) SchemeFor(column, originalColumn int, requester scheme.Table) (scheme.Scheme, error) {
	if err := checkColumn(t, column); err != nil {
		return nil, err
	}
	var s = t.schemes[column]
	if s == nil {
		var err error
		if s, err = t.parent.SchemeFor(column, column, t); err != nil {
			return nil, err
		}
		t.schemes[column] = s
	}
	if requester == scheme.Table(t) {
		return s, nil
	}
	return s.Subset(requester, originalColumn)
}
