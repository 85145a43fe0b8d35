package scheme

import (
	"sort"

	"go.tabledb.dev/core/cell"
)

// BlindSearch is a Scheme which maintains no ordering. Every query reads
// the column cell of every row of the Table, and sorts. It's appropriate
// only for tables or columns of small domains.
type BlindSearch struct {
	mutability
	table  Table
	column int
}

// NewBlindSearch returns a mutable BlindSearch of |table|'s |column|.
func NewBlindSearch(table Table, column int) *BlindSearch {
	return &BlindSearch{table: table, column: column}
}

func (s *BlindSearch) Table() Table { return s.table }
func (s *BlindSearch) Column() int  { return s.column }

// Insert is a no-op, as BlindSearch reads the Table upon each query.
func (s *BlindSearch) Insert(int) error { return s.checkMutable() }

// Remove is a no-op, as BlindSearch reads the Table upon each query.
func (s *BlindSearch) Remove(int) error { return s.checkMutable() }

// SelectAll sorts all rows of the Table. Rows of equal value retain their
// enumeration order.
func (s *BlindSearch) SelectAll() ([]int, error) {
	var rows = s.table.Rows()
	var cells, err = s.readCells(rows)
	if err != nil {
		return nil, err
	}
	var perm = make([]int, len(rows))
	for i := range perm {
		perm[i] = i
	}

	var cmpErr error
	sort.SliceStable(perm, func(i, j int) bool {
		var c, err = cell.Compare(cells[perm[i]], cells[perm[j]])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return c < 0
	})
	if cmpErr != nil {
		return nil, cmpErr
	}

	var out = make([]int, len(perm))
	for i, p := range perm {
		out[i] = rows[p]
	}
	return out, nil
}

// SelectRange scans the Table once, testing each row against |ranges| in
// turn. The first Range to match a row selects it, and selected rows are
// binary-inserted into the ordered result.
func (s *BlindSearch) SelectRange(ranges ...Range) ([]int, error) {
	var rs = resolver{s: s}
	var checks, err = rs.resolveAll(ranges)
	if err != nil {
		return nil, err
	}
	var out sortedRows

	for _, row := range s.table.Rows() {
		var c, err = s.table.CellAt(s.column, row)
		if err != nil {
			return nil, err
		}
		for _, r := range checks {
			if r.empty() {
				continue
			}
			var ok, err = r.contains(c)
			if err != nil {
				return nil, err
			} else if ok {
				if err = out.insert(row, c); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	return out.rows, nil
}

// Subset returns a frozen BlindSearch of |table|, which sorts anew upon each query.
func (s *BlindSearch) Subset(table Table, column int) (Scheme, error) {
	var out = NewBlindSearch(table, column)
	out.Freeze()
	return out, nil
}

// Copy returns a BlindSearch of |table|.
func (s *BlindSearch) Copy(table Table, frozen bool) (Scheme, error) {
	var out = NewBlindSearch(table, s.column)
	out.frozen = frozen
	return out, nil
}

func (s *BlindSearch) readCells(rows []int) ([]cell.Cell, error) {
	var cells = make([]cell.Cell, len(rows))
	for i, row := range rows {
		var err error
		if cells[i], err = s.table.CellAt(s.column, row); err != nil {
			return nil, err
		}
	}
	return cells, nil
}

// sortedRows is a binary-insertion sorted set of rows and their cells.
type sortedRows struct {
	rows  []int
	cells []cell.Cell
}

// insert |row| having cell |c| after all rows of equal value.
func (s *sortedRows) insert(row int, c cell.Cell) error {
	var ind, err = highestSearch(s.cells, c)
	if err != nil {
		return err
	}
	s.rows = append(s.rows, 0)
	copy(s.rows[ind+1:], s.rows[ind:])
	s.rows[ind] = row

	s.cells = append(s.cells, cell.Cell{})
	copy(s.cells[ind+1:], s.cells[ind:])
	s.cells[ind] = c
	return nil
}

// highestSearch returns the index of the first element of sorted |cells|
// which orders after |c|: the position at which |c| is inserted after all
// elements of equal value.
func highestSearch(cells []cell.Cell, c cell.Cell) (int, error) {
	var cmpErr error
	var ind = sort.Search(len(cells), func(i int) bool {
		var cmp, err = cell.Compare(cells[i], c)
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return cmp > 0
	})
	return ind, cmpErr
}
