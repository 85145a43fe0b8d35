package scheme

import (
	"sort"

	"github.com/jgraettinger/cockroach-encoding/encoding"
	"github.com/pkg/errors"
)

// InsertSearch is a Scheme which maintains a list of the Table's rows sorted
// on column value. Insert and Remove binary-search the list, reading cells
// from the Table as they go, and queries are O(log n + k).
type InsertSearch struct {
	mutability
	table  Table
	column int
	list   []int
}

// NewInsertSearch returns an empty and mutable InsertSearch of |table|'s |column|.
func NewInsertSearch(table Table, column int) *InsertSearch {
	return &InsertSearch{table: table, column: column}
}

// NewSortedInsertSearch returns a frozen InsertSearch of |table|'s |column|
// over |rows|, which must already be in column order.
func NewSortedInsertSearch(table Table, column int, rows []int) *InsertSearch {
	var s = &InsertSearch{table: table, column: column, list: rows}
	s.Freeze()
	return s
}

func (s *InsertSearch) Table() Table { return s.table }
func (s *InsertSearch) Column() int  { return s.column }

// Len returns the number of indexed rows.
func (s *InsertSearch) Len() int { return len(s.list) }

// Insert |row|, after all indexed rows of equal value.
func (s *InsertSearch) Insert(row int) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	var c, err = s.table.CellAt(s.column, row)
	if err != nil {
		return err
	}
	ind, err := s.search(resolved{value: c, null: c.IsNull()}, true)
	if err != nil {
		return err
	}
	s.list = append(s.list, 0)
	copy(s.list[ind+1:], s.list[ind:])
	s.list[ind] = row
	return nil
}

// Remove |row|, which must be indexed.
func (s *InsertSearch) Remove(row int) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	var c, err = s.table.CellAt(s.column, row)
	if err != nil {
		return err
	}
	var r = resolved{value: c, null: c.IsNull()}

	lo, err := s.search(r, false)
	if err != nil {
		return err
	}
	hi, err := s.search(r, true)
	if err != nil {
		return err
	}
	for i := lo; i != hi; i++ {
		if s.list[i] == row {
			s.list = append(s.list[:i], s.list[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("row %d (value %s) is not indexed", row, c)
}

// SelectAll returns a copy of the sorted row list.
func (s *InsertSearch) SelectAll() ([]int, error) {
	return append([]int(nil), s.list...), nil
}

// SelectRange returns the concatenation of each Range's contiguous span
// of the sorted row list.
func (s *InsertSearch) SelectRange(ranges ...Range) ([]int, error) {
	var rs = resolver{s: s}
	var checks, err = rs.resolveAll(ranges)
	if err != nil {
		return nil, err
	}
	var out []int

	for _, r := range checks {
		if r.empty() {
			continue
		}
		var begin, end int
		if begin, err = s.search(r.start, r.startFlag == AfterLastValue); err != nil {
			return nil, err
		}
		if end, err = s.search(r.end, r.endFlag == LastValue); err != nil {
			return nil, err
		}
		if begin < end {
			out = append(out, s.list[begin:end]...)
		}
	}
	return out, nil
}

// Subset returns a frozen InsertSearch of |table|'s |column|. Rows of
// |table| are mapped into the domain of this Scheme's Table, and the
// result is ordered by the position of the mapped row within this Scheme.
func (s *InsertSearch) Subset(table Table, column int) (Scheme, error) {
	var rows = table.Rows()
	var mapped, err = table.SetToRowTableDomain(column, append([]int(nil), rows...), s.table)
	if err != nil {
		return nil, errors.WithMessage(err, "mapping subset rows")
	}
	var byRow = make(map[int][]int, len(mapped))
	for i, r := range mapped {
		byRow[r] = append(byRow[r], rows[i])
	}

	var list = make([]int, 0, len(rows))
	for _, r := range s.list {
		list = append(list, byRow[r]...)
	}
	return NewSortedInsertSearch(table, column, list), nil
}

// Copy returns an InsertSearch of |table| over a copy of the sorted row list.
func (s *InsertSearch) Copy(table Table, frozen bool) (Scheme, error) {
	var out = &InsertSearch{table: table, column: s.column, list: append([]int(nil), s.list...)}
	out.frozen = frozen
	return out, nil
}

// search returns the index of the first row which orders after |r| (if
// |after|) or the first which does not order before it (otherwise).
func (s *InsertSearch) search(r resolved, after bool) (int, error) {
	var cmpErr error
	var ind = sort.Search(len(s.list), func(i int) bool {
		if cmpErr != nil {
			return true
		}
		var c, err = s.table.CellAt(s.column, s.list[i])
		if err != nil {
			cmpErr = err
			return true
		}
		cmp, err := r.compareTo(c)
		if err != nil {
			cmpErr = err
			return true
		}
		if after {
			return cmp > 0
		}
		return cmp >= 0
	})
	return ind, cmpErr
}

// Marshal the sorted row list of the InsertSearch.
func (s *InsertSearch) Marshal() []byte {
	var b = make([]byte, 0, 4+4*len(s.list))
	b = encoding.EncodeUvarintAscending(b, uint64(len(s.list)))
	for _, row := range s.list {
		b = encoding.EncodeUvarintAscending(b, uint64(row))
	}
	return b
}

// UnmarshalInsertSearch returns a mutable InsertSearch of |table|'s |column|
// over the sorted row list encoded in |b|.
func UnmarshalInsertSearch(table Table, column int, b []byte) (*InsertSearch, error) {
	var n, row uint64
	var err error

	if b, n, err = encoding.DecodeUvarintAscending(b); err != nil {
		return nil, errors.WithMessage(err, "decoding length")
	}
	var s = &InsertSearch{table: table, column: column, list: make([]int, 0, n)}

	for i := uint64(0); i != n; i++ {
		if b, row, err = encoding.DecodeUvarintAscending(b); err != nil {
			return nil, errors.WithMessagef(err, "decoding row %d", i)
		}
		s.list = append(s.list, int(row))
	}
	if len(b) != 0 {
		return nil, errors.Errorf("unexpected %d trailing bytes", len(b))
	}
	return s, nil
}
