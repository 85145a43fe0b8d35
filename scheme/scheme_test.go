package scheme

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
	gc "gopkg.in/check.v1"
)

type SchemeSuite struct{}

func (s *SchemeSuite) TestBlindSearchIsStable(c *gc.C) {
	var tbl = newTestTable(strs("b", "a", "c", "a", "b", "a"))
	var bs = NewBlindSearch(tbl, 0)

	for i := 0; i != 3; i++ {
		var rows, err = bs.SelectAll()
		c.Assert(err, gc.IsNil)
		c.Check(rows, gc.DeepEquals, []int{1, 3, 5, 0, 4, 2})
	}
	var rows, err = SelectEqual(bs, cell.String("a"))
	c.Assert(err, gc.IsNil)
	c.Check(rows, gc.DeepEquals, []int{1, 3, 5})
}

func (s *SchemeSuite) TestInsertSearchOrdersEqualValuesByInsertion(c *gc.C) {
	var tbl = newTestTable(strs("b", "a", "c", "a", "b", "a"))
	var is, err = Build(InsertSearchName, tbl, 0)
	c.Assert(err, gc.IsNil)

	rows, err := is.SelectAll()
	c.Assert(err, gc.IsNil)
	c.Check(rows, gc.DeepEquals, []int{1, 3, 5, 0, 4, 2})

	c.Check(is.Remove(3), gc.IsNil)
	rows, _ = is.SelectAll()
	c.Check(rows, gc.DeepEquals, []int{1, 5, 0, 4, 2})

	c.Check(is.Remove(3), gc.ErrorMatches, `row 3 \(value a\) is not indexed`)
}

func (s *SchemeSuite) TestSelectHelpers(c *gc.C) {
	// Rows:         0    1     2    3    4     5    6
	var col = []cell.Cell{
		cell.Int(5), cell.Null(cell.NUMERIC), cell.Int(1), cell.Int(9),
		cell.Int(5), cell.Int(1), cell.Null(cell.NUMERIC),
	}
	var tbl = newTestTable(col)
	var five, one, nine = cell.Int(5), cell.Int(1), cell.Int(9)

	for _, name := range []string{InsertSearchName, BlindSearchName} {
		var sch, err = Build(name, tbl, 0)
		c.Assert(err, gc.IsNil)

		var check = func(rows []int, err error, expect ...int) {
			c.Assert(err, gc.IsNil)
			if len(expect) == 0 {
				c.Check(rows, gc.HasLen, 0, gc.Commentf("scheme %s", name))
			} else {
				c.Check(rows, gc.DeepEquals, expect, gc.Commentf("scheme %s", name))
			}
		}
		var rows []int

		rows, err = sch.SelectAll()
		check(rows, err, 1, 6, 2, 5, 0, 4, 3)
		rows, err = SelectFirst(sch)
		check(rows, err, 1, 6)
		rows, err = SelectNotFirst(sch)
		check(rows, err, 2, 5, 0, 4, 3)
		rows, err = SelectLast(sch)
		check(rows, err, 3)
		rows, err = SelectNotLast(sch)
		check(rows, err, 1, 6, 2, 5, 0, 4)
		rows, err = SelectAllNonNull(sch)
		check(rows, err, 2, 5, 0, 4, 3)
		rows, err = SelectEqual(sch, five)
		check(rows, err, 0, 4)
		rows, err = SelectEqual(sch, cell.Null(cell.NUMERIC))
		check(rows, err, 1, 6)
		rows, err = SelectNotEqual(sch, five)
		check(rows, err, 2, 5, 3)
		rows, err = SelectGreater(sch, one)
		check(rows, err, 0, 4, 3)
		rows, err = SelectLess(sch, five)
		check(rows, err, 2, 5)
		rows, err = SelectGreaterOrEqual(sch, five)
		check(rows, err, 0, 4, 3)
		rows, err = SelectLessOrEqual(sch, five)
		check(rows, err, 2, 5, 0, 4)
		rows, err = SelectBetween(sch, one, nine)
		check(rows, err, 2, 5, 0, 4)
		rows, err = SelectBetween(sch, nine, one)
		check(rows, err)
		rows, err = SelectEqual(sch, cell.Int(7))
		check(rows, err)

		// Multiple ranges are a union.
		rows, err = sch.SelectRange(
			Range{FirstValue, FirstInSet, LastValue, FirstInSet},
			Range{FirstValue, Value(five), LastValue, LastInSet},
		)
		check(rows, err, 1, 6, 0, 4, 3)
	}
}

func (s *SchemeSuite) TestEmptyTableSentinels(c *gc.C) {
	var tbl = newTestTable(nil)

	for _, name := range []string{InsertSearchName, BlindSearchName} {
		var sch, err = New(name, tbl, 0)
		c.Assert(err, gc.IsNil)

		rows, err := SelectFirst(sch)
		c.Check(err, gc.IsNil)
		c.Check(rows, gc.HasLen, 0)
		rows, err = SelectAllNonNull(sch)
		c.Check(err, gc.IsNil)
		c.Check(rows, gc.HasLen, 0)
	}
	var _, err = New("hash", tbl, 0)
	c.Check(err, gc.ErrorMatches, `unknown scheme "hash"`)
}

func (s *SchemeSuite) TestIncomparableBounds(c *gc.C) {
	var tbl = newTestTable(strs("a", "b"))

	for _, name := range []string{InsertSearchName, BlindSearchName} {
		var sch, err = Build(name, tbl, 0)
		c.Assert(err, gc.IsNil)

		_, err = SelectEqual(sch, cell.Int(1))
		c.Check(errors.Cause(err), gc.Equals, cell.ErrIncomparableTypes)
	}
	var sch = NewBlindSearch(tbl, 0)
	var _, err = sch.SelectRange(Range{StartFlag: LastValue, Start: FirstInSet, EndFlag: LastValue, End: LastInSet})
	c.Check(err, gc.ErrorMatches, "invalid start flag 3")
}

func (s *SchemeSuite) TestFrozenSchemesRejectMutation(c *gc.C) {
	var tbl = newTestTable(strs("a", "b"))

	for _, name := range []string{InsertSearchName, BlindSearchName} {
		var sch, err = Build(name, tbl, 0)
		c.Assert(err, gc.IsNil)
		c.Check(sch.Frozen(), gc.Equals, false)

		sch.Freeze()
		c.Check(sch.Insert(0), gc.Equals, ErrSchemeFrozen)
		c.Check(sch.Remove(0), gc.Equals, ErrSchemeFrozen)

		cp, err := sch.Copy(tbl, false)
		c.Assert(err, gc.IsNil)
		c.Check(cp.Frozen(), gc.Equals, false)

		sub, err := sch.Subset(newMapTable(tbl, 1, 0), 0)
		c.Assert(err, gc.IsNil)
		c.Check(sub.Frozen(), gc.Equals, true)
		c.Check(sub.Insert(0), gc.Equals, ErrSchemeFrozen)
	}
}

func (s *SchemeSuite) TestSubsetOfDerivedTable(c *gc.C) {
	var tbl = newTestTable(strs("d", "b", "a", "c"))
	// Derived rows map to parent rows, including a repeated parent row.
	var derived = newMapTable(tbl, 3, 0, 2, 0, 1)

	for _, name := range []string{InsertSearchName, BlindSearchName} {
		var sch, err = Build(name, tbl, 0)
		c.Assert(err, gc.IsNil)

		sub, err := sch.Subset(derived, 0)
		c.Assert(err, gc.IsNil)
		c.Check(sub.Table(), gc.Equals, Table(derived))

		rows, err := sub.SelectAll()
		c.Assert(err, gc.IsNil)
		// Values of derived rows 0..4 are c, d, a, d, b.
		c.Check(rows, gc.DeepEquals, []int{2, 4, 0, 1, 3})

		rows, err = SelectEqual(sub, cell.String("d"))
		c.Assert(err, gc.IsNil)
		c.Check(rows, gc.DeepEquals, []int{1, 3})
	}
}

func (s *SchemeSuite) TestSentinelsResolveOncePerCall(c *gc.C) {
	var tbl = newTestTable(strs("b", "a", "c"))
	var sch = NewBlindSearch(tbl, 0)

	tbl.rowsCalls = 0
	var rows, err = sch.SelectRange(
		Range{FirstValue, FirstInSet, LastValue, FirstInSet},
		Range{FirstValue, LastInSet, LastValue, LastInSet},
	)
	c.Assert(err, gc.IsNil)
	c.Check(rows, gc.DeepEquals, []int{1, 2})
	// Once for the sentinel SelectAll, and once for the scan.
	c.Check(tbl.rowsCalls, gc.Equals, 2)

	_, err = SelectFirst(sch)
	c.Assert(err, gc.IsNil)
	c.Check(tbl.rowsCalls, gc.Equals, 4)
}

func (s *SchemeSuite) TestMarshalRoundTrip(c *gc.C) {
	var tbl = newTestTable(strs("q", "w", "e", "r", "t", "y"))
	var sch, err = Build(InsertSearchName, tbl, 0)
	c.Assert(err, gc.IsNil)

	var b = sch.(*InsertSearch).Marshal()
	out, err := UnmarshalInsertSearch(tbl, 0, b)
	c.Assert(err, gc.IsNil)
	c.Check(out.Frozen(), gc.Equals, false)

	expect, _ := sch.SelectAll()
	rows, _ := out.SelectAll()
	c.Check(rows, gc.DeepEquals, expect)

	_, err = UnmarshalInsertSearch(tbl, 0, b[:len(b)-1])
	c.Check(err, gc.NotNil)
	_, err = UnmarshalInsertSearch(tbl, 0, append(b, 0x01))
	c.Check(err, gc.ErrorMatches, "unexpected 1 trailing bytes")
}

// Insert and Blind schemes over identical data, subject to identical
// mutations, must select identical row sets for identical ranges.
func (s *SchemeSuite) TestInsertAndBlindSearchAgree(c *gc.C) {
	var rnd = rand.New(rand.NewSource(0x5eed))
	var tbl = newTestTable(nil)
	var is = NewInsertSearch(tbl, 0)
	var bs = NewBlindSearch(tbl, 0)

	var randomCell = func() cell.Cell {
		if rnd.Intn(8) == 0 {
			return cell.Null(cell.NUMERIC)
		}
		return cell.Int(int64(rnd.Intn(20)))
	}
	var randomBound = func() Bound {
		switch rnd.Intn(6) {
		case 0:
			return FirstInSet
		case 1:
			return LastInSet
		case 2:
			return NullValue
		default:
			return Value(cell.Int(int64(rnd.Intn(22) - 1)))
		}
	}

	for step := 0; step != 400; step++ {
		if live := tbl.Rows(); len(live) != 0 && rnd.Intn(3) == 0 {
			var row = live[rnd.Intn(len(live))]
			c.Assert(is.Remove(row), gc.IsNil)
			c.Assert(bs.Remove(row), gc.IsNil)
			tbl.remove(row)
		} else {
			var row = tbl.add(randomCell())
			c.Assert(is.Insert(row), gc.IsNil)
			c.Assert(bs.Insert(row), gc.IsNil)
		}

		var r = Range{FirstValue, randomBound(), LastValue, randomBound()}
		if rnd.Intn(2) == 0 {
			r.StartFlag = AfterLastValue
		}
		if rnd.Intn(2) == 0 {
			r.EndFlag = BeforeFirstValue
		}
		var a, err = is.SelectRange(r)
		c.Assert(err, gc.IsNil)
		b, err := bs.SelectRange(r)
		c.Assert(err, gc.IsNil)

		if len(a) == 0 {
			c.Assert(b, gc.HasLen, 0, gc.Commentf("range %s", r))
		} else {
			c.Assert(a, gc.DeepEquals, b, gc.Commentf("range %s", r))
		}
	}
}

// testTable is a single-column Table of in-memory cells.
type testTable struct {
	cells     []cell.Cell
	removed   map[int]bool
	rowsCalls int
}

func newTestTable(cells []cell.Cell) *testTable {
	return &testTable{cells: cells, removed: make(map[int]bool)}
}

func (t *testTable) add(c cell.Cell) int {
	t.cells = append(t.cells, c)
	return len(t.cells) - 1
}

func (t *testTable) remove(row int) { t.removed[row] = true }

func (t *testTable) RowCount() int { return len(t.cells) - len(t.removed) }

func (t *testTable) Rows() []int {
	t.rowsCalls++
	var out []int
	for i := range t.cells {
		if !t.removed[i] {
			out = append(out, i)
		}
	}
	return out
}

func (t *testTable) CellAt(column, row int) (cell.Cell, error) {
	if column != 0 || row < 0 || row >= len(t.cells) {
		return cell.Cell{}, errors.Errorf("no cell at (%d, %d)", column, row)
	}
	return t.cells[row], nil
}

func (t *testTable) SetToRowTableDomain(_ int, rows []int, ancestor Table) ([]int, error) {
	if ancestor != Table(t) {
		return nil, errors.New("not an ancestor")
	}
	return rows, nil
}

// mapTable derives from a parent Table by mapping each of its rows to a parent row.
type mapTable struct {
	parent Table
	rows   []int
}

func newMapTable(parent Table, rows ...int) *mapTable { return &mapTable{parent: parent, rows: rows} }

func (t *mapTable) RowCount() int { return len(t.rows) }

func (t *mapTable) Rows() []int {
	var out = make([]int, len(t.rows))
	for i := range out {
		out[i] = i
	}
	return out
}

func (t *mapTable) CellAt(column, row int) (cell.Cell, error) {
	return t.parent.CellAt(column, t.rows[row])
}

func (t *mapTable) SetToRowTableDomain(column int, rows []int, ancestor Table) ([]int, error) {
	if ancestor == Table(t) {
		return rows, nil
	}
	for i, r := range rows {
		rows[i] = t.rows[r]
	}
	return t.parent.SetToRowTableDomain(column, rows, ancestor)
}

func strs(v ...string) []cell.Cell {
	var out = make([]cell.Cell, len(v))
	for i, s := range v {
		out[i] = cell.String(s)
	}
	return out
}

var _ = gc.Suite(&SchemeSuite{})

func Test(t *testing.T) { gc.TestingT(t) }
