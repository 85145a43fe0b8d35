package scheme

import "go.tabledb.dev/core/cell"

// SelectFirst selects rows having the first value of the Scheme's order.
func SelectFirst(s Scheme) ([]int, error) {
	return s.SelectRange(Range{FirstValue, FirstInSet, LastValue, FirstInSet})
}

// SelectNotFirst selects rows not having the first value of the Scheme's order.
func SelectNotFirst(s Scheme) ([]int, error) {
	return s.SelectRange(Range{AfterLastValue, FirstInSet, LastValue, LastInSet})
}

// SelectLast selects rows having the last value of the Scheme's order.
func SelectLast(s Scheme) ([]int, error) {
	return s.SelectRange(Range{FirstValue, LastInSet, LastValue, LastInSet})
}

// SelectNotLast selects rows not having the last value of the Scheme's order.
func SelectNotLast(s Scheme) ([]int, error) {
	return s.SelectRange(Range{FirstValue, FirstInSet, BeforeFirstValue, LastInSet})
}

// SelectAllNonNull selects rows having a non-null value.
func SelectAllNonNull(s Scheme) ([]int, error) {
	return s.SelectRange(Range{AfterLastValue, NullValue, LastValue, LastInSet})
}

// SelectEqual selects rows equal to |c|.
func SelectEqual(s Scheme, c cell.Cell) ([]int, error) {
	return s.SelectRange(Range{FirstValue, Value(c), LastValue, Value(c)})
}

// SelectNotEqual selects non-null rows not equal to |c|.
func SelectNotEqual(s Scheme, c cell.Cell) ([]int, error) {
	return s.SelectRange(
		Range{AfterLastValue, NullValue, BeforeFirstValue, Value(c)},
		Range{AfterLastValue, Value(c), LastValue, LastInSet},
	)
}

// SelectGreater selects rows greater than |c|.
func SelectGreater(s Scheme, c cell.Cell) ([]int, error) {
	return s.SelectRange(Range{AfterLastValue, Value(c), LastValue, LastInSet})
}

// SelectLess selects non-null rows less than |c|.
func SelectLess(s Scheme, c cell.Cell) ([]int, error) {
	return s.SelectRange(Range{AfterLastValue, NullValue, BeforeFirstValue, Value(c)})
}

// SelectGreaterOrEqual selects rows greater than or equal to |c|.
func SelectGreaterOrEqual(s Scheme, c cell.Cell) ([]int, error) {
	return s.SelectRange(Range{FirstValue, Value(c), LastValue, LastInSet})
}

// SelectLessOrEqual selects non-null rows less than or equal to |c|.
func SelectLessOrEqual(s Scheme, c cell.Cell) ([]int, error) {
	return s.SelectRange(Range{AfterLastValue, NullValue, LastValue, Value(c)})
}

// SelectBetween selects rows in the half-open interval [|lo|, |hi|).
func SelectBetween(s Scheme, lo, hi cell.Cell) ([]int, error) {
	return s.SelectRange(Range{FirstValue, Value(lo), BeforeFirstValue, Value(hi)})
}
