package scheme

import (
	"fmt"

	"github.com/pkg/errors"
	"go.tabledb.dev/core/cell"
)

// Bound is an endpoint of a Range: a concrete Cell, the null value of the
// column, or a sentinel resolved against the current first or last row of
// the Scheme.
type Bound struct {
	kind  boundKind
	value cell.Cell
}

type boundKind uint8

const (
	boundValue boundKind = iota
	boundNull
	boundFirstInSet
	boundLastInSet
)

var (
	// FirstInSet resolves to the value of the first row in Scheme order.
	FirstInSet = Bound{kind: boundFirstInSet}
	// LastInSet resolves to the value of the last row in Scheme order.
	LastInSet = Bound{kind: boundLastInSet}
	// NullValue is the null value of the column, whatever its Kind.
	NullValue = Bound{kind: boundNull}
)

// Value returns a Bound of concrete Cell |c|.
func Value(c cell.Cell) Bound {
	if c.IsNull() {
		return NullValue
	}
	return Bound{kind: boundValue, value: c}
}

func (b Bound) String() string {
	switch b.kind {
	case boundNull:
		return "NULL"
	case boundFirstInSet:
		return "FIRST_IN_SET"
	case boundLastInSet:
		return "LAST_IN_SET"
	default:
		return fmt.Sprintf("%q", b.value.String())
	}
}

// Flag qualifies a Bound as inclusive or exclusive.
type Flag uint8

const (
	// FirstValue starts a Range at the first row equal to its Bound (inclusive).
	FirstValue Flag = iota + 1
	// AfterLastValue starts a Range after the last row equal to its Bound (exclusive).
	AfterLastValue
	// LastValue ends a Range at the last row equal to its Bound (inclusive).
	LastValue
	// BeforeFirstValue ends a Range before the first row equal to its Bound (exclusive).
	BeforeFirstValue
)

// Range is a contiguous span of a Scheme's ordering.
type Range struct {
	StartFlag Flag
	Start     Bound
	EndFlag   Flag
	End       Bound
}

// Validate returns an error if the Range flags are malformed.
func (r Range) Validate() error {
	if r.StartFlag != FirstValue && r.StartFlag != AfterLastValue {
		return errors.Errorf("invalid start flag %d", r.StartFlag)
	} else if r.EndFlag != LastValue && r.EndFlag != BeforeFirstValue {
		return errors.Errorf("invalid end flag %d", r.EndFlag)
	}
	return nil
}

func (r Range) String() string {
	var open, close = "[", "]"
	if r.StartFlag == AfterLastValue {
		open = "("
	}
	if r.EndFlag == BeforeFirstValue {
		close = ")"
	}
	return fmt.Sprintf("%s%s, %s%s", open, r.Start, r.End, close)
}

// resolved is a Bound having resolved sentinels. An |empty| resolution
// arises from a sentinel of an empty Scheme, and matches no rows.
type resolved struct {
	null  bool
	value cell.Cell
	empty bool
}

// compareTo orders |c| with respect to the resolved bound.
func (r resolved) compareTo(c cell.Cell) (int, error) {
	if r.null {
		if c.IsNull() {
			return 0, nil
		}
		return 1, nil
	}
	return cell.Compare(c, r.value)
}

// resolvedRange is a Range of resolved Bounds.
type resolvedRange struct {
	startFlag, endFlag Flag
	start, end         resolved
}

func (r resolvedRange) empty() bool { return r.start.empty || r.end.empty }

// contains returns whether |c| falls within the Range.
func (r resolvedRange) contains(c cell.Cell) (bool, error) {
	var cmp, err = r.start.compareTo(c)
	if err != nil {
		return false, err
	} else if cmp < 0 || (cmp == 0 && r.startFlag == AfterLastValue) {
		return false, nil
	}
	if cmp, err = r.end.compareTo(c); err != nil {
		return false, err
	} else if cmp > 0 || (cmp == 0 && r.endFlag == BeforeFirstValue) {
		return false, nil
	}
	return true, nil
}

// resolver resolves the sentinels of a single SelectRange invocation. The
// Scheme's SelectAll is computed at most once, and only if required.
type resolver struct {
	s      Scheme
	all    []int
	loaded bool
}

func (rs *resolver) resolveAll(ranges []Range) ([]resolvedRange, error) {
	var out = make([]resolvedRange, len(ranges))
	for i, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		var start, err = rs.resolve(r.Start)
		if err != nil {
			return nil, err
		}
		end, err := rs.resolve(r.End)
		if err != nil {
			return nil, err
		}
		out[i] = resolvedRange{startFlag: r.StartFlag, endFlag: r.EndFlag, start: start, end: end}
	}
	return out, nil
}

func (rs *resolver) resolve(b Bound) (resolved, error) {
	switch b.kind {
	case boundValue:
		return resolved{value: b.value}, nil
	case boundNull:
		return resolved{null: true}, nil
	}

	if !rs.loaded {
		var all, err = rs.s.SelectAll()
		if err != nil {
			return resolved{}, errors.WithMessage(err, "resolving sentinel")
		}
		rs.all, rs.loaded = all, true
	}
	if len(rs.all) == 0 {
		return resolved{empty: true}, nil
	}
	var row = rs.all[0]
	if b.kind == boundLastInSet {
		row = rs.all[len(rs.all)-1]
	}
	var c, err = rs.s.Table().CellAt(rs.s.Column(), row)
	if err != nil {
		return resolved{}, err
	}
	if c.IsNull() {
		return resolved{null: true}, nil
	}
	return resolved{value: c}, nil
}
