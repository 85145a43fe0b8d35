package cell

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// ErrIncomparableTypes is returned when Cells of differing Kinds are compared.
var ErrIncomparableTypes = errors.New("incomparable cell types")

// Compare returns -1, 0, or +1 as |a| orders before, equal to, or after |b|.
// Null orders before every non-null value of the same Kind. Comparing Cells
// of differing Kinds is an error.
func Compare(a, b Cell) (int, error) {
	if a.kind != b.kind {
		return 0, errors.WithMessagef(ErrIncomparableTypes, "%s vs %s", a.kind, b.kind)
	}
	return compareSameKind(a, b), nil
}

// MustCompare is Compare, which panics if |a| and |b| have differing Kinds.
// It's appropriate only where Kinds are already known to agree.
func MustCompare(a, b Cell) int {
	var c, err = Compare(a, b)
	if err != nil {
		panic(err.Error())
	}
	return c
}

func compareSameKind(a, b Cell) int {
	switch {
	case a.null && b.null:
		return 0
	case a.null:
		return -1
	case b.null:
		return 1
	}

	switch a.kind {
	case NUMERIC:
		return a.num.Cmp(b.num)
	case STRING:
		return strings.Compare(a.str, b.str)
	case BOOLEAN:
		if a.b == b.b {
			return 0
		} else if !a.b {
			return -1
		}
		return 1
	case TIME:
		if a.ms < b.ms {
			return -1
		} else if a.ms > b.ms {
			return 1
		}
		return 0
	case BLOB, OBJECT:
		return bytes.Compare(a.raw, b.raw)
	default:
		panic("unexpected cell kind " + a.kind.String())
	}
}
