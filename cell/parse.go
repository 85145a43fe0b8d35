package cell

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Parse a Cell of Kind |k| from its textual form, as rendered by Cell.String.
// The literal "NULL" parses as the null Cell of |k|.
func Parse(k Kind, text string) (Cell, error) {
	if text == "NULL" {
		return Null(k), nil
	}
	switch k {
	case NUMERIC:
		var d, err = ParseDecimal(strings.TrimSpace(text))
		if err != nil {
			return Cell{}, err
		}
		return Numeric(d), nil
	case STRING:
		return String(text), nil
	case BOOLEAN:
		var v, err = strconv.ParseBool(text)
		if err != nil {
			return Cell{}, errors.WithMessage(err, "parsing boolean")
		}
		return Boolean(v), nil
	case TIME:
		var t, err = time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return Cell{}, errors.WithMessage(err, "parsing time")
		}
		return Time(t), nil
	case BLOB, OBJECT:
		var p, err = base64.StdEncoding.DecodeString(text)
		if err != nil {
			return Cell{}, errors.WithMessage(err, "parsing base64")
		}
		if k == BLOB {
			return Blob(p), nil
		}
		return Object(p), nil
	default:
		return Cell{}, k.Validate()
	}
}
