package cell

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// A row is encoded as a uint16 column count, followed by a uint32 offset per
// column (relative to the start of the row body), followed by the body: each
// column's encoded cell in column order.

// AppendRow appends the encoding of |cells| to |b|.
func (e Encoder) AppendRow(b []byte, cells []Cell) ([]byte, error) {
	if len(cells) > 1<<16-1 {
		return nil, errors.Errorf("row has too many columns (%d)", len(cells))
	}
	var head = len(b)
	var hdr = 2 + 4*len(cells)

	b = append(b, make([]byte, hdr)...)
	binary.BigEndian.PutUint16(b[head:], uint16(len(cells)))

	var body = head + hdr
	for i, c := range cells {
		binary.BigEndian.PutUint32(b[head+2+4*i:], uint32(len(b)-body))

		var err error
		if b, err = e.Append(b, c); err != nil {
			return nil, errors.WithMessagef(err, "column %d", i)
		}
	}
	return b, nil
}

// EncodeRow encodes |cells| with the DefaultEncoder.
func EncodeRow(cells []Cell) ([]byte, error) { return DefaultEncoder.AppendRow(nil, cells) }

// RowColumns returns the number of columns of encoded row |b|.
func RowColumns(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, errors.WithMessage(ErrMalformed, "short row header")
	}
	var n = int(binary.BigEndian.Uint16(b))
	if len(b) < 2+4*n {
		return 0, errors.WithMessage(ErrMalformed, "short row offsets")
	}
	return n, nil
}

// DecodeRowCell decodes only column |column| of encoded row |b|.
func DecodeRowCell(b []byte, column int) (Cell, error) {
	var n, err = RowColumns(b)
	if err != nil {
		return Cell{}, err
	} else if column < 0 || column >= n {
		return Cell{}, errors.Errorf("column %d out of range [0, %d)", column, n)
	}
	var body = 2 + 4*n
	var off = body + int(binary.BigEndian.Uint32(b[2+4*column:]))

	if off > len(b) {
		return Cell{}, errors.WithMessagef(ErrMalformed, "column %d offset %d beyond row", column, off)
	}
	c, _, err := Decode(b[off:])
	return c, errors.WithMessagef(err, "column %d", column)
}

// DecodeRow decodes all columns of encoded row |b|.
func DecodeRow(b []byte) ([]Cell, error) {
	var n, err = RowColumns(b)
	if err != nil {
		return nil, err
	}
	var out = make([]Cell, n)
	for i := range out {
		if out[i], err = DecodeRowCell(b, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
