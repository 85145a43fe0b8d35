package cell

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"
)

// Kind enumerates the closed set of Cell variants. Its numeric value is
// persisted as the low bits of an encoded cell's tag and must not change.
type Kind uint8

const (
	NUMERIC Kind = 1
	STRING  Kind = 2
	BOOLEAN Kind = 3
	TIME    Kind = 4
	BLOB    Kind = 5
	OBJECT  Kind = 6
)

var kindNames = map[Kind]string{
	NUMERIC: "NUMERIC",
	STRING:  "STRING",
	BOOLEAN: "BOOLEAN",
	TIME:    "TIME",
	BLOB:    "BLOB",
	OBJECT:  "OBJECT",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Validate returns an error if the Kind is not one of the enumerated variants.
func (k Kind) Validate() error {
	if _, ok := kindNames[k]; !ok {
		return fmt.Errorf("invalid cell kind %d", uint8(k))
	}
	return nil
}

// ParseKind maps a Kind name (as returned by String) to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, s := range kindNames {
		if s == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown cell kind %q", name)
}

// MarshalYAML encodes the Kind by name.
func (k Kind) MarshalYAML() (interface{}, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k.String(), nil
}

// UnmarshalYAML decodes a Kind name.
func (k *Kind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	var out, err = ParseKind(name)
	if err != nil {
		return err
	}
	*k = out
	return nil
}

// Cell is an immutable typed value. The zero Cell is invalid; Cells are
// built with the constructors of this package.
type Cell struct {
	kind Kind
	null bool

	num Decimal
	str string
	b   bool
	ms  int64
	raw []byte
}

// Null returns the null Cell of Kind |k|.
func Null(k Kind) Cell {
	if c, ok := internedNulls[k]; ok {
		return c
	}
	return Cell{kind: k, null: true}
}

// Numeric returns a NUMERIC Cell of |d|.
func Numeric(d Decimal) Cell { return Cell{kind: NUMERIC, num: d} }

// Int returns a NUMERIC Cell of integer |v|.
func Int(v int64) Cell {
	switch v {
	case 0:
		return Zero
	case 1:
		return One
	}
	return Numeric(DecimalFromInt(v))
}

// String returns a STRING Cell of |s|.
func String(s string) Cell {
	if s == "" {
		return EmptyString
	}
	return Cell{kind: STRING, str: s}
}

// Boolean returns a BOOLEAN Cell of |v|.
func Boolean(v bool) Cell {
	if v {
		return True
	}
	return False
}

// Time returns a TIME Cell of |t|, truncated to millisecond precision.
func Time(t time.Time) Cell { return Cell{kind: TIME, ms: t.UnixMilli()} }

// Blob returns a BLOB Cell of a copy of |p|.
func Blob(p []byte) Cell {
	if len(p) == 0 {
		return EmptyBlob
	}
	return Cell{kind: BLOB, raw: append([]byte(nil), p...)}
}

// Object returns an OBJECT Cell of a copy of serialized object |p|.
func Object(p []byte) Cell { return Cell{kind: OBJECT, raw: append([]byte(nil), p...)} }

// Interned common values. Interning is purely a memory optimization:
// Cells compare and Equal by value.
var (
	Zero        = Cell{kind: NUMERIC, num: DecimalFromInt(0)}
	One         = Cell{kind: NUMERIC, num: DecimalFromInt(1)}
	True        = Cell{kind: BOOLEAN, b: true}
	False       = Cell{kind: BOOLEAN, b: false}
	EmptyString = Cell{kind: STRING}
	EmptyBlob   = Cell{kind: BLOB, raw: []byte{}}

	internedNulls = map[Kind]Cell{
		NUMERIC: {kind: NUMERIC, null: true},
		STRING:  {kind: STRING, null: true},
		BOOLEAN: {kind: BOOLEAN, null: true},
		TIME:    {kind: TIME, null: true},
		BLOB:    {kind: BLOB, null: true},
		OBJECT:  {kind: OBJECT, null: true},
	}
)

// Kind of the Cell.
func (c Cell) Kind() Kind { return c.kind }

// IsNull returns whether the Cell is the null value of its Kind.
func (c Cell) IsNull() bool { return c.null }

// IsValid returns whether the Cell was built by a constructor of this package.
func (c Cell) IsValid() bool { return c.kind.Validate() == nil }

// Decimal value of a NUMERIC Cell.
func (c Cell) Decimal() Decimal { return c.num }

// Str is the value of a STRING Cell.
func (c Cell) Str() string { return c.str }

// Bool is the value of a BOOLEAN Cell.
func (c Cell) Bool() bool { return c.b }

// Time is the value of a TIME Cell, in UTC.
func (c Cell) Time() time.Time { return time.UnixMilli(c.ms).UTC() }

// Bytes is the value of a BLOB or OBJECT Cell. It must not be modified.
func (c Cell) Bytes() []byte { return c.raw }

// Equal returns whether Cells |c| and |o| have the same Kind and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind || c.null != o.null {
		return false
	} else if c.null {
		return true
	}
	switch c.kind {
	case NUMERIC:
		return c.num.Cmp(o.num) == 0
	case STRING:
		return c.str == o.str
	case BOOLEAN:
		return c.b == o.b
	case TIME:
		return c.ms == o.ms
	case BLOB, OBJECT:
		return bytes.Equal(c.raw, o.raw)
	default:
		return false
	}
}

// String renders the Cell for humans.
func (c Cell) String() string {
	if c.null {
		return "NULL"
	}
	switch c.kind {
	case NUMERIC:
		return c.num.String()
	case STRING:
		return c.str
	case BOOLEAN:
		if c.b {
			return "true"
		}
		return "false"
	case TIME:
		return c.Time().Format(time.RFC3339Nano)
	case BLOB, OBJECT:
		return base64.StdEncoding.EncodeToString(c.raw)
	default:
		return fmt.Sprintf("<invalid cell %d>", uint8(c.kind))
	}
}
