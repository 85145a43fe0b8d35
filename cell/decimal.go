package cell

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimal is an arbitrary precision decimal: Unscaled × 10^-Scale.
// Decimals are immutable once built.
type Decimal struct {
	unscaled *big.Int
	scale    int16
}

// NewDecimal returns the Decimal |unscaled| × 10^-|scale|. |unscaled| is copied.
func NewDecimal(unscaled *big.Int, scale int16) Decimal {
	return Decimal{unscaled: new(big.Int).Set(unscaled), scale: scale}
}

// DecimalFromInt returns the integral Decimal |v|.
func DecimalFromInt(v int64) Decimal {
	return Decimal{unscaled: big.NewInt(v)}
}

// ParseDecimal parses a base-10 literal such as "-12.345" or "7".
func ParseDecimal(s string) (Decimal, error) {
	var digits, scale = s, 0
	if i := strings.IndexByte(s, '.'); i != -1 {
		digits = s[:i] + s[i+1:]
		scale = len(s) - i - 1
	}
	if scale > 1<<15-1 {
		return Decimal{}, fmt.Errorf("decimal %q has too many fractional digits", s)
	}
	var v, ok = new(big.Int).SetString(digits, 10)
	if !ok || digits == "" || digits == "-" || digits == "+" {
		return Decimal{}, fmt.Errorf("invalid decimal %q", s)
	}
	return Decimal{unscaled: v, scale: int16(scale)}, nil
}

// Unscaled returns a copy of the unscaled integer value.
func (d Decimal) Unscaled() *big.Int { return new(big.Int).Set(d.int()) }

// Scale returns the number of fractional decimal digits.
func (d Decimal) Scale() int16 { return d.scale }

// Sign returns -1, 0, or +1.
func (d Decimal) Sign() int { return d.int().Sign() }

func (d Decimal) int() *big.Int {
	if d.unscaled == nil {
		return new(big.Int)
	}
	return d.unscaled
}

// Cmp compares Decimals by value, irrespective of scale.
func (d Decimal) Cmp(o Decimal) int {
	var a, b = d.int(), o.int()

	if d.scale == o.scale {
		return a.Cmp(b)
	} else if d.scale < o.scale {
		a = rescale(a, int64(o.scale-d.scale))
	} else {
		b = rescale(b, int64(d.scale-o.scale))
	}
	return a.Cmp(b)
}

func rescale(v *big.Int, by int64) *big.Int {
	var m = new(big.Int).Exp(big.NewInt(10), big.NewInt(by), nil)
	return m.Mul(m, v)
}

func (d Decimal) String() string {
	var s = d.int().String()
	if d.scale <= 0 {
		if d.scale < 0 && d.int().Sign() != 0 {
			s += strings.Repeat("0", int(-d.scale))
		}
		return s
	}
	var neg = strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if n := int(d.scale) + 1 - len(s); n > 0 {
		s = strings.Repeat("0", n) + s
	}
	s = s[:len(s)-int(d.scale)] + "." + s[len(s)-int(d.scale):]
	if neg {
		s = "-" + s
	}
	return s
}

// twosComplement returns the minimal big-endian two's complement encoding of |v|.
func twosComplement(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return []byte{0}
	case 1:
		var b = v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	// For negative v, encode 2^(8n) + v where n is the smallest width
	// for which the result has its high bit set.
	var n = (new(big.Int).Not(v).BitLen())/8 + 1
	var m = new(big.Int).Lsh(big.NewInt(1), uint(8*n))
	var b = m.Add(m, v).Bytes()

	for len(b) < n {
		b = append([]byte{0xff}, b...)
	}
	return b
}

// fromTwosComplement inverts twosComplement.
func fromTwosComplement(b []byte) *big.Int {
	var v = new(big.Int).SetBytes(b)
	if len(b) != 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return v
}
