package cell

import (
	"encoding/binary"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.tabledb.dev/core/codecs"
)

func sampleCells(t *testing.T) []Cell {
	var big1, _ = new(big.Int).SetString("-98765432109876543210987654321", 10)
	var dec, err = ParseDecimal("-0.005")
	require.NoError(t, err)

	return []Cell{
		Null(NUMERIC), Int(0), Int(1), Int(-1), Int(127), Int(128), Int(-128), Int(-129),
		Numeric(dec), Numeric(NewDecimal(big1, 7)),
		Null(STRING), String(""), String("a"), String("héllo, 世界"),
		String(strings.Repeat("compressible text ", 40)),
		Null(BOOLEAN), True, False,
		Null(TIME), Time(time.Date(2020, 2, 29, 12, 30, 0, 123e6, time.UTC)), TimeOf(-1),
		Null(BLOB), Blob(nil), Blob([]byte{0, 1, 2, 255}),
		Blob([]byte(strings.Repeat("\x01\x02\x03\x04", 100))),
		Null(OBJECT), Object([]byte(`{"serialized":"object"}`)),
	}
}

func TestRoundTripAllKinds(t *testing.T) {
	for _, enc := range []Encoder{
		DefaultEncoder,
		{Codec: codecs.NONE},
		{Codec: codecs.SNAPPY, Threshold: 10},
	} {
		for _, c := range sampleCells(t) {
			var b, err = enc.Append([]byte("prefix"), c)
			require.NoError(t, err)
			require.LessOrEqual(t, len(b)-len("prefix"), SizeOf(c), c.String())

			out, n, err := Decode(b[len("prefix"):])
			require.NoError(t, err)
			require.Equal(t, len(b)-len("prefix"), n)
			require.True(t, c.Equal(out), "%s != %s", c, out)
			require.Equal(t, c.IsNull(), out.IsNull())
			require.Equal(t, c.Kind(), out.Kind())
		}
	}
}

func TestCompressionIsUsedOnlyWhenSmaller(t *testing.T) {
	var long = String(strings.Repeat("abc", 100))
	var b, err = Encode(long)
	require.NoError(t, err)
	require.NotZero(t, b[0]&tagCompressed)
	require.Less(t, len(b), 300)

	// Short payloads are never compressed.
	b, err = Encode(String("short"))
	require.NoError(t, err)
	require.Zero(t, b[0]&tagCompressed)

	// Nor are payloads which don't compress well.
	var noise = make([]byte, 400)
	for i := range noise {
		noise[i] = byte(i*7919 + i*i*31)
	}
	b, err = Encode(Blob(noise))
	require.NoError(t, err)
	if b[0]&tagCompressed != 0 {
		require.Less(t, len(b), 2+4+len(noise))
	}
}

func TestCorruptCompressedPayload(t *testing.T) {
	var b, err = Encode(String(strings.Repeat("xyz", 100)))
	require.NoError(t, err)
	require.NotZero(t, b[0]&tagCompressed)

	var sized = append([]byte(nil), b...)

	for i := 10; i < len(b); i++ {
		b[i] ^= 0x5a
	}
	_, _, err = Decode(b)
	require.Equal(t, ErrCompressionFailure, errors.Cause(err))

	// An intact payload which claims a far larger decompressed size.
	binary.BigEndian.PutUint32(sized[headerLen:], 512<<20)
	_, _, err = Decode(sized)
	require.Equal(t, ErrCompressionFailure, errors.Cause(err))
}

func TestMalformedEncodings(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		{byte(NUMERIC)},
		{0x0f, 0},
		{byte(NUMERIC), 0, 0, 0, 0, 0, 0, 9},
		{byte(STRING), 0, 0, 0, 0, 5, 'a'},
		{byte(STRING), 0, 0, 0, 0, 1, 0xff},
		{byte(TIME), 0, 1, 2},
	} {
		var _, _, err = Decode(b)
		require.Equal(t, ErrMalformed, errors.Cause(err), "%v", b)
	}
}

func TestOrderingInvariants(t *testing.T) {
	var cells = sampleCells(t)

	for _, a := range cells {
		for _, b := range cells {
			var ab, err = Compare(a, b)
			if a.Kind() != b.Kind() {
				require.Equal(t, ErrIncomparableTypes, errors.Cause(err))
				continue
			}
			require.NoError(t, err)
			require.Equal(t, ab, -MustCompare(b, a))

			if a.IsNull() && !b.IsNull() {
				require.Equal(t, -1, ab)
			}
			if a.Equal(b) {
				require.Equal(t, 0, ab)
			}
		}
	}
}

func TestOrderingByKind(t *testing.T) {
	var d1, _ = ParseDecimal("1.50")
	var d2, _ = ParseDecimal("1.5")
	var d3, _ = ParseDecimal("-2")

	require.Equal(t, 0, MustCompare(Numeric(d1), Numeric(d2)))
	require.Equal(t, -1, MustCompare(Numeric(d3), Numeric(d2)))
	require.Equal(t, 1, MustCompare(Int(10), Numeric(d1)))
	require.Equal(t, -1, MustCompare(String("a"), String("ab")))
	require.Equal(t, -1, MustCompare(String("Z"), String("a")))
	require.Equal(t, -1, MustCompare(False, True))
	require.Equal(t, 1, MustCompare(TimeOf(10), TimeOf(-10)))
	require.Equal(t, -1, MustCompare(Null(STRING), EmptyString))

	require.Panics(t, func() { MustCompare(Int(1), String("1")) })
}

func TestDecimalFormatting(t *testing.T) {
	for _, s := range []string{"0", "12", "-12", "0.005", "-0.005", "123.4500", "0.00"} {
		var d, err = ParseDecimal(s)
		require.NoError(t, err)
		require.Equal(t, s, d.String())
	}
	for _, s := range []string{"", ".", "-", "1e5", "1.2.3", "abc"} {
		var _, err = ParseDecimal(s)
		require.Error(t, err, s)
	}
}

func TestTwosComplement(t *testing.T) {
	for _, tc := range []struct {
		v   int64
		enc []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{127, []byte{0x7f}},
		{128, []byte{0, 0x80}},
		{-1, []byte{0xff}},
		{-128, []byte{0x80}},
		{-129, []byte{0xff, 0x7f}},
		{-32768, []byte{0x80, 0x00}},
	} {
		require.Equal(t, tc.enc, twosComplement(big.NewInt(tc.v)), "%d", tc.v)
		require.Equal(t, tc.v, fromTwosComplement(tc.enc).Int64())
	}
}

func TestRowEncoding(t *testing.T) {
	var row = []Cell{Int(42), String("name"), Null(BOOLEAN), String(strings.Repeat("z", 500))}
	var b, err = EncodeRow(row)
	require.NoError(t, err)

	n, err := RowColumns(b)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	c, err := DecodeRowCell(b, 1)
	require.NoError(t, err)
	require.True(t, String("name").Equal(c))

	out, err := DecodeRow(b)
	require.NoError(t, err)
	for i := range row {
		require.True(t, row[i].Equal(out[i]))
	}

	_, err = DecodeRowCell(b, 4)
	require.EqualError(t, err, "column 4 out of range [0, 4)")
}

func TestParse(t *testing.T) {
	for _, c := range sampleCells(t) {
		var out, err = Parse(c.Kind(), c.String())
		require.NoError(t, err)
		require.True(t, c.Equal(out), "%s", c)
	}
	var _, err = Parse(BOOLEAN, "maybe")
	require.Error(t, err)
}

func TestKindNames(t *testing.T) {
	for _, k := range []Kind{NUMERIC, STRING, BOOLEAN, TIME, BLOB, OBJECT} {
		var out, err = ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, out)
	}
	require.Error(t, Kind(0).Validate())
	require.Equal(t, "Kind(9)", Kind(9).String())
}
