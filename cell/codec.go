package cell

import (
	"encoding/binary"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.tabledb.dev/core/codecs"
)

const (
	// CompressionThreshold is the payload length beyond which encoding of
	// STRING, BLOB, and OBJECT cells attempts compression.
	CompressionThreshold = 150

	tagKindMask    = 0x0f
	tagCodecMask   = 0x30
	tagCodecShift  = 4
	tagCompressed  = 0x80
	headerLen      = 2 // Tag byte and null byte.
	currentSizeFix = 32
)

var (
	// ErrCompressionFailure is returned when a compressed payload cannot be
	// decompressed, which indicates corruption of its stored encoding.
	ErrCompressionFailure = errors.New("cell decompression failed")
	// ErrMalformed is returned when an encoded cell is truncated or invalid.
	ErrMalformed = errors.New("malformed cell encoding")
)

// Encoder encodes Cells, compressing large payloads with Codec.
type Encoder struct {
	// Codec used to compress STRING, BLOB and OBJECT payloads. NONE disables compression.
	Codec codecs.Codec
	// Threshold is the payload length which must be exceeded before compression
	// is attempted. Zero uses CompressionThreshold.
	Threshold int
}

// DefaultEncoder compresses large payloads with FLATE.
var DefaultEncoder = Encoder{Codec: codecs.FLATE, Threshold: CompressionThreshold}

// Encode |c| with the DefaultEncoder.
func Encode(c Cell) ([]byte, error) { return DefaultEncoder.Append(nil, c) }

// Append the encoding of Cell |c| to |b|, returning the extended slice.
func (e Encoder) Append(b []byte, c Cell) ([]byte, error) {
	if err := c.kind.Validate(); err != nil {
		return nil, err
	}
	if c.null {
		return append(b, byte(c.kind), 1), nil
	}

	switch c.kind {
	case NUMERIC:
		var mag = twosComplement(c.num.int())
		b = append(b, byte(c.kind), 0)
		b = binary.BigEndian.AppendUint16(b, uint16(c.num.scale))
		b = binary.BigEndian.AppendUint32(b, uint32(len(mag)))
		return append(b, mag...), nil
	case STRING:
		return e.appendVariable(b, c.kind, []byte(c.str))
	case BOOLEAN:
		var v byte
		if c.b {
			v = 1
		}
		return append(b, byte(c.kind), 0, v), nil
	case TIME:
		b = append(b, byte(c.kind), 0)
		return binary.BigEndian.AppendUint64(b, uint64(c.ms)), nil
	case BLOB, OBJECT:
		return e.appendVariable(b, c.kind, c.raw)
	default:
		panic("unexpected cell kind " + c.kind.String())
	}
}

func (e Encoder) appendVariable(b []byte, kind Kind, p []byte) ([]byte, error) {
	var threshold = e.Threshold
	if threshold == 0 {
		threshold = CompressionThreshold
	}
	// Attempt compression, and use it only if strictly smaller.
	if e.Codec != codecs.NONE && 4+len(p) > threshold {
		var z, err = codecs.Compress(p, e.Codec)
		if err != nil {
			return nil, errors.WithMessage(err, "compressing cell payload")
		}
		if 8+len(z) < 4+len(p) {
			b = append(b, byte(kind)|tagCompressed|byte(e.Codec)<<tagCodecShift, 0)
			b = binary.BigEndian.AppendUint32(b, uint32(len(p)))
			b = binary.BigEndian.AppendUint32(b, uint32(len(z)))

			compressedCellsTotal.Inc()
			compressedBytesSavedTotal.Add(float64(len(p) - len(z) - 4))
			return append(b, z...), nil
		}
	}
	b = append(b, byte(kind), 0)
	b = binary.BigEndian.AppendUint32(b, uint32(len(p)))
	return append(b, p...), nil
}

// Decode the Cell encoded at the head of |b|, returning it and the
// number of bytes consumed.
func Decode(b []byte) (Cell, int, error) {
	if len(b) < headerLen {
		return Cell{}, 0, errors.WithMessage(ErrMalformed, "short header")
	}
	var tag, null = b[0], b[1]
	var kind = Kind(tag & tagKindMask)

	if err := kind.Validate(); err != nil {
		return Cell{}, 0, errors.WithMessage(ErrMalformed, err.Error())
	} else if null != 0 {
		return Null(kind), headerLen, nil
	}
	var p = b[headerLen:]

	switch kind {
	case NUMERIC:
		if len(p) < 6 {
			return Cell{}, 0, errors.WithMessage(ErrMalformed, "short numeric")
		}
		var scale = int16(binary.BigEndian.Uint16(p))
		var n = int(binary.BigEndian.Uint32(p[2:]))
		if len(p) < 6+n {
			return Cell{}, 0, errors.WithMessage(ErrMalformed, "short numeric magnitude")
		}
		var v = fromTwosComplement(p[6 : 6+n])
		if scale == 0 && v.IsInt64() {
			if i := v.Int64(); i == 0 || i == 1 {
				return Int(i), headerLen + 6 + n, nil
			}
		}
		return Cell{kind: NUMERIC, num: Decimal{unscaled: v, scale: scale}}, headerLen + 6 + n, nil
	case BOOLEAN:
		if len(p) < 1 {
			return Cell{}, 0, errors.WithMessage(ErrMalformed, "short boolean")
		}
		return Boolean(p[0] != 0), headerLen + 1, nil
	case TIME:
		if len(p) < 8 {
			return Cell{}, 0, errors.WithMessage(ErrMalformed, "short time")
		}
		return Cell{kind: TIME, ms: int64(binary.BigEndian.Uint64(p))}, headerLen + 8, nil
	case STRING, BLOB, OBJECT:
		var payload, n, err = decodeVariable(tag, p)
		if err != nil {
			return Cell{}, 0, err
		}
		switch kind {
		case STRING:
			if !utf8.Valid(payload) {
				return Cell{}, 0, errors.WithMessage(ErrMalformed, "invalid UTF-8 string")
			}
			return String(string(payload)), headerLen + n, nil
		case BLOB:
			if len(payload) == 0 {
				return EmptyBlob, headerLen + n, nil
			}
			return Cell{kind: BLOB, raw: payload}, headerLen + n, nil
		default:
			return Cell{kind: OBJECT, raw: payload}, headerLen + n, nil
		}
	default:
		panic("unexpected cell kind " + kind.String())
	}
}

// decodeVariable returns a copied (or decompressed) variable-length payload,
// and the number of bytes of |p| consumed.
func decodeVariable(tag byte, p []byte) ([]byte, int, error) {
	if tag&tagCompressed == 0 {
		if len(p) < 4 {
			return nil, 0, errors.WithMessage(ErrMalformed, "short length")
		}
		var n = int(binary.BigEndian.Uint32(p))
		if len(p) < 4+n {
			return nil, 0, errors.WithMessage(ErrMalformed, "short payload")
		}
		return append([]byte(nil), p[4:4+n]...), 4 + n, nil
	}

	if len(p) < 8 {
		return nil, 0, errors.WithMessage(ErrMalformed, "short compressed lengths")
	}
	var size = int(binary.BigEndian.Uint32(p))
	var n = int(binary.BigEndian.Uint32(p[4:]))
	if len(p) < 8+n {
		return nil, 0, errors.WithMessage(ErrMalformed, "short compressed payload")
	}
	var codec = codecs.Codec((tag & tagCodecMask) >> tagCodecShift)

	var out, err = codecs.Decompress(p[8:8+n], codec, size)
	if err != nil {
		return nil, 0, errors.WithMessagef(ErrCompressionFailure, "%s: %s", codec, err)
	}
	return out, 8 + n, nil
}

// SizeOf returns an upper bound on the encoded size of |c|.
func SizeOf(c Cell) int {
	if c.null {
		return headerLen
	}
	switch c.kind {
	case NUMERIC:
		return headerLen + 6 + len(c.num.int().Bytes()) + 1
	case STRING:
		return headerLen + 4 + len(c.str)
	case BOOLEAN:
		return headerLen + 1
	case TIME:
		return headerLen + 8
	case BLOB, OBJECT:
		return headerLen + 4 + len(c.raw)
	default:
		panic("unexpected cell kind " + c.kind.String())
	}
}

// CurrentSizeOf approximates the in-memory footprint of |c|, for cache accounting.
func CurrentSizeOf(c Cell) int {
	switch c.kind {
	case NUMERIC:
		if c.null {
			return currentSizeFix
		}
		return currentSizeFix + len(c.num.int().Bits())*8
	case STRING:
		return currentSizeFix + len(c.str)
	case BLOB, OBJECT:
		return currentSizeFix + len(c.raw)
	default:
		return currentSizeFix
	}
}

// TimeOf is a convenience which returns a TIME Cell of |ms| milliseconds since the epoch.
func TimeOf(ms int64) Cell { return Time(time.UnixMilli(ms)) }
