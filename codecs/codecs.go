package codecs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Codec identifies a compression scheme applied to large cell payloads.
// Its numeric value is persisted within encoded cells and must not change.
type Codec uint8

const (
	NONE      Codec = 0
	FLATE     Codec = 1
	SNAPPY    Codec = 2
	ZSTANDARD Codec = 3
)

func (c Codec) String() string {
	switch c {
	case NONE:
		return "NONE"
	case FLATE:
		return "FLATE"
	case SNAPPY:
		return "SNAPPY"
	case ZSTANDARD:
		return "ZSTANDARD"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// Validate returns an error if the Codec is not known.
func (c Codec) Validate() error {
	if c > ZSTANDARD {
		return fmt.Errorf("unknown codec %d", uint8(c))
	}
	return nil
}

// ParseCodec maps a codec name (as returned by String) to its Codec.
func ParseCodec(name string) (Codec, error) {
	for _, c := range []Codec{NONE, FLATE, SNAPPY, ZSTANDARD} {
		if c.String() == name {
			return c, nil
		}
	}
	return NONE, fmt.Errorf("unsupported codec %q", name)
}

// Decompressor is a ReadCloser where Close closes and releases Decompressor
// state, but does not Close or affect the underlying Reader.
type Decompressor io.ReadCloser

// Compressor is a WriteCloser where Close closes and releases Compressor
// state, potentially flushing final content to the underlying Writer,
// but does not Close or otherwise affect the underlying Writer.
type Compressor io.WriteCloser

// NewCodecReader returns a Decompressor of the Reader encoded with Codec.
func NewCodecReader(r io.Reader, codec Codec) (Decompressor, error) {
	switch codec {
	case NONE:
		return io.NopCloser(r), nil
	case FLATE:
		return flate.NewReader(r), nil
	case SNAPPY:
		return io.NopCloser(snappy.NewReader(r)), nil
	case ZSTANDARD:
		return zstdNewReader(r)
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec.String())
	}
}

// NewCodecWriter returns a Compressor wrapping the Writer encoding with Codec.
func NewCodecWriter(w io.Writer, codec Codec) (Compressor, error) {
	switch codec {
	case NONE:
		return nopWriteCloser{w}, nil
	case FLATE:
		return flate.NewWriter(w, flate.DefaultCompression)
	case SNAPPY:
		return snappy.NewBufferedWriter(w), nil
	case ZSTANDARD:
		return zstdNewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec.String())
	}
}

// Compress returns |p| encoded with Codec.
func Compress(p []byte, codec Codec) ([]byte, error) {
	var buf bytes.Buffer
	var w, err = NewCodecWriter(&buf, codec)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(p); err != nil {
		return nil, errors.WithMessage(err, "compressing")
	} else if err = w.Close(); err != nil {
		return nil, errors.WithMessage(err, "closing compressor")
	}
	return buf.Bytes(), nil
}

// Decompress decodes |p| with Codec, expecting exactly |size| bytes of output.
// Output is buffered as it's produced, so a corrupt |size| can't force a
// large allocation.
func Decompress(p []byte, codec Codec, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid decompressed size %d", size)
	}
	var r, err = NewCodecReader(bytes.NewReader(p), codec)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err = out.ReadFrom(io.LimitReader(r, int64(size)+1)); err != nil {
		return nil, errors.WithMessagef(err, "decompressing %d bytes", size)
	} else if out.Len() < size {
		return nil, errors.WithMessagef(io.ErrUnexpectedEOF, "decompressing %d bytes (have %d)", size, out.Len())
	} else if out.Len() > size {
		return nil, fmt.Errorf("decompressed content exceeds expected %d bytes", size)
	}
	return out.Bytes(), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var (
	zstdNewReader = func(io.Reader) (io.ReadCloser, error) {
		return nil, fmt.Errorf("ZSTANDARD was not enabled at compile time")
	}
	zstdNewWriter = func(io.Writer) (io.WriteCloser, error) {
		return nil, fmt.Errorf("ZSTANDARD was not enabled at compile time")
	}
)
