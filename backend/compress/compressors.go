package compress

import (
	"bytes"
	"compress/lzw"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz/lzma"
)

// Zstd is a Compressor implementing Zstandard compression.
// The zero Level means zstd.SpeedDefault.
type Zstd struct {
	Level zstd.EncoderLevel
}

// Compress implements Compressor.Compress.
func (z Zstd) Compress(inp []byte) ([]byte, error) {
	level := z.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(inp, make([]byte, 0, len(inp))), nil
}

// Uncompress implements Compressor.Uncompress.
func (Zstd) Uncompress(inp []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd decoder")
	}
	defer dec.Close()
	return dec.DecodeAll(inp, nil)
}

// LZ4 is a Compressor implementing LZ4 frame compression.
type LZ4 struct{}

// Compress implements Compressor.Compress.
func (LZ4) Compress(inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := lz4.NewWriter(buf)
	if _, err := w.Write(inp); err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	return buf.Bytes(), nil
}

// Uncompress implements Compressor.Uncompress.
func (LZ4) Uncompress(inp []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(inp)))
}

// LZMA is a Compressor implementing LZMA compression.
type LZMA struct{}

// Compress implements Compressor.Compress.
func (LZMA) Compress(inp []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(inp); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress implements Compressor.Uncompress.
func (LZMA) Uncompress(inp []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(inp))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err = buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Flate is a Compressor implementing RFC1951 DEFLATE compression.
type Flate struct {
	Level int
}

// Compress implements Compressor.Compress.
func (f Flate) Compress(inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	level := f.Level
	if level < -2 || level > 9 {
		level = -1
	}
	w, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(inp); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress implements Compressor.Uncompress.
func (Flate) Uncompress(inp []byte) ([]byte, error) {
	rr := flate.NewReader(bytes.NewReader(inp))
	defer rr.Close()
	return io.ReadAll(rr)
}

// LZW is a Compressor implementing Lempel-Ziv-Welch compression.
type LZW struct {
	Order lzw.Order
}

// Compress implements Compressor.Compress.
func (l LZW) Compress(inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := lzw.NewWriter(buf, l.Order, 8)
	if _, err := w.Write(inp); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Uncompress implements Compressor.Uncompress.
func (l LZW) Uncompress(inp []byte) ([]byte, error) {
	rr := lzw.NewReader(bytes.NewReader(inp), l.Order, 8)
	defer rr.Close()
	return io.ReadAll(rr)
}

var compressors = map[string]Compressor{
	"zstd":  Zstd{},
	"lz4":   LZ4{},
	"lzma":  LZMA{},
	"flate": Flate{Level: -1},
	"lzw":   LZW{Order: lzw.LSB},
}

// ByName returns the Compressor with the given name,
// one of the strings in Names.
func ByName(name string) (Compressor, error) {
	c, ok := compressors[name]
	if !ok {
		return nil, errors.Errorf("unknown compressor %q", name)
	}
	return c, nil
}

// Names lists the names accepted by ByName, sorted.
func Names() []string {
	names := make([]string, 0, len(compressors))
	for name := range compressors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
