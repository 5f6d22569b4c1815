// Package split stores large byte payloads as a list of content-addressed chunks.
// See github.com/bobg/hashsplit for more information.
//
// The payload is cut into chunks at boundaries chosen by a rolling checksum,
// so an insertion or deletion in the payload changes only the chunks near it.
// Each chunk is stored as an object of its own
// and the payload's own encoding lists the chunks' digests.
// Payloads that share content therefore share most of their chunks in the store.
package split

import (
	"bytes"
	"io"
	"math"

	"github.com/bobg/hashsplit"
	"github.com/pkg/errors"

	"github.com/bobg/cas"
)

// Chunk is the digest and length of one stored chunk.
type Chunk struct {
	Digest cas.Digest
	Size   uint64
}

type codec struct {
	minSize   int
	splitBits uint
}

// Option configures the Codec produced by New.
type Option func(*codec)

// MinSize sets the minimum chunk size.
// The default is 1024.
func MinSize(n int) Option {
	return func(c *codec) {
		c.minSize = n
	}
}

// Bits sets the number of trailing zero bits in the rolling checksum
// that mark a chunk boundary,
// which sets the average chunk size to about 2^n.
// The default is 14.
func Bits(n uint) Option {
	return func(c *codec) {
		c.splitBits = n
	}
}

// New produces a cas.Codec for byte slices
// that stores each slice as hashsplit chunks.
//
// The encoding is a uint64 chunk count
// followed by the digest and the uint64 size of each chunk.
// Each chunk object is just the chunk's bytes.
func New(opts ...Option) cas.Codec[[]byte] {
	c := &codec{minSize: 1024, splitBits: 14}
	for _, opt := range opts {
		opt(c)
	}
	return cas.NewCodec(c.encode, c.decode)
}

func (c *codec) encode(s *cas.Sink, data []byte) error {
	chunks, err := c.writeChunks(s, data)
	if err != nil {
		return err
	}
	return Chunks.Encode(s, chunks)
}

func (c *codec) writeChunks(s *cas.Sink, data []byte) ([]Chunk, error) {
	var chunks []Chunk

	spl := hashsplit.NewSplitter(func(b []byte, _ uint) error {
		if len(b) == 0 {
			return nil
		}
		d, err := s.Nested(func(nested *cas.Sink) error {
			_, err := nested.Write(b)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "writing split chunk to store")
		}
		chunks = append(chunks, Chunk{Digest: d, Size: uint64(len(b))})
		return nil
	})
	spl.MinSize = c.minSize
	spl.SplitBits = c.splitBits

	if _, err := spl.Write(data); err != nil {
		return nil, err
	}
	if err := spl.Close(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (c *codec) decode(s *cas.Source) ([]byte, error) {
	chunks, err := Chunks.Decode(s)
	if err != nil {
		return nil, err
	}
	out := []byte{}
	for _, chunk := range chunks {
		if chunk.Size > math.MaxInt64 {
			return nil, &cas.DecodeError{What: "split chunk", Err: errors.Errorf("size %d out of range", chunk.Size)}
		}
		err = s.Request(chunk.Digest, func(src *cas.Source) error {
			buf := new(bytes.Buffer)
			if _, err := io.CopyN(buf, src, int64(chunk.Size)); err != nil {
				if err == io.EOF {
					return &cas.DecodeError{What: "split chunk", Err: io.ErrUnexpectedEOF}
				}
				return err
			}
			out = append(out, buf.Bytes()...)
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "reading chunk %s", chunk.Digest)
		}
	}
	return out, nil
}

// Chunks is the Codec for the chunk list of an encoded payload.
// A Store derived with it (see cas.Derive) can inspect a payload's chunks
// without fetching them.
var Chunks = cas.List(cas.NewCodec(
	func(s *cas.Sink, c Chunk) error {
		if err := s.WriteDigest(c.Digest); err != nil {
			return err
		}
		return s.WriteUint64(c.Size)
	},
	func(s *cas.Source) (Chunk, error) {
		d, err := s.ReadDigest()
		if err != nil {
			return Chunk{}, err
		}
		size, err := s.ReadUint64()
		return Chunk{Digest: d, Size: size}, err
	},
))
