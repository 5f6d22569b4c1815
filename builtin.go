package cas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Codecs for fixed-width numbers.
// Multi-byte numbers are big-endian.
var (
	Uint8  Codec[uint8]  = NewCodec(encodeUint8, decodeUint8)
	Uint16 Codec[uint16] = NewCodec((*Sink).WriteUint16, (*Source).ReadUint16)
	Uint32 Codec[uint32] = NewCodec((*Sink).WriteUint32, (*Source).ReadUint32)
	Uint64 Codec[uint64] = NewCodec((*Sink).WriteUint64, (*Source).ReadUint64)

	Int16 Codec[int16] = NewCodec(
		func(s *Sink, v int16) error { return s.WriteUint16(uint16(v)) },
		func(s *Source) (int16, error) {
			v, err := s.ReadUint16()
			return int16(v), err
		},
	)
	Int32 Codec[int32] = NewCodec(
		func(s *Sink, v int32) error { return s.WriteUint32(uint32(v)) },
		func(s *Source) (int32, error) {
			v, err := s.ReadUint32()
			return int32(v), err
		},
	)
	Int64 Codec[int64] = NewCodec(
		func(s *Sink, v int64) error { return s.WriteUint64(uint64(v)) },
		func(s *Source) (int64, error) {
			v, err := s.ReadUint64()
			return int64(v), err
		},
	)
)

func encodeUint8(s *Sink, v uint8) error { return s.WriteByte(v) }
func decodeUint8(s *Source) (uint8, error) { return s.ReadByte() }

// Unit is the Codec for the empty value.
// Its encoding is zero bytes long.
var Unit Codec[struct{}] = NewCodec(
	func(*Sink, struct{}) error { return nil },
	func(*Source) (struct{}, error) { return struct{}{}, nil },
)

// Option is a value that may be absent.
type Option[T any] struct {
	Value T
	Valid bool
}

// Some produces a present Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Valid: true}
}

// None produces an absent Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Optional produces the Codec for Option[T].
// An absent value is the single byte 0.
// A present value is the byte 1 followed by the encoding of the value.
// Any other tag byte is a decoding error.
func Optional[T any](c Codec[T]) Codec[Option[T]] {
	return NewCodec(
		func(s *Sink, o Option[T]) error {
			if !o.Valid {
				return s.WriteByte(0)
			}
			if err := s.WriteByte(1); err != nil {
				return err
			}
			return c.Encode(s, o.Value)
		},
		func(s *Source) (Option[T], error) {
			tag, err := s.ReadByte()
			if err != nil {
				return Option[T]{}, err
			}
			switch tag {
			case 0:
				return Option[T]{}, nil
			case 1:
				v, err := c.Decode(s)
				if err != nil {
					return Option[T]{}, err
				}
				return Some(v), nil
			}
			return Option[T]{}, &DecodeError{What: "option", Err: fmt.Errorf("%w %d", ErrInvalidTag, tag)}
		},
	)
}

// ErrNilPointer is the error encoding a nil pointer with a Ptr codec.
var ErrNilPointer = errors.New("nil pointer")

// Ptr produces the Codec for *T.
// The pointer is invisible in the encoding,
// so a *T and the T it points to have the same digest.
// Nil pointers cannot be encoded.
func Ptr[T any](c Codec[T]) Codec[*T] {
	return NewCodec(
		func(s *Sink, p *T) error {
			if p == nil {
				return ErrNilPointer
			}
			return c.Encode(s, *p)
		},
		func(s *Source) (*T, error) {
			v, err := c.Decode(s)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	)
}

// Bytes is the Codec for byte slices:
// a uint64 length followed by the bytes.
// Decoding yields a non-nil slice.
var Bytes Codec[[]byte] = NewCodec(encodeBytes, decodeBytes)

func encodeBytes(s *Sink, b []byte) error {
	if err := s.WriteUint64(uint64(len(b))); err != nil {
		return err
	}
	return s.writeAll(b)
}

func decodeBytes(s *Source) ([]byte, error) {
	n, err := s.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt64 {
		return nil, &DecodeError{What: "bytes", Err: fmt.Errorf("length %d out of range", n)}
	}

	// Copy rather than preallocate,
	// so a corrupt length cannot force a huge allocation.
	buf := new(bytes.Buffer)
	_, err = io.CopyN(buf, s, int64(n))
	if err != nil {
		return nil, truncation("bytes", err)
	}
	out := buf.Bytes()
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// String is the Codec for strings, encoded like Bytes.
var String Codec[string] = NewCodec(
	func(s *Sink, str string) error { return encodeBytes(s, []byte(str)) },
	func(s *Source) (string, error) {
		b, err := decodeBytes(s)
		return string(b), err
	},
)

// MaxZeroWidthItems is the largest count List will decode
// for elements whose encoding consumes no input (such as Unit).
// Other counts are bounded by the length of the input.
const MaxZeroWidthItems = 1 << 20

// List produces the Codec for []T:
// a uint64 count followed by each element's encoding.
// Decoding yields a non-nil slice.
func List[T any](c Codec[T]) Codec[[]T] {
	return NewCodec(
		func(s *Sink, items []T) error {
			if err := s.WriteUint64(uint64(len(items))); err != nil {
				return err
			}
			for _, item := range items {
				if err := c.Encode(s, item); err != nil {
					return err
				}
			}
			return nil
		},
		func(s *Source) ([]T, error) {
			n, err := s.ReadUint64()
			if err != nil {
				return nil, err
			}
			const maxPrealloc = 1024
			out := make([]T, 0, min(n, maxPrealloc))
			for i := uint64(0); i < n; i++ {
				before := s.n
				item, err := c.Decode(s)
				if err != nil {
					return nil, err
				}
				if s.n == before && n > MaxZeroWidthItems {
					// Nothing in the input bounds the count.
					return nil, &DecodeError{What: "list", Err: fmt.Errorf("%d zero-width items exceeds limit of %d", n, MaxZeroWidthItems)}
				}
				out = append(out, item)
			}
			return out, nil
		},
	)
}
