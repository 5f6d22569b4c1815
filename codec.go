package cas

import (
	"context"
	"encoding/binary"
	stderrs "errors"
	"fmt"
	"io"
)

// Codec defines the canonical byte encoding of values of type T.
//
// Encodings must be deterministic
// (equal values produce equal bytes, and therefore equal digests)
// and must round-trip:
// Decode must reproduce any value written by Encode.
//
// Encode should fail only when writing to the Sink fails.
// Decode must report malformed input with an error
// (normally a *DecodeError),
// never with a panic.
type Codec[T any] interface {
	Encode(*Sink, T) error
	Decode(*Source) (T, error)
}

// NewCodec produces a Codec from a pair of functions.
func NewCodec[T any](enc func(*Sink, T) error, dec func(*Source) (T, error)) Codec[T] {
	return funcCodec[T]{enc: enc, dec: dec}
}

type funcCodec[T any] struct {
	enc func(*Sink, T) error
	dec func(*Source) (T, error)
}

func (c funcCodec[T]) Encode(s *Sink, v T) error  { return c.enc(s, v) }
func (c funcCodec[T]) Decode(s *Source) (T, error) { return c.dec(s) }

// Content is implemented by types that define their own encoding.
// UnmarshalContent must be implemented on a pointer receiver.
// See Self.
type Content interface {
	MarshalContent(*Sink) error
	UnmarshalContent(*Source) error
}

// Self produces the Codec for a type whose pointer implements Content.
//
//	store := cas.NewStore(backend, nil, cas.Self[MyType]())
func Self[T any, PT interface {
	*T
	Content
}]() Codec[T] {
	return selfCodec[T, PT]{}
}

type selfCodec[T any, PT interface {
	*T
	Content
}] struct{}

func (selfCodec[T, PT]) Encode(s *Sink, v T) error {
	return PT(&v).MarshalContent(s)
}

func (selfCodec[T, PT]) Decode(s *Source) (T, error) {
	var v T
	err := PT(&v).UnmarshalContent(s)
	return v, err
}

var (
	// ErrInvalidTag is wrapped in the DecodeError for a tag byte outside its allowed set.
	ErrInvalidTag = stderrs.New("invalid tag byte")

	// ErrTrailingData is wrapped in the DecodeError for bytes left over after decoding a value.
	ErrTrailingData = stderrs.New("trailing data")
)

// DecodeError reports stored bytes that do not form a valid encoding:
// truncated input, an invalid tag, or leftover data.
// It is distinct from the I/O errors of the storage medium.
type DecodeError struct {
	What string // what was being decoded
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %s", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError tells whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return stderrs.As(err, &e)
}

// truncation turns end-of-input into a DecodeError
// and leaves other (I/O) errors alone.
func truncation(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &DecodeError{What: what, Err: io.ErrUnexpectedEOF}
	}
	return err
}

// Sink is the write cursor handed to Codec.Encode.
// Besides raw bytes,
// it can store nested objects in the backend being written to.
// A Sink is valid only during the Encode call that received it.
type Sink struct {
	ctx     context.Context
	w       io.Writer
	backend Backend
	hasher  HasherFactory
	h       *handle
}

// NewSink produces a Sink writing to w,
// storing nested objects in b
// hashed with f.
// It is for Backend implementations and tests;
// Store.Put constructs its own Sinks.
func NewSink(ctx context.Context, w io.Writer, b Backend, f HasherFactory) *Sink {
	return &Sink{ctx: ctx, w: w, backend: b, hasher: f, h: newHandle(b, f)}
}

// Context returns the context of the Put being encoded.
func (s *Sink) Context() context.Context {
	return s.ctx
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *Sink) writeAll(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

// WriteByte implements io.ByteWriter.
func (s *Sink) WriteByte(c byte) error {
	return s.writeAll([]byte{c})
}

// WriteUint16 writes v big-endian.
func (s *Sink) WriteUint16(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return s.writeAll(buf[:])
}

// WriteUint32 writes v big-endian.
func (s *Sink) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return s.writeAll(buf[:])
}

// WriteUint64 writes v big-endian.
func (s *Sink) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return s.writeAll(buf[:])
}

// WriteDigest writes the DigestSize bytes of d.
func (s *Sink) WriteDigest(d Digest) error {
	return s.writeAll(d[:])
}

// Nested stores a separate object in the backend,
// with encode writing its bytes,
// and returns the object's digest.
// Nothing is written to s itself;
// callers typically follow up with WriteDigest.
func (s *Sink) Nested(encode func(*Sink) error) (Digest, error) {
	return s.backend.Store(s.ctx, func(w io.Writer, b Backend) error {
		return encode(&Sink{ctx: s.ctx, w: w, backend: b, hasher: s.hasher, h: s.h})
	}, s.hasher)
}

// Source is the read cursor handed to Codec.Decode.
// Besides raw bytes,
// it can fetch and decode objects referenced by digest.
// A Source is valid only during the Decode call that received it.
type Source struct {
	ctx     context.Context
	r       io.Reader
	backend Backend
	hasher  HasherFactory
	h       *handle
	n       int64 // bytes consumed from r
}

// NewSource produces a Source reading from r,
// resolving references in b.
// It is for Backend implementations and tests;
// Store.Get constructs its own Sources.
func NewSource(ctx context.Context, r io.Reader, b Backend, f HasherFactory) *Source {
	return &Source{ctx: ctx, r: r, backend: b, hasher: f, h: newHandle(b, f)}
}

// Context returns the context of the Get being decoded.
func (s *Source) Context() context.Context {
	return s.ctx
}

// Hasher returns the HasherFactory of the store being read.
func (s *Source) Hasher() HasherFactory {
	return s.hasher
}

// Read implements io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.n += int64(n)
	return n, err
}

// ReadFull fills p,
// failing with a *DecodeError if the input ends first.
func (s *Source) ReadFull(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.n += int64(n)
	return truncation(fmt.Sprintf("%d bytes", len(p)), err)
}

// ReadByte implements io.ByteReader.
func (s *Source) ReadByte() (byte, error) {
	var buf [1]byte
	if err := s.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads a big-endian uint16.
func (s *Source) ReadUint16() (uint16, error) {
	var buf [2]byte
	if err := s.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a big-endian uint32.
func (s *Source) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := s.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a big-endian uint64.
func (s *Source) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := s.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadDigest reads DigestSize bytes as a Digest.
func (s *Source) ReadDigest() (Digest, error) {
	var d Digest
	err := s.ReadFull(d[:])
	return d, err
}

// Request fetches the object stored under d
// and calls decode with a Source over its bytes.
// It fails with ErrNotFound if there is no such object,
// and with a *DecodeError if decode leaves bytes unread.
func (s *Source) Request(d Digest, decode func(*Source) error) error {
	return request(s.ctx, s.backend, s.hasher, s.h, d, decode)
}

// finish makes sure the whole encoding was consumed.
func (s *Source) finish() error {
	var buf [1]byte
	n, err := io.ReadFull(s.r, buf[:])
	if n > 0 {
		return &DecodeError{What: "end of value", Err: ErrTrailingData}
	}
	if err == io.EOF {
		return nil
	}
	return err
}

func request(ctx context.Context, b Backend, f HasherFactory, h *handle, d Digest, decode func(*Source) error) error {
	var called bool
	err := b.Request(ctx, d, func(r io.Reader) error {
		called = true
		src := &Source{ctx: ctx, r: r, backend: b, hasher: f, h: h}
		if err := decode(src); err != nil {
			return err
		}
		return src.finish()
	})
	if err != nil {
		return err
	}
	if !called {
		return fmt.Errorf("backend did not call decode function for %s", d)
	}
	return nil
}
