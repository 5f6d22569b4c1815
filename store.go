package cas

import (
	"context"
	"io"
	"sync"
)

// handle is the shared state of all Stores over one backend.
type handle struct {
	mu      *sync.RWMutex // write-locked by Put and Force, read-locked by Get and Lazy.Value
	backend Backend
	hasher  HasherFactory
}

func newHandle(b Backend, f HasherFactory) *handle {
	h := &handle{backend: b, hasher: f}
	if l, ok := b.(Locker); ok {
		h.mu = l.StoreLock()
	} else {
		h.mu = new(sync.RWMutex)
	}
	return h
}

// Store stores and retrieves values of type T in a Backend.
//
// The backend itself is untyped:
// a digest obtained from a Store[T] should be given back only to a Store[T]
// (or another Store whose Codec reads the same encoding).
// Mismatches normally surface as a *DecodeError from Get.
//
// A Store is safe for concurrent use.
// Puts exclude all other operations on the backend;
// Gets may run concurrently with one another.
type Store[T any] struct {
	h     *handle
	codec Codec[T]
}

// NewStore produces a Store of T values in b,
// encoded with c and hashed with hashers from f.
// If f is nil, DefaultHasher is used.
//
// All Stores over the same Backend share one lock
// when the Backend implements Locker,
// as those produced by NewBackend do.
// Otherwise each Store created by NewStore has its own lock;
// to put more than one type in such a backend,
// create the other Stores with Derive.
func NewStore[T any](b Backend, f HasherFactory, c Codec[T]) *Store[T] {
	if f == nil {
		f = DefaultHasher
	}
	return &Store[T]{
		h:     newHandle(b, f),
		codec: c,
	}
}

// Derive produces a Store of U values
// sharing the backend, hasher, and lock of s.
func Derive[U, T any](s *Store[T], c Codec[U]) *Store[U] {
	return &Store[U]{h: s.h, codec: c}
}

// Hasher returns the HasherFactory of s.
func (s *Store[T]) Hasher() HasherFactory {
	return s.h.hasher
}

// Codec returns the Codec of s.
func (s *Store[T]) Codec() Codec[T] {
	return s.codec
}

// Put stores v and returns its digest.
// Storing a value that is already present is harmless
// and produces the same digest.
func (s *Store[T]) Put(ctx context.Context, v T) (Digest, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()

	return s.h.put(ctx, func(sink *Sink) error {
		return s.codec.Encode(sink, v)
	})
}

// Caller must hold the write lock.
func (h *handle) put(ctx context.Context, encode func(*Sink) error) (Digest, error) {
	return h.backend.Store(ctx, func(w io.Writer, b Backend) error {
		return encode(&Sink{ctx: ctx, w: w, backend: b, hasher: h.hasher, h: h})
	}, h.hasher)
}

// Get retrieves the value stored under d.
// It fails with ErrNotFound if there is no such value,
// with a *DecodeError if the stored bytes are not a valid encoding for T,
// and otherwise with whatever error the backend reports.
func (s *Store[T]) Get(ctx context.Context, d Digest) (T, error) {
	s.h.mu.RLock()
	defer s.h.mu.RUnlock()

	var result T
	err := s.h.get(ctx, d, func(src *Source) error {
		v, err := s.codec.Decode(src)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Caller must hold the read lock.
func (h *handle) get(ctx context.Context, d Digest, decode func(*Source) error) error {
	return request(ctx, h.backend, h.hasher, h, d, decode)
}
