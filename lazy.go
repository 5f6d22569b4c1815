package cas

import (
	"context"
	"errors"
	"sync"
)

// Lazy is a deferred reference to a value of type U.
//
// A Lazy made by MakeLazy holds a value that has not yet been hashed or stored.
// It is stored the first time it is forced,
// either explicitly with Force
// or by encoding a value that contains it (see LazyOf).
// After that its digest is cached:
// forcing it again, or encoding it again into the same backend,
// neither stores anything nor changes the digest.
//
// A Lazy produced by decoding holds only a digest;
// Value fetches the value on first use and keeps it.
//
// Force and Value lock the store.
// They must not be called from inside a Codec's Encode or Decode,
// where the lock is already held;
// use the Sink or Source there instead.
type Lazy[U any] struct {
	h     *handle
	codec Codec[U]

	mu     sync.Mutex // acquired after h.mu when both are needed
	value  U
	loaded bool // value is valid
	digest Digest
	stored bool // digest is valid and present in h.backend
}

// MakeLazy wraps v in a Lazy bound to the backend and hasher of s.
// It does no I/O.
func MakeLazy[U, T any](s *Store[T], c Codec[U], v U) *Lazy[U] {
	return &Lazy[U]{h: s.h, codec: c, value: v, loaded: true}
}

// ErrForeignLazy is the error encoding a Lazy that was decoded from one backend,
// and never loaded,
// into a different backend.
var ErrForeignLazy = errors.New("unloaded lazy value belongs to another backend")

// Digest returns the cached digest of l,
// and false if l has not been stored yet.
func (l *Lazy[U]) Digest() (Digest, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.digest, l.stored
}

// Loaded tells whether l's value is in memory.
func (l *Lazy[U]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Force stores l's value, if that has not happened yet,
// and returns its digest.
func (l *Lazy[U]) Force(ctx context.Context) (Digest, error) {
	if d, ok := l.Digest(); ok {
		return d, nil
	}

	l.h.mu.Lock()
	defer l.h.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stored {
		return l.digest, nil
	}
	d, err := l.h.put(ctx, func(sink *Sink) error {
		return l.codec.Encode(sink, l.value)
	})
	if err != nil {
		return Zero, err
	}
	l.digest, l.stored = d, true
	return d, nil
}

// Value returns l's value,
// fetching and decoding it first if necessary.
func (l *Lazy[U]) Value(ctx context.Context) (U, error) {
	l.mu.Lock()
	if l.loaded {
		v := l.value
		l.mu.Unlock()
		return v, nil
	}
	l.mu.Unlock()

	l.h.mu.RLock()
	defer l.h.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		err := l.h.get(ctx, l.digest, func(src *Source) error {
			v, err := l.codec.Decode(src)
			if err != nil {
				return err
			}
			l.value, l.loaded = v, true
			return nil
		})
		if err != nil {
			var zero U
			return zero, err
		}
	}
	return l.value, nil
}

// LazyOf produces the Codec for *Lazy[U].
// A Lazy is encoded as the digest of its value,
// which is stored (if necessary) in the backend being written.
// Decoding produces an unloaded Lazy bound to the backend being read.
func LazyOf[U any](c Codec[U]) Codec[*Lazy[U]] {
	return NewCodec(
		func(s *Sink, l *Lazy[U]) error {
			if l == nil {
				return ErrNilPointer
			}

			l.mu.Lock()
			defer l.mu.Unlock()

			if l.stored && l.h == s.h {
				return s.WriteDigest(l.digest)
			}
			if !l.loaded {
				return ErrForeignLazy
			}
			d, err := s.Nested(func(nested *Sink) error {
				return c.Encode(nested, l.value)
			})
			if err != nil {
				return err
			}
			if l.h == s.h {
				l.digest, l.stored = d, true
			}
			return s.WriteDigest(d)
		},
		func(s *Source) (*Lazy[U], error) {
			d, err := s.ReadDigest()
			if err != nil {
				return nil, err
			}
			return &Lazy[U]{h: s.h, codec: c, digest: d, stored: true}, nil
		},
	)
}
