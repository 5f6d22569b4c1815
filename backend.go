package cas

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNotFound is the error returned
// when a lookup digest has no entry in a backend.
var ErrNotFound = errors.New("not found")

// EncodeFunc writes the canonical encoding of a value to w.
// The backend b is the one w belongs to;
// the function may use it to store nested objects.
type EncodeFunc func(w io.Writer, b Backend) error

// DecodeFunc reads a stored encoding from r.
type DecodeFunc func(r io.Reader) error

// Backend is a storage medium indexed by digest.
//
// Implementations must be all-or-nothing:
// when the EncodeFunc given to Store fails,
// nothing may be inserted for that call.
// Entries are never modified once inserted;
// storing bytes under a digest that is already present keeps the old bytes.
// Request must fail with ErrNotFound (possibly wrapped) for unknown digests.
//
// A Backend does no locking on behalf of its callers.
// Store wraps every Backend in a reader-writer lock:
// Store calls happen under the write lock and Request calls under the read lock.
type Backend interface {
	// Store calls encode exactly once,
	// giving it a writer whose bytes are hashed with a Hasher from f as they go by,
	// and a reference to this backend for nested stores.
	// If encode succeeds,
	// the bytes are inserted under their digest,
	// which is returned.
	Store(ctx context.Context, encode EncodeFunc, f HasherFactory) (Digest, error)

	// Request looks up the bytes stored under d
	// and calls decode with a reader over them,
	// returning decode's result.
	Request(ctx context.Context, d Digest, decode DecodeFunc) error
}

// Getter is a read-only BlobStore.
type Getter interface {
	// Get gets the bytes stored under d.
	// It returns ErrNotFound if there are none.
	// The caller owns the returned slice.
	Get(ctx context.Context, d Digest) ([]byte, error)

	// ListDigests calls a function for each digest in the store in lexicographic order,
	// beginning with the first digest _after_ the specified one.
	//
	// The calls reflect at least the set of digests
	// known at the moment ListDigests was called.
	// It is unspecified whether later changes,
	// that happen concurrently with ListDigests,
	// are reflected.
	//
	// If the callback function returns an error,
	// ListDigests exits with that error.
	ListDigests(ctx context.Context, start Digest, f func(Digest) error) error
}

// BlobStore is a simple digest-keyed byte store.
// It is the lower layer of most Backends (see NewBackend).
//
// A BlobStore trusts its callers to supply the right digest for each blob;
// digests should come from a Hasher over exactly those bytes.
type BlobStore interface {
	Getter

	// Put stores b under d if d was not already present.
	// It reports whether b had to be added.
	// The store does not retain b after Put returns.
	Put(ctx context.Context, d Digest, b []byte) (added bool, err error)
}

// NewBackend produces a Backend storing into s.
// Encodings are buffered in memory and hashed as they are written;
// only a complete encoding is passed to s.Put.
//
// If s is itself a Backend, it is returned unchanged.
func NewBackend(s BlobStore) Backend {
	if b, ok := s.(Backend); ok {
		return b
	}
	return &blobBackend{s: s}
}

type blobBackend struct {
	s  BlobStore
	mu sync.RWMutex
}

var (
	_ Backend = &blobBackend{}
	_ Locker  = &blobBackend{}
)

// Locker is implemented by Backends that supply the lock
// shared by every Store over them.
// Backends produced by NewBackend implement it.
// A Store over a Backend that does not
// has a lock of its own,
// and other Stores share it only when made with Derive.
type Locker interface {
	StoreLock() *sync.RWMutex
}

func (b *blobBackend) StoreLock() *sync.RWMutex {
	return &b.mu
}

func (b *blobBackend) Store(ctx context.Context, encode EncodeFunc, f HasherFactory) (Digest, error) {
	buf := new(bytes.Buffer)
	hw := NewHashingWriter(buf, f)
	if err := encode(hw, b); err != nil {
		return Zero, err
	}
	d := hw.Sum()
	if _, err := b.s.Put(ctx, d, buf.Bytes()); err != nil {
		return Zero, err
	}
	return d, nil
}

func (b *blobBackend) Request(ctx context.Context, d Digest, decode DecodeFunc) error {
	blob, err := b.s.Get(ctx, d)
	if err != nil {
		return err
	}
	return decode(bytes.NewReader(blob))
}

// BlobStoreOf returns the BlobStore underlying a Backend produced by NewBackend,
// or the Backend itself if it is a BlobStore.
// It returns nil otherwise.
func BlobStoreOf(b Backend) BlobStore {
	switch b := b.(type) {
	case *blobBackend:
		return b.s
	case BlobStore:
		return b
	}
	return nil
}
