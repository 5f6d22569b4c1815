package cas

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Hasher is an incremental digest accumulator.
// Bytes are absorbed with Write, any number of times,
// and the result is obtained with Sum.
// A Hasher is good for one digest:
// Write after Sum fails with ErrFinalized,
// and repeated calls to Sum return the same Digest.
type Hasher interface {
	io.Writer
	Sum() Digest
}

// HasherFactory produces fresh, independent Hashers.
// It carries no state of its own
// and may be shared by any number of concurrent operations.
type HasherFactory func() Hasher

// ErrFinalized is the error returned when writing to a Hasher after calling its Sum method.
var ErrFinalized = errors.New("hasher already finalized")

// HashFunc adapts a constructor of stdlib-style hashes to a HasherFactory.
// The hashes must produce DigestSize-byte sums.
func HashFunc(newHash func() hash.Hash) (HasherFactory, error) {
	if size := newHash().Size(); size != DigestSize {
		return nil, fmt.Errorf("hash size is %d, want %d", size, DigestSize)
	}
	return func() Hasher {
		return &stdHasher{h: newHash()}
	}, nil
}

func mustHashFunc(newHash func() hash.Hash) HasherFactory {
	f, err := HashFunc(newHash)
	if err != nil {
		panic(err)
	}
	return f
}

type stdHasher struct {
	h    hash.Hash
	sum  Digest
	done bool
}

func (s *stdHasher) Write(p []byte) (int, error) {
	if s.done {
		return 0, ErrFinalized
	}
	return s.h.Write(p)
}

func (s *stdHasher) Sum() Digest {
	if !s.done {
		copy(s.sum[:], s.h.Sum(nil))
		s.done = true
		s.h = nil
	}
	return s.sum
}

var (
	// Blake2b produces BLAKE2b-256 Hashers.
	Blake2b = mustHashFunc(func() hash.Hash {
		h, _ := blake2b.New256(nil) // error only for oversized keys
		return h
	})

	// Blake3 produces BLAKE3 Hashers with 32-byte output.
	Blake3 = mustHashFunc(func() hash.Hash { return blake3.New() })

	// SHA256 produces SHA2-256 Hashers.
	SHA256 = mustHashFunc(sha256.New)

	// DefaultHasher is the HasherFactory used when none is given.
	DefaultHasher = Blake2b
)

var hashers = map[string]HasherFactory{
	"blake2b": Blake2b,
	"blake3":  Blake3,
	"sha256":  SHA256,
}

// HasherByName returns the HasherFactory with the given name:
// one of "blake2b", "blake3", or "sha256".
// The empty string selects DefaultHasher.
func HasherByName(name string) (HasherFactory, error) {
	if name == "" {
		return DefaultHasher, nil
	}
	if f, ok := hashers[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown hash %q (known: %v)", name, HasherNames())
}

// HasherNames lists the names accepted by HasherByName, sorted.
func HasherNames() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum hashes b in one call using a Hasher from f.
func Sum(f HasherFactory, b []byte) Digest {
	h := f()
	_, _ = h.Write(b) // a fresh Hasher does not fail
	return h.Sum()
}
