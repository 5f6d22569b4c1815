// Package mem implements an in-memory blob store.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store is a memory-based implementation of a blob store.
// Blobs are copied on the way in and on the way out,
// so the store never shares memory with its callers.
type Store struct {
	mu    sync.RWMutex
	blobs map[cas.Digest][]byte
}

// New produces a new Store.
func New() *Store {
	return &Store{
		blobs: make(map[cas.Digest][]byte),
	}
}

// NewBackend produces a cas.Backend over a new Store.
func NewBackend() cas.Backend {
	return cas.NewBackend(New())
}

// Get gets the blob with digest d.
func (s *Store) Get(_ context.Context, d cas.Digest) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[d]
	if !ok {
		return nil, cas.ErrNotFound
	}
	return append([]byte{}, b...), nil
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(_ context.Context, d cas.Digest, b []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[d]; ok {
		return false, nil
	}
	s.blobs[d] = append([]byte{}, b...)
	return true, nil
}

// Len tells how many blobs are in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	s.mu.RLock()
	digests := make([]cas.Digest, 0, len(s.blobs))
	for d := range s.blobs {
		digests = append(digests, d)
	}
	s.mu.RUnlock()

	sort.Slice(digests, func(i, j int) bool { return digests[i].Less(digests[j]) })
	index := sort.Search(len(digests), func(n int) bool {
		return start.Less(digests[n])
	})

	for i := index; i < len(digests); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(digests[i]); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	backend.Register("mem", func(context.Context, map[string]interface{}) (cas.BlobStore, error) {
		return New(), nil
	})
}
