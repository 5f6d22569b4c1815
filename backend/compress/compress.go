// Package compress implements a blob store that compresses and uncompresses blobs
// on their way into and out of a nested store.
//
// Blobs keep their digests:
// the nested store holds each blob under the digest of its uncompressed bytes.
// The stored bytes begin with a tag byte,
// 0 for a blob stored as-is (because compressing did not make it smaller)
// and 1 for a compressed blob.
package compress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

const (
	tagRaw        = 0
	tagCompressed = 1
)

// Store is a compressing blob store.
type Store struct {
	s cas.BlobStore
	c Compressor
}

// Compressor compresses and uncompresses byte slices.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Uncompress([]byte) ([]byte, error)
}

// New produces a new Store compressing blobs with c
// and storing them in s.
func New(s cas.BlobStore, c Compressor) *Store {
	return &Store{s: s, c: c}
}

// Get gets the blob with digest d.
func (s *Store) Get(ctx context.Context, d cas.Digest) ([]byte, error) {
	stored, err := s.s.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, errors.Errorf("stored blob %s has no tag byte", d)
	}
	switch stored[0] {
	case tagRaw:
		return stored[1:], nil
	case tagCompressed:
		blob, err := s.c.Uncompress(stored[1:])
		return blob, errors.Wrapf(err, "uncompressing blob %s", d)
	}
	return nil, errors.Errorf("stored blob %s has unknown tag %d", d, stored[0])
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	cblob, err := s.c.Compress(b)
	if err != nil {
		return false, errors.Wrap(err, "compressing blob")
	}

	var stored []byte
	if len(cblob) < len(b) {
		stored = append([]byte{tagCompressed}, cblob...)
	} else {
		stored = append([]byte{tagRaw}, b...)
	}

	added, err := s.s.Put(ctx, d, stored)
	return added, errors.Wrap(err, "storing compressed blob")
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	return s.s.ListDigests(ctx, start, f)
}

func init() {
	backend.Register("compress", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		name := "zstd"
		if n, ok := conf["compressor"].(string); ok {
			name = n
		}
		c, err := ByName(name)
		if err != nil {
			return nil, err
		}
		nested, err := backend.Nested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, c), nil
	})
}

// Close closes the nested store.
func (s *Store) Close() error {
	return backend.Close(s.s)
}
