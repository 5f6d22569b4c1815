// Package badger implements a blob store in a Badger key-value database.
package badger

import (
	"bytes"
	"context"
	stderrs "errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store is a Badger-based blob store.
// Keys are digests and values are blobs.
type Store struct {
	db *badger.DB
}

// New produces a new Store using db for storage.
// The Store owns the keyspace of db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a Badger database in dir
// and produces a Store over it.
// If dir is empty, the database is in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger db in %q", dir)
	}
	return New(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get gets the blob with digest d.
func (s *Store) Get(_ context.Context, d cas.Digest) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(d[:])
		if stderrs.Is(err, badger.ErrKeyNotFound) {
			return cas.ErrNotFound
		}
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, cas.ErrNotFound) {
		return nil, cas.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s", d)
	}
	if blob == nil {
		blob = []byte{}
	}
	return blob, nil
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	for {
		var added bool
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(d[:])
			if err == nil {
				return nil
			}
			if !stderrs.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			added = true
			return txn.Set(d[:], append([]byte{}, b...))
		})
		if stderrs.Is(err, badger.ErrConflict) {
			// A concurrent transaction touched the same key.
			if err := ctx.Err(); err != nil {
				return false, err
			}
			continue
		}
		if err != nil {
			return false, errors.Wrapf(err, "storing %s", d)
		}
		return added, nil
	}
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start[:]); it.Valid(); it.Next() {
			key := it.Item().Key()
			if bytes.Equal(key, start[:]) {
				continue
			}
			d, err := cas.DigestFromBytes(key)
			if err != nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(d); err != nil {
				return err
			}
		}
		return nil
	})
}

func init() {
	backend.Register("badger", func(_ context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		dir, _ := conf["dir"].(string)
		if inmem, _ := conf["inmem"].(bool); !inmem && dir == "" {
			return nil, errors.New(`missing "dir" parameter`)
		}
		return Open(dir)
	})
}
