// Package file implements a blob store as a file hierarchy.
package file

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var (
	_ cas.BlobStore = &Store{}
	_ cas.Backend   = &Store{}
	_ cas.Locker    = &Store{}
)

// Store is a file-based implementation of a blob store.
// Each blob is a file named by the hex of its digest,
// two directory levels down from root/blobs.
//
// Store is also a cas.Backend,
// streaming encodings straight to disk
// rather than buffering them in memory.
type Store struct {
	root string
	mu   sync.RWMutex // see StoreLock
}

// StoreLock implements cas.Locker.
func (s *Store) StoreLock() *sync.RWMutex {
	return &s.mu
}

// New produces a new Store storing data beneath root.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) blobroot() string {
	return filepath.Join(s.root, "blobs")
}

func (s *Store) tmproot() string {
	return filepath.Join(s.root, "tmp")
}

func (s *Store) blobpath(d cas.Digest) string {
	h := d.String()
	return filepath.Join(s.blobroot(), h[:2], h[:4], h)
}

// Get gets the blob with digest d.
func (s *Store) Get(_ context.Context, d cas.Digest) ([]byte, error) {
	path := s.blobpath(d)
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, cas.ErrNotFound
	}
	return blob, errors.Wrapf(err, "reading %s", path)
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(_ context.Context, d cas.Digest, b []byte) (bool, error) {
	return s.write(d, func(w io.Writer) (cas.Digest, error) {
		_, err := w.Write(b)
		return d, err
	})
}

// Store implements cas.Backend.
func (s *Store) Store(_ context.Context, encode cas.EncodeFunc, f cas.HasherFactory) (cas.Digest, error) {
	var d cas.Digest
	_, err := s.write(cas.Zero, func(w io.Writer) (cas.Digest, error) {
		hw := cas.NewHashingWriter(w, f)
		if err := encode(hw, s); err != nil {
			return cas.Zero, err
		}
		d = hw.Sum()
		return d, nil
	})
	return d, err
}

// Request implements cas.Backend.
func (s *Store) Request(_ context.Context, d cas.Digest, decode cas.DecodeFunc) error {
	path := s.blobpath(d)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cas.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	return decode(bufio.NewReader(f))
}

// write fills a temporary file with fill,
// then links it into place under the digest fill returns.
// Linking fails if the blob already exists,
// which makes the store insert-only,
// and readers never see a partly written blob.
func (s *Store) write(d cas.Digest, fill func(io.Writer) (cas.Digest, error)) (added bool, err error) {
	if err := os.MkdirAll(s.tmproot(), 0755); err != nil {
		return false, errors.Wrapf(err, "ensuring path %s exists", s.tmproot())
	}

	tmp, err := os.CreateTemp(s.tmproot(), "blob")
	if err != nil {
		return false, errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	d, err = fill(bw)
	if err != nil {
		tmp.Close()
		return false, err
	}
	if err = bw.Flush(); err != nil {
		tmp.Close()
		return false, errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err = tmp.Close(); err != nil {
		return false, errors.Wrapf(err, "closing %s", tmp.Name())
	}

	var (
		path = s.blobpath(d)
		dir  = filepath.Dir(path)
	)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return false, errors.Wrapf(err, "ensuring path %s exists", dir)
	}
	err = os.Link(tmp.Name(), path)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "linking %s", path)
	}
	return true, nil
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	topLevel, err := os.ReadDir(s.blobroot())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", s.blobroot())
	}

	startHex := start.String()
	topIndex := sort.Search(len(topLevel), func(n int) bool {
		return topLevel[n].Name() >= startHex[:2]
	})
	for i := topIndex; i < len(topLevel); i++ {
		topInfo := topLevel[i]
		if !topInfo.IsDir() {
			continue
		}
		topName := topInfo.Name()
		if len(topName) != 2 {
			continue
		}
		if _, err = strconv.ParseInt(topName, 16, 64); err != nil {
			continue
		}

		midLevel, err := os.ReadDir(filepath.Join(s.blobroot(), topName))
		if err != nil {
			return errors.Wrapf(err, "reading dir %s/%s", s.blobroot(), topName)
		}
		midIndex := sort.Search(len(midLevel), func(n int) bool {
			return midLevel[n].Name() >= startHex[:4]
		})
		for j := midIndex; j < len(midLevel); j++ {
			midInfo := midLevel[j]
			if !midInfo.IsDir() {
				continue
			}
			midName := midInfo.Name()
			if len(midName) != 4 {
				continue
			}
			if _, err = strconv.ParseInt(midName, 16, 64); err != nil {
				continue
			}

			blobInfos, err := os.ReadDir(filepath.Join(s.blobroot(), topName, midName))
			if err != nil {
				return errors.Wrapf(err, "reading dir %s/%s/%s", s.blobroot(), topName, midName)
			}

			index := sort.Search(len(blobInfos), func(n int) bool {
				return blobInfos[n].Name() > startHex
			})
			for k := index; k < len(blobInfos); k++ {
				blobInfo := blobInfos[k]
				if blobInfo.IsDir() {
					continue
				}

				d, err := cas.DigestFromHex(blobInfo.Name())
				if err != nil {
					continue
				}

				if err := ctx.Err(); err != nil {
					return err
				}
				if err = f(d); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func init() {
	backend.Register("file", func(_ context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
