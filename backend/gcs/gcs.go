// Package gcs implements a blob store on Google Cloud Storage.
package gcs

import (
	"context"
	stderrs "errors"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store is a Google Cloud Storage-based implementation of a blob store.
// Each blob is an object named "b:" followed by the hex of its digest.
type Store struct {
	bucket *storage.BucketHandle
}

// New produces a new Store.
func New(bucket *storage.BucketHandle) *Store {
	return &Store{bucket: bucket}
}

// Get gets the blob with digest d.
func (s *Store) Get(ctx context.Context, d cas.Digest) ([]byte, error) {
	name := blobObjName(d)
	r, err := s.bucket.Object(name).NewReader(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil, cas.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading info of object %s", name)
	}
	defer r.Close()

	b := make([]byte, r.Attrs.Size)
	_, err = io.ReadFull(r, b)
	return b, errors.Wrapf(err, "reading contents of object %s", name)
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	var (
		name = blobObjName(d)
		obj  = s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true})
		w    = obj.NewWriter(ctx)
	)

	if _, err := w.Write(b); err != nil {
		w.Close()
		if isPreconditionFailed(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "writing object %s", name)
	}

	// The precondition is checked when the upload completes.
	err := w.Close()
	if isPreconditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "writing object %s", name)
	}
	return true, nil
}

func isPreconditionFailed(err error) bool {
	var e *googleapi.Error
	return stderrs.As(err, &e) && e.Code == http.StatusPreconditionFailed
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	// Google Cloud Storage iterators can filter by object-name prefix.
	// So we take (the hex encoding of) start and repeatedly compute prefixes for the objects we want.
	// If start is e67a, for example, the sequence of generated prefixes is:
	//   e67b e67c e67d e67e e67f
	//   e68 e69 e6a e6b e6c e6d e6e e6f
	//   e7 e8 e9 ea eb ec ed ee ef
	//   f
	return eachHexPrefix(start.String(), false, func(prefix string) error {
		return s.listDigests(ctx, prefix, f)
	})
}

func (s *Store) listDigests(ctx context.Context, prefix string, f func(cas.Digest) error) error {
	iter := s.bucket.Objects(ctx, &storage.Query{Prefix: blobPrefix + prefix})
	for {
		obj, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "iterating over blob objects")
		}
		d, err := digestFromBlobObjName(obj.Name)
		if err != nil {
			return err
		}
		if err = f(d); err != nil {
			return err
		}
	}
}

func eachHexPrefix(prefix string, incl bool, f func(string) error) error {
	prefix = strings.ToLower(prefix)
	for len(prefix) > 0 {
		end := hexval(prefix[len(prefix)-1:][0])
		if !incl {
			end++
		}
		prefix = prefix[:len(prefix)-1]
		for c := end; c < 16; c++ {
			err := f(prefix + string(hexdigit(c)))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func hexval(b byte) int {
	switch {
	case '0' <= b && b <= '9':
		return int(b - '0')
	case 'a' <= b && b <= 'f':
		return int(10 + b - 'a')
	case 'A' <= b && b <= 'F':
		return int(10 + b - 'A')
	}
	return 0
}

func hexdigit(n int) byte {
	if n < 10 {
		return byte(n + '0')
	}
	return byte(n - 10 + 'a')
}

const blobPrefix = "b:"

func blobObjName(d cas.Digest) string {
	return blobPrefix + d.String()
}

func digestFromBlobObjName(name string) (cas.Digest, error) {
	if !strings.HasPrefix(name, blobPrefix) {
		return cas.Zero, errors.Errorf("object name %s is not a blob name", name)
	}
	d, err := cas.DigestFromHex(name[len(blobPrefix):])
	return d, errors.Wrapf(err, "decoding object name %s", name)
}

func init() {
	backend.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		var options []option.ClientOption
		creds, ok := conf["creds"].(string)
		if !ok {
			return nil, errors.New(`missing "creds" parameter`)
		}
		bucketName, ok := conf["bucket"].(string)
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		options = append(options, option.WithCredentialsFile(creds))
		c, err := storage.NewClient(ctx, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName)), nil
	})
}
