package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/bobg/cas"
)

// DefaultConcurrency is the number of goroutines GetMulti and PutMulti use.
const DefaultConcurrency = 8

// MultiErr is a type of error returned by GetMulti and PutMulti.
// It maps individual digests to errors encountered trying to Get or Put them.
type MultiErr map[cas.Digest]error

// Error implements the error interface.
func (e MultiErr) Error() string {
	strs := make([]string, 0, len(e))
	for d, err := range e {
		strs = append(strs, fmt.Sprintf("%s: %s", d, err))
	}
	sort.Strings(strs)
	return "error(s): " + strings.Join(strs, "; ")
}

// GetMulti gets multiple blobs concurrently.
// The return value maps input digests to the blobs that were found in g.
// The returned error may be a MultiErr,
// mapping input digests to errors encountered retrieving those specific blobs
// (including cas.ErrNotFound).
// This function may return a successful partial result even in case of error.
// In particular, when the error return is a MultiErr,
// every input digest appears in either the result map or the MultiErr map.
func GetMulti(ctx context.Context, g cas.Getter, digests []cas.Digest) (map[cas.Digest][]byte, error) {
	type triple struct {
		d    cas.Digest
		blob []byte
		err  error
	}

	p := pool.NewWithResults[triple]().WithMaxGoroutines(DefaultConcurrency)
	for _, d := range digests {
		d := d
		p.Go(func() triple {
			blob, err := g.Get(ctx, d)
			return triple{d: d, blob: blob, err: err}
		})
	}

	var (
		res    = make(map[cas.Digest][]byte)
		errmap MultiErr
	)
	for _, trip := range p.Wait() {
		if trip.err != nil {
			if errmap == nil {
				errmap = make(MultiErr)
			}
			errmap[trip.d] = trip.err
			continue
		}
		res[trip.d] = trip.blob
	}
	if errmap != nil {
		return res, errmap
	}
	return res, nil
}

// PutMulti stores multiple blobs concurrently,
// computing each blob's digest with a Hasher from f.
// The return value maps the digests of the input blobs
// to a boolean telling whether each was a new addition to s.
// Errors are reported as in GetMulti.
func PutMulti(ctx context.Context, s cas.BlobStore, f cas.HasherFactory, blobs [][]byte) (map[cas.Digest]bool, error) {
	type triple struct {
		d     cas.Digest
		added bool
		err   error
	}

	p := pool.NewWithResults[triple]().WithMaxGoroutines(DefaultConcurrency)
	for _, blob := range blobs {
		blob := blob
		p.Go(func() triple {
			d := cas.Sum(f, blob)
			added, err := s.Put(ctx, d, blob)
			return triple{d: d, added: added, err: err}
		})
	}

	var (
		res    = make(map[cas.Digest]bool)
		errmap MultiErr
	)
	for _, trip := range p.Wait() {
		if trip.err != nil {
			if errmap == nil {
				errmap = make(MultiErr)
			}
			errmap[trip.d] = trip.err
			continue
		}
		res[trip.d] = res[trip.d] || trip.added
	}
	if errmap != nil {
		return res, errmap
	}
	return res, nil
}
