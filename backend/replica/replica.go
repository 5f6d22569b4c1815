// Package replica implements a blob store that replicates writes to several nested stores.
package replica

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = (*Store)(nil)

// Store is a blob store that delegates reads and writes to two sets of nested stores.
// One set is synchronous:
// writes to all of these must succeed before a call to Put returns,
// and an error from any will cause Put to fail.
// The other set is asynchronous:
// a call to Put queues writes on these stores but does not wait for them to finish.
// However, if any asynchronous write encounters an error,
// the whole Store is put into an error state and further operations will fail.
type Store struct {
	sync  []cas.BlobStore
	async []chan<- blobPair

	nested []cas.BlobStore // sync and async, for Close

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex // protects err and closed
	err    error      // the error from an async goroutine, if any
	closed bool
}

type blobPair struct {
	d cas.Digest
	b []byte
}

// New produces a new Store.
// The set of synchronous stores must be non-empty.
// The set of asynchronous stores may be empty.
// If there are any asynchronous stores,
// goroutines are launched for them,
// and canceling the given context object causes those to exit,
// placing the Store in an error state.
//
// Normally, writes to asynchronous stores do not block calls to Put,
// but the queue for each nested store has a fixed length given by n.
// If any async store falls too far behind,
// Put will block until all requests can be queued.
func New(ctx context.Context, sync []cas.BlobStore, async []cas.BlobStore, n int) *Store {
	result := &Store{sync: sync}
	result.nested = append(result.nested, sync...)
	result.nested = append(result.nested, async...)
	if len(async) == 0 {
		return result
	}

	ctx, result.cancel = context.WithCancel(ctx)
	for _, a := range async {
		ch := make(chan blobPair, n)
		result.async = append(result.async, ch)
		result.wg.Add(1)
		go func() {
			defer result.wg.Done()
			if err := runAsync(ctx, a, ch); err != nil {
				result.setErr(err)
			}
		}()
	}
	return result
}

// Runs as a goroutine until blobs is closed, ctx is canceled, or an error occurs.
func runAsync(ctx context.Context, store cas.BlobStore, blobs <-chan blobPair) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case pair, ok := <-blobs:
			if !ok {
				return nil
			}
			if _, err := store.Put(ctx, pair.d, pair.b); err != nil {
				return errors.Wrapf(err, "storing %s", pair.d)
			}
		}
	}
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Store) checkErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.err, "in async-store goroutine")
}

// Close waits for queued asynchronous writes to finish,
// stops the asynchronous goroutines,
// and closes the nested stores.
// It returns the error that put s into an error state, if any,
// or else the first error closing a nested store.
// The Store must not be used after Close.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.checkErr()
	}
	s.closed = true
	for _, ch := range s.async {
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
	if s.cancel != nil {
		s.cancel()
	}

	err := s.checkErr()
	for _, nested := range s.nested {
		if cerr := backend.Close(nested); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing nested store")
		}
	}
	return err
}

// Put implements cas.BlobStore.Put.
// The blob is stored in all synchronous nested stores.
// An error from any of them causes Put to return an error.
// The added result is true if any synchronous store added the blob.
//
// A request to write the blob is queued for any asynchronous nested stores.
// Normally this does not block the call to Put,
// but if any async store falls too far behind,
// Put must wait for space to open in its request queue before proceeding.
// The size of this queue is given by the int passed to New.
func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	if err := s.checkErr(); err != nil {
		return false, err
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		added   = make([]bool, len(s.sync))
	)
	for i, store := range s.sync {
		g.Go(func() error {
			a, err := store.Put(gctx, d, b)
			added[i] = a
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	if len(s.async) > 0 {
		pair := blobPair{d: d, b: append([]byte{}, b...)}
		for _, ch := range s.async {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case ch <- pair:
			}
		}
	}

	for _, a := range added {
		if a {
			return true, nil
		}
	}
	return false, nil
}

// Get implements cas.Getter.
// It delegates the request to all of the synchronous stores in s,
// returning the result from the first one to respond without error
// and canceling the request to the others.
// If no synchronous store has the blob, the error is cas.ErrNotFound.
// Otherwise, if all synchronous stores respond with an error,
// one of those errors is returned.
func (s *Store) Get(ctx context.Context, d cas.Digest) ([]byte, error) {
	if err := s.checkErr(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		blob []byte
		err  error
	}
	ch := make(chan result, len(s.sync))
	for _, store := range s.sync {
		go func() {
			blob, err := store.Get(ctx, d)
			ch <- result{blob: blob, err: err}
		}()
	}

	var firstErr error
	for range s.sync {
		r := <-ch
		if r.err == nil {
			return r.blob, nil
		}
		if firstErr == nil || errors.Is(firstErr, cas.ErrNotFound) {
			firstErr = r.err
		}
	}
	return nil, firstErr
}

// ListDigests implements cas.Getter.
// It delegates the request to all of the synchronous stores in s
// and synthesizes the result from the union of their digests.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	if err := s.checkErr(); err != nil {
		return err
	}

	outer := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	chans := make([]chan cas.Digest, len(s.sync))
	for i, store := range s.sync {
		ch := make(chan cas.Digest, 1)
		chans[i] = ch
		g.Go(func() error {
			defer close(ch)
			return store.ListDigests(gctx, start, func(d cas.Digest) error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case ch <- d:
					return nil
				}
			})
		})
	}

	// heads[i] is nil when chans[i] is exhausted.
	heads := make([]*cas.Digest, len(chans))
	advance := func(i int) {
		if d, ok := <-chans[i]; ok {
			heads[i] = &d
		} else {
			heads[i] = nil
		}
	}
	for i := range chans {
		advance(i)
	}

	err := func() error {
		for {
			var least *cas.Digest
			for _, h := range heads {
				if h != nil && (least == nil || h.Less(*least)) {
					least = h
				}
			}
			if least == nil {
				return nil
			}
			d := *least
			if err := f(d); err != nil {
				return err
			}
			for i, h := range heads {
				if h != nil && *h == d {
					advance(i)
				}
			}
		}
	}()

	cancel()
	for i := range chans {
		// Unblock any lister still sending.
		for range chans[i] {
		}
	}
	werr := g.Wait()
	if err != nil {
		return err
	}
	if err := outer.Err(); err != nil {
		return err
	}
	if werr != nil && !errors.Is(werr, context.Canceled) {
		return werr
	}
	return nil
}

func init() {
	backend.Register("replica", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		syncStores, err := nestedList(ctx, conf, "sync")
		if err != nil {
			return nil, err
		}
		if len(syncStores) == 0 {
			return nil, errors.New(`missing "sync" parameter`)
		}
		asyncStores, err := nestedList(ctx, conf, "async")
		if err != nil {
			return nil, err
		}

		queueLen, ok, err := backend.IntParam(conf, "queuelen")
		if err != nil {
			return nil, err
		}
		if !ok {
			queueLen = 10
		}

		return New(ctx, syncStores, asyncStores, queueLen), nil
	})
}

func nestedList(ctx context.Context, conf map[string]interface{}, key string) ([]cas.BlobStore, error) {
	items, _ := conf[key].([]interface{})

	var result []cas.BlobStore
	for _, item := range items {
		nested, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("%q item is a %T, not a map", key, item)
		}
		s, err := backend.FromConfig(ctx, nested)
		if err != nil {
			return nil, errors.Wrapf(err, "creating nested %s store", key)
		}
		result = append(result, s)
	}
	return result, nil
}
