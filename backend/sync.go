package backend

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/cas"
)

// Sync synchronizes two or more stores.
// It runs ListDigests on all input stores.
// When a digest is found to be in some but not all stores,
// its blob is added to the stores where it's missing.
// Since stores are insert-only,
// nothing is ever removed.
func Sync(ctx context.Context, stores []cas.BlobStore) error {
	if len(stores) < 2 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ectx := errgroup.WithContext(ctx)

	cursors := make([]*cursor, 0, len(stores))
	for _, s := range stores {
		s := s
		ch := make(chan cas.Digest)
		eg.Go(func() error {
			defer close(ch)
			return s.ListDigests(ectx, cas.Zero, func(d cas.Digest) error {
				select {
				case <-ectx.Done():
					return ectx.Err()
				case ch <- d:
				}
				return nil
			})
		})
		cursors = append(cursors, &cursor{s: s, ch: ch})
	}

	mergeErr := merge(ectx, cursors)
	cancel()
	waitErr := eg.Wait()
	if mergeErr != nil {
		return mergeErr
	}
	return errors.Wrap(waitErr, "listing digests")
}

// cursor is the position of a store's digest listing during Sync.
type cursor struct {
	s    cas.BlobStore
	ch   <-chan cas.Digest
	head *cas.Digest // nil at end of input
}

func (c *cursor) advance(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d, ok := <-c.ch:
		if ok {
			c.head = &d
		} else {
			c.head = nil
		}
	}
	return nil
}

func merge(ctx context.Context, cursors []*cursor) error {
	for _, c := range cursors {
		if err := c.advance(ctx); err != nil {
			return err
		}
	}

	for {
		var least *cas.Digest
		for _, c := range cursors {
			if c.head != nil && (least == nil || c.head.Less(*least)) {
				least = c.head
			}
		}
		if least == nil {
			// We've reached the end of input on all channels.
			return nil
		}
		d := *least

		var havers, needers []*cursor
		for _, c := range cursors {
			if c.head != nil && *c.head == d {
				havers = append(havers, c)
			} else {
				needers = append(needers, c)
			}
		}

		if len(needers) > 0 {
			blob, err := havers[0].s.Get(ctx, d)
			if err != nil {
				return errors.Wrapf(err, "getting blob for %s", d)
			}
			for _, c := range needers {
				if _, err = c.s.Put(ctx, d, blob); err != nil {
					return errors.Wrapf(err, "storing blob for %s", d)
				}
			}
		}

		for _, c := range havers {
			if err := c.advance(ctx); err != nil {
				return err
			}
		}
	}
}
