package badger

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/bobg/cas"
	"github.com/bobg/cas/testutil"
)

func withStore(t *testing.T, dir string, f func(*Store)) {
	t.Helper()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	f(s)
}

func TestBlobStore(t *testing.T) {
	withStore(t, "", func(s *Store) {
		testutil.BlobStore(context.Background(), t, s)
	})
}

func TestAllDigests(t *testing.T) {
	testutil.AllDigests(context.Background(), t, func() cas.BlobStore {
		s, err := Open("")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestReadWrite(t *testing.T) {
	withStore(t, t.TempDir(), func(s *Store) {
		testutil.ReadWrite(context.Background(), t, cas.NewBackend(s), testutil.Data(1<<20, 8))
	})
}

func TestValues(t *testing.T) {
	withStore(t, "", func(s *Store) {
		testutil.Values(context.Background(), t, cas.NewBackend(s))
	})
}

func TestConcurrentPut(t *testing.T) {
	withStore(t, "", func(s *Store) {
		var (
			ctx   = context.Background()
			blob  = []byte("contended")
			d     = cas.Sum(cas.DefaultHasher, blob)
			added = make([]bool, 16)
		)

		var g errgroup.Group
		for i := range added {
			g.Go(func() error {
				a, err := s.Put(ctx, d, blob)
				added[i] = a
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}

		var n int
		for _, a := range added {
			if a {
				n++
			}
		}
		if n != 1 {
			t.Errorf("blob added %d times, want 1", n)
		}
	})
}

func TestReopen(t *testing.T) {
	var (
		ctx  = context.Background()
		dir  = t.TempDir()
		blob = []byte("durable")
		d    = cas.Sum(cas.DefaultHasher, blob)
	)

	withStore(t, dir, func(s *Store) {
		if _, err := s.Put(ctx, d, blob); err != nil {
			t.Fatal(err)
		}
	})
	withStore(t, dir, func(s *Store) {
		got, err := s.Get(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(blob) {
			t.Errorf("got %q, want %q", got, blob)
		}
	})
}
