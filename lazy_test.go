package cas_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend/mem"
)

type node struct {
	Name string
	Kids []*cas.Lazy[string]
}

var nodeCodec = cas.NewCodec(
	func(s *cas.Sink, n node) error {
		if err := cas.String.Encode(s, n.Name); err != nil {
			return err
		}
		return cas.List(cas.LazyOf(cas.String)).Encode(s, n.Kids)
	},
	func(s *cas.Source) (node, error) {
		var (
			n   node
			err error
		)
		if n.Name, err = cas.String.Decode(s); err != nil {
			return n, err
		}
		n.Kids, err = cas.List(cas.LazyOf(cas.String)).Decode(s)
		return n, err
	},
)

func TestLazy(t *testing.T) {
	var (
		ctx   = context.Background()
		blobs = mem.New()
		store = cas.NewStore(cas.NewBackend(blobs), nil, nodeCodec)
		strs  = cas.Derive(store, cas.String)
	)

	kid := cas.MakeLazy(store, cas.String, "kid")
	if blobs.Len() != 0 {
		t.Fatalf("MakeLazy stored %d blobs", blobs.Len())
	}
	if _, ok := kid.Digest(); ok {
		t.Fatal("new lazy value already has a digest")
	}
	if !kid.Loaded() {
		t.Fatal("new lazy value is not loaded")
	}

	d1, err := kid.Force(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if blobs.Len() != 1 {
		t.Fatalf("got %d blobs after Force, want 1", blobs.Len())
	}
	d2, err := kid.Force(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Errorf("second Force produced %s, want %s", d2, d1)
	}

	// The lazy value's digest is the digest of the plain value.
	if want, err := strs.Put(ctx, "kid"); err != nil {
		t.Fatal(err)
	} else if d1 != want {
		t.Errorf("got digest %s, want %s", d1, want)
	}

	other := cas.MakeLazy(store, cas.String, "other")
	parent := node{Name: "parent", Kids: []*cas.Lazy[string]{kid, other}}
	pd, err := store.Put(ctx, parent)
	if err != nil {
		t.Fatal(err)
	}
	// kid, other, parent
	if blobs.Len() != 3 {
		t.Errorf("got %d blobs, want 3", blobs.Len())
	}
	if _, ok := other.Digest(); !ok {
		t.Error("embedding did not cache the digest of the embedded lazy value")
	}

	got, err := store.Get(ctx, pd)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "parent" || len(got.Kids) != 2 {
		t.Fatalf("got %+v", got)
	}
	for i, want := range []string{"kid", "other"} {
		k := got.Kids[i]
		if k.Loaded() {
			t.Errorf("decoded kid %d is already loaded", i)
		}
		v, err := k.Value(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Errorf("kid %d: got %q, want %q", i, v, want)
		}
		if !k.Loaded() {
			t.Errorf("kid %d is not loaded after Value", i)
		}
	}

	// Re-storing the decoded parent stores nothing new.
	pd2, err := store.Put(ctx, got)
	if err != nil {
		t.Fatal(err)
	}
	if pd2 != pd {
		t.Errorf("got digest %s, want %s", pd2, pd)
	}
	if blobs.Len() != 3 {
		t.Errorf("got %d blobs, want 3", blobs.Len())
	}
}

func TestLazyNotFound(t *testing.T) {
	var (
		ctx   = context.Background()
		blobs = mem.New()
		store = cas.NewStore(cas.NewBackend(blobs), nil, cas.LazyOf(cas.String))
	)

	// A stored reference to an object that was never stored.
	missing := cas.Sum(cas.DefaultHasher, []byte("missing"))
	outer := cas.Sum(cas.DefaultHasher, missing[:])
	if _, err := blobs.Put(ctx, outer, missing[:]); err != nil {
		t.Fatal(err)
	}

	l, err := store.Get(ctx, outer)
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := l.Digest(); !ok || d != missing {
		t.Fatalf("got digest %s (%v), want %s", d, ok, missing)
	}
	if _, err := l.Value(ctx); !errors.Is(err, cas.ErrNotFound) {
		t.Errorf("got error %v, want %v", err, cas.ErrNotFound)
	}
	if l.Loaded() {
		t.Error("failed load marked the value loaded")
	}
}

func TestForeignLazy(t *testing.T) {
	var (
		ctx = context.Background()
		s1  = cas.NewStore(mem.NewBackend(), nil, cas.LazyOf(cas.String))
		s2  = cas.NewStore(mem.NewBackend(), nil, cas.LazyOf(cas.String))
	)

	d, err := s1.Put(ctx, cas.MakeLazy(s1, cas.String, "here"))
	if err != nil {
		t.Fatal(err)
	}
	l, err := s1.Get(ctx, d)
	if err != nil {
		t.Fatal(err)
	}

	// Unloaded, from s1's backend: cannot go into s2's.
	if _, err := s2.Put(ctx, l); !errors.Is(err, cas.ErrForeignLazy) {
		t.Errorf("got error %v, want %v", err, cas.ErrForeignLazy)
	}

	// Once loaded, it can be copied.
	if _, err := l.Value(ctx); err != nil {
		t.Fatal(err)
	}
	d2, err := s2.Put(ctx, l)
	if err != nil {
		t.Fatal(err)
	}
	if d2 != d {
		t.Errorf("got digest %s in second store, want %s", d2, d)
	}
}
