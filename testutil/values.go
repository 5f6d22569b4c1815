package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/cas"
)

// Values checks storing and retrieving typed values in a cas.Backend.
func Values(ctx context.Context, t *testing.T, b cas.Backend) {
	bytesStore := cas.NewStore(b, nil, cas.Uint8)

	t.Run("uint8", func(t *testing.T) {
		d42, err := bytesStore.Put(ctx, 42)
		if err != nil {
			t.Fatal(err)
		}
		d43, err := bytesStore.Put(ctx, 43)
		if err != nil {
			t.Fatal(err)
		}
		if d42 == d43 {
			t.Fatalf("42 and 43 have the same digest %s", d42)
		}
		if got, err := bytesStore.Get(ctx, d42); err != nil {
			t.Fatal(err)
		} else if got != 42 {
			t.Errorf("got %d, want 42", got)
		}
		if got, err := bytesStore.Get(ctx, d43); err != nil {
			t.Fatal(err)
		} else if got != 43 {
			t.Errorf("got %d, want 43", got)
		}
	})

	t.Run("optional", func(t *testing.T) {
		store := cas.Derive(bytesStore, cas.Optional(cas.Uint64))

		some, err := store.Put(ctx, cas.Some[uint64](46))
		if err != nil {
			t.Fatal(err)
		}
		none, err := store.Put(ctx, cas.None[uint64]())
		if err != nil {
			t.Fatal(err)
		}
		if some == none {
			t.Fatalf("Some(46) and None have the same digest %s", some)
		}

		got, err := store.Get(ctx, some)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(cas.Some[uint64](46), got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
		got, err = store.Get(ctx, none)
		if err != nil {
			t.Fatal(err)
		}
		if got.Valid {
			t.Errorf("got %v, want None", got)
		}
	})

	t.Run("notfound", func(t *testing.T) {
		missing := cas.Sum(cas.DefaultHasher, []byte("never stored"))
		_, err := bytesStore.Get(ctx, missing)
		if !errors.Is(err, cas.ErrNotFound) {
			t.Errorf("got error %v, want %v", err, cas.ErrNotFound)
		}
		if cas.IsDecodeError(err) {
			t.Errorf("got decode error %v, want not-found", err)
		}
	})

	t.Run("linked", func(t *testing.T) {
		store := cas.Derive(bytesStore, cas.List(cas.Linked(cas.String)))
		want := []string{"one", "two", "one", "three"}
		d, err := store.Put(ctx, want)
		if err != nil {
			t.Fatal(err)
		}
		got, err := store.Get(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}
