package lru

import (
	"context"
	"testing"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
	"github.com/bobg/cas/backend/mem"
	"github.com/bobg/cas/testutil"
)

func newStore(t *testing.T, nested cas.BlobStore, size int) *Store {
	t.Helper()
	s, err := New(nested, size)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBlobStore(t *testing.T) {
	testutil.BlobStore(context.Background(), t, newStore(t, mem.New(), 1000))
}

func TestReadWrite(t *testing.T) {
	s := newStore(t, mem.New(), 1000)
	testutil.ReadWrite(context.Background(), t, cas.NewBackend(s), testutil.Data(1<<20, 7))
}

func TestValues(t *testing.T) {
	s := newStore(t, mem.New(), 1000)
	testutil.Values(context.Background(), t, cas.NewBackend(s))
}

func TestEviction(t *testing.T) {
	var (
		ctx    = context.Background()
		nested = mem.New()
		s      = newStore(t, nested, 2)
	)

	var digests []cas.Digest
	for _, word := range []string{"one", "two", "three"} {
		d := cas.Sum(cas.DefaultHasher, []byte(word))
		if _, err := s.Put(ctx, d, []byte(word)); err != nil {
			t.Fatal(err)
		}
		digests = append(digests, d)
	}
	if s.Len() != 2 {
		t.Errorf("got %d cached blobs, want 2", s.Len())
	}
	if nested.Len() != 3 {
		t.Errorf("got %d nested blobs, want 3", nested.Len())
	}

	// "one" was evicted but is still in the nested store.
	got, err := s.Get(ctx, digests[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one" {
		t.Errorf("got %q, want %q", got, "one")
	}
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	_, err := backend.FromConfig(ctx, map[string]interface{}{
		"type":   "lru",
		"size":   float64(10),
		"nested": map[string]interface{}{"type": "mem"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = backend.FromConfig(ctx, map[string]interface{}{
		"type":   "lru",
		"nested": map[string]interface{}{"type": "mem"},
	})
	if err == nil {
		t.Error("got no error for lru config without size")
	}
}
