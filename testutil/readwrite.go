// Package testutil holds checks that every blob store and backend should pass.
package testutil

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/bobg/cas"
	"github.com/bobg/cas/split"
)

// Data produces n bytes of deterministic pseudorandom data.
func Data(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	out := make([]byte, n)
	r.Read(out)
	return out
}

// ReadWrite permits testing a Backend implementation
// by split-writing some data to it,
// then reading it back out to make sure it's the same.
func ReadWrite(ctx context.Context, t *testing.T, b cas.Backend, data []byte) {
	store := cas.NewStore(b, nil, split.New())

	t1 := time.Now()
	d, err := store.Put(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("wrote %d bytes in %s", len(data), time.Since(t1))

	t2 := time.Now()
	got, err := store.Get(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("read %d bytes in %s", len(got), time.Since(t2))

	if len(got) != len(data) {
		t.Errorf("got length %d, want %d", len(got), len(data))
	} else if !bytes.Equal(got, data) {
		for i := 0; i < len(got); i++ {
			if got[i] != data[i] {
				t.Fatalf("mismatch at position %d (of %d)", i, len(got))
			}
		}
	}

	d2, err := store.Put(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if d2 != d {
		t.Errorf("second write got digest %s, want %s", d2, d)
	}
}
