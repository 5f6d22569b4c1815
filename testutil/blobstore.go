package testutil

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/bobg/cas"
)

// BlobStore checks the basic contract of a cas.BlobStore,
// which should be empty at the start.
func BlobStore(ctx context.Context, t *testing.T, s cas.BlobStore) {
	var (
		blobs = [][]byte{
			[]byte("abc"),
			[]byte("def"),
			{},
			Data(100000, 1),
		}
		digests []cas.Digest
	)

	for _, blob := range blobs {
		d := cas.Sum(cas.DefaultHasher, blob)
		digests = append(digests, d)

		_, err := s.Get(ctx, d)
		if !errors.Is(err, cas.ErrNotFound) {
			t.Fatalf("got error %v getting %s before storing it, want %v", err, d, cas.ErrNotFound)
		}

		buf := append([]byte{}, blob...)
		added, err := s.Put(ctx, d, buf)
		if err != nil {
			t.Fatal(err)
		}
		if !added {
			t.Errorf("blob %s not added on first Put", d)
		}
		for i := range buf {
			buf[i]++ // the store must have its own copy
		}
	}

	for i, d := range digests {
		got, err := s.Get(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, blobs[i]) {
			t.Errorf("blob %s: got %d bytes, want %d", d, len(got), len(blobs[i]))
		}

		added, err := s.Put(ctx, d, []byte("something else"))
		if err != nil {
			t.Fatal(err)
		}
		if added {
			t.Errorf("blob %s added on second Put", d)
		}
		got, err = s.Get(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, blobs[i]) {
			t.Errorf("blob %s changed by second Put", d)
		}
	}

	var listed []cas.Digest
	err := s.ListDigests(ctx, cas.Zero, func(d cas.Digest) error {
		listed = append(listed, d)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != len(digests) {
		t.Fatalf("listed %d digests, want %d", len(listed), len(digests))
	}

	var rest []cas.Digest
	err = s.ListDigests(ctx, listed[0], func(d cas.Digest) error {
		rest = append(rest, d)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != len(listed)-1 {
		t.Errorf("listed %d digests after %s, want %d", len(rest), listed[0], len(listed)-1)
	}

	stop := errors.New("stop")
	err = s.ListDigests(ctx, cas.Zero, func(cas.Digest) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("got error %v from ListDigests callback, want %v", err, stop)
	}
}
