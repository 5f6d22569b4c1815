package testutil

import (
	"context"
	"sort"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/cas"
)

// AllDigests writes a random set of random blobs to an empty store
// and makes sure that the right set of digests comes back in a call to ListDigests.
func AllDigests(ctx context.Context, t *testing.T, storeFactory func() cas.BlobStore) {
	if err := quick.Check(allDigestsHelper(ctx, t, storeFactory), &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func allDigestsHelper(ctx context.Context, t *testing.T, storeFactory func() cas.BlobStore) func([][]byte) bool {
	return func(blobs [][]byte) bool {
		var (
			store = storeFactory()
			want  []cas.Digest
		)
		for _, blob := range blobs {
			d := cas.Sum(cas.DefaultHasher, blob)
			added, err := store.Put(ctx, d, blob)
			if err != nil {
				t.Fatal(err)
			}
			if added {
				want = append(want, d)
			}
		}
		var got []cas.Digest
		err := store.ListDigests(ctx, cas.Zero, func(d cas.Digest) error {
			got = append(got, d)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		sort.Slice(want, func(i, j int) bool { return want[i].Less(want[j]) })

		if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Less(got[j]) }) {
			t.Log("ListDigests results out of order")
			return false
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Logf("mismatch (-want +got):\n%s", diff)
			return false
		}
		return true
	}
}
