package gcs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrs "errors"
	"os"
	"reflect"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/cas"
	"github.com/bobg/cas/testutil"
)

func TestEachHexPrefix(t *testing.T) {
	want := []string{
		"e67b", "e67c", "e67d", "e67e", "e67f",
		"e68", "e69", "e6a", "e6b", "e6c", "e6d", "e6e", "e6f",
		"e7", "e8", "e9", "ea", "eb", "ec", "ed", "ee", "ef",
		"f",
	}
	var got []string
	err := eachHexPrefix("e67a", false, func(prefix string) error {
		got = append(got, prefix)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestObjName(t *testing.T) {
	d := cas.Sum(cas.DefaultHasher, []byte("name me"))
	name := blobObjName(d)
	got, err := digestFromBlobObjName(name)
	if err != nil {
		t.Fatal(err)
	}
	if got != d {
		t.Errorf("got %s, want %s", got, d)
	}

	for _, bad := range []string{"a:" + d.String(), "b:xyz", "b:" + d.String()[:10]} {
		if _, err := digestFromBlobObjName(bad); err == nil {
			t.Errorf("got no error for object name %q", bad)
		}
	}
}

const (
	credsVar = "CAS_GCS_TESTING_CREDS"
	projVar  = "CAS_GCS_TESTING_PROJECT"
)

func TestStore(t *testing.T) {
	var (
		creds     = os.Getenv(credsVar)
		projectID = os.Getenv(projVar)
	)
	if creds == "" || projectID == "" {
		t.Skipf("to run TestStore, set %s to the name of a credentials file and %s to a project ID", credsVar, projVar)
	}

	var r [30]byte
	_, err := rand.Read(r[:])
	if err != nil {
		t.Fatal(err)
	}
	bucketName := hex.EncodeToString(r[:])

	ctx := context.Background()

	client, err := storage.NewClient(ctx, option.WithCredentialsFile(creds))
	if err != nil {
		t.Fatal(err)
	}

	t.Logf("creating bucket %s in project %s", bucketName, projectID)

	bucket := client.Bucket(bucketName)
	err = bucket.Create(ctx, projectID, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		iter := bucket.Objects(ctx, nil)
		for {
			obj, err := iter.Next()
			if stderrs.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				t.Logf("listing objects for cleanup: %s", err)
				return
			}
			bucket.Object(obj.Name).Delete(ctx)
		}
		bucket.Delete(ctx)
	}()

	s := New(bucket)
	testutil.BlobStore(ctx, t, s)
	testutil.ReadWrite(ctx, t, cas.NewBackend(s), testutil.Data(1<<18, 11))
}
