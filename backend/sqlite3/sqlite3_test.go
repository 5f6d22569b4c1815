package sqlite3

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
	"github.com/bobg/cas/testutil"
)

func TestBlobStore(t *testing.T) {
	ctx := context.Background()
	err := withTestStore(ctx, func(s *Store) error {
		testutil.BlobStore(ctx, t, s)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	err := withTestStore(ctx, func(s *Store) error {
		testutil.ReadWrite(ctx, t, cas.NewBackend(s), testutil.Data(1<<19, 9))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestValues(t *testing.T) {
	ctx := context.Background()
	err := withTestStore(ctx, func(s *Store) error {
		testutil.Values(ctx, t, cas.NewBackend(s))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	conn := filepath.Join(t.TempDir(), "cas.db")
	s, err := backend.FromConfig(ctx, map[string]interface{}{"type": "sqlite3", "conn": conn})
	if err != nil {
		t.Fatal(err)
	}
	defer s.(*Store).db.Close()

	if _, err := backend.FromConfig(ctx, map[string]interface{}{"type": "sqlite3"}); err == nil {
		t.Error("got no error for sqlite3 config without conn")
	}
}

func withTestStore(ctx context.Context, fn func(*Store) error) error {
	f, err := os.CreateTemp("", "cassqlite3test")
	if err != nil {
		return err
	}

	tmpfile := f.Name()
	f.Close()
	defer os.Remove(tmpfile)

	db, err := sql.Open("sqlite3", tmpfile)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := New(ctx, db)
	if err != nil {
		return err
	}

	return fn(s)
}
