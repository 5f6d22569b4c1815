// Package sqlite3 implements a blob store in a Sqlite database.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store is a Sqlite-based blob store.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `blobs` table if it does not exist.
// (If it does exist, it must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
  digest BLOB PRIMARY KEY NOT NULL,
  data BLOB NOT NULL
);
`

// New produces a new Store using db for storage.
// It expects to create table `blobs`,
// or for that table already to exist with the correct schema.
// (See constant Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

// Get gets the blob with digest d.
func (s *Store) Get(ctx context.Context, d cas.Digest) ([]byte, error) {
	const q = `SELECT data FROM blobs WHERE digest = $1`

	var b []byte
	err := s.db.QueryRowContext(ctx, q, d).Scan(&b)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, cas.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s", d)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	const q = `INSERT INTO blobs (digest, data) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	if b == nil {
		b = []byte{}
	}
	res, err := s.db.ExecContext(ctx, q, d, b)
	if err != nil {
		return false, errors.Wrap(err, "inserting blob")
	}

	aff, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting affected rows")
	}
	return aff > 0, nil
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	const q = `SELECT digest FROM blobs WHERE digest > $1 ORDER BY digest`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, func(d cas.Digest) error {
		return f(d)
	})
}

func init() {
	backend.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
