// Package pg implements a blob store in a Postgresql database.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq" // register the postgres type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store is a Postgresql-based blob store.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `blobs` table if it does not exist.
// (If it does exist, it must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
  digest BYTEA PRIMARY KEY NOT NULL,
  data BYTEA NOT NULL
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

	var result []byte
	err := s.db.QueryRowContext(ctx, q, d).Scan(&result)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, cas.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s", d)
	}
	if result == nil {
		result = []byte{}
	}
	return result, nil
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
	return aff > 0, errors.Wrap(err, "counting affected rows")
}

// ListDigests produces all blob digests in the store, in lexicographic order.
func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	const q = `SELECT digest FROM blobs WHERE digest > $1 ORDER BY digest`
	err := sqlutil.ForQueryRows(ctx, s.db, q, start, func(d cas.Digest) error {
		return f(d)
	})
	return err
}

func init() {
	backend.Register("pg", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
