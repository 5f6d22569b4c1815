// Package logging implements a store that delegates everything to a nested store,
// logging operations as they happen.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

var _ cas.BlobStore = &Store{}

// Store is a logging blob store.
type Store struct {
	s   cas.BlobStore
	log logrus.FieldLogger
}

// New produces a Store logging the operations on s to log.
// If log is nil, the standard logrus logger is used.
func New(s cas.BlobStore, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{s: s, log: log}
}

func (s *Store) Get(ctx context.Context, d cas.Digest) ([]byte, error) {
	b, err := s.s.Get(ctx, d)
	entry := s.log.WithField("digest", d)
	if err != nil {
		entry.WithError(err).Error("Get")
	} else {
		entry.WithField("size", len(b)).Debug("Get")
	}
	return b, err
}

func (s *Store) ListDigests(ctx context.Context, start cas.Digest, f func(cas.Digest) error) error {
	s.log.WithField("start", start).Debug("ListDigests")
	return s.s.ListDigests(ctx, start, func(d cas.Digest) error {
		err := f(d)
		if err != nil {
			s.log.WithFields(logrus.Fields{"digest": d, "error": err}).Error("in ListDigests")
		} else {
			s.log.WithField("digest", d).Trace("in ListDigests")
		}
		return err
	})
}

func (s *Store) Put(ctx context.Context, d cas.Digest, b []byte) (bool, error) {
	added, err := s.s.Put(ctx, d, b)
	entry := s.log.WithFields(logrus.Fields{"digest": d, "size": len(b)})
	if err != nil {
		entry.WithError(err).Error("Put")
	} else {
		entry.WithField("added", added).Debug("Put")
	}
	return added, err
}

func init() {
	backend.Register("logging", func(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
		nested, err := backend.Nested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, nil), nil
	})
}

// Close closes the nested store.
func (s *Store) Close() error {
	return backend.Close(s.s)
}
