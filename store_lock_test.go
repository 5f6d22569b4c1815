package cas

import (
	"context"
	"testing"
)

type mapBlobs map[Digest][]byte

func (m mapBlobs) Get(_ context.Context, d Digest) ([]byte, error) {
	if b, ok := m[d]; ok {
		return b, nil
	}
	return nil, ErrNotFound
}

func (m mapBlobs) Put(_ context.Context, d Digest, b []byte) (bool, error) {
	if _, ok := m[d]; ok {
		return false, nil
	}
	m[d] = append([]byte{}, b...)
	return true, nil
}

func (m mapBlobs) ListDigests(context.Context, Digest, func(Digest) error) error {
	return nil
}

func TestSharedLock(t *testing.T) {
	b := NewBackend(mapBlobs{})

	var (
		s1 = NewStore(b, nil, String)
		s2 = NewStore(b, SHA256, Bytes)
		s3 = Derive(s1, Uint64)
	)
	if s1.h.mu != s2.h.mu {
		t.Error("Stores over one backend have different locks")
	}
	if s1.h.mu != s3.h.mu {
		t.Error("derived Store has a different lock")
	}

	src := NewSource(context.Background(), nil, b, nil)
	if src.h.mu != s1.h.mu {
		t.Error("Source has a different lock from Stores over its backend")
	}

	other := NewStore(NewBackend(mapBlobs{}), nil, String)
	if other.h.mu == s1.h.mu {
		t.Error("Stores over different backends share a lock")
	}
}
