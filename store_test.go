package cas_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend/mem"
	"github.com/bobg/cas/testutil"
)

func TestValues(t *testing.T) {
	testutil.Values(context.Background(), t, mem.NewBackend())
}

func TestDigestIsHashOfEncoding(t *testing.T) {
	ctx := context.Background()

	for _, name := range cas.HasherNames() {
		t.Run(name, func(t *testing.T) {
			f, err := cas.HasherByName(name)
			if err != nil {
				t.Fatal(err)
			}
			store := cas.NewStore(mem.NewBackend(), f, cas.String)
			got, err := store.Put(ctx, "hello")
			if err != nil {
				t.Fatal(err)
			}
			want := cas.Sum(f, encode(t, cas.String, "hello"))
			if got != want {
				t.Errorf("got digest %s, want %s", got, want)
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	var (
		ctx   = context.Background()
		blobs = mem.New()
		store = cas.NewStore(cas.NewBackend(blobs), nil, cas.List(cas.Linked(cas.String)))
		val   = []string{"a", "b", "a"}
	)

	d1, err := store.Put(ctx, val)
	if err != nil {
		t.Fatal(err)
	}
	// "a", "b", and the list itself.
	if blobs.Len() != 3 {
		t.Fatalf("got %d blobs, want 3", blobs.Len())
	}

	d2, err := store.Put(ctx, append([]string{}, val...))
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Errorf("second put produced digest %s, want %s", d2, d1)
	}
	if blobs.Len() != 3 {
		t.Errorf("got %d blobs after second put, want 3", blobs.Len())
	}
}

func TestHashersDiffer(t *testing.T) {
	var (
		ctx = context.Background()
		b   = mem.NewBackend()
	)
	d1, err := cas.NewStore(b, cas.Blake2b, cas.Uint8).Put(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := cas.NewStore(b, cas.SHA256, cas.Uint8).Put(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Errorf("blake2b and sha256 both produced %s", d1)
	}
}

var errBoom = errors.New("boom")

func TestFailedPut(t *testing.T) {
	var (
		ctx   = context.Background()
		blobs = mem.New()
		b     = cas.NewBackend(blobs)
	)

	failing := cas.NewCodec(
		func(s *cas.Sink, v uint64) error {
			if err := s.WriteUint64(v); err != nil {
				return err
			}
			return errBoom
		},
		func(s *cas.Source) (uint64, error) { return s.ReadUint64() },
	)
	store := cas.NewStore(b, nil, failing)

	_, err := store.Put(ctx, 17)
	if !errors.Is(err, errBoom) {
		t.Fatalf("got error %v, want %v", err, errBoom)
	}
	if blobs.Len() != 0 {
		t.Errorf("failed put left %d blobs behind", blobs.Len())
	}

	// A failure after a nested store keeps the nested object
	// but not the parent.
	parent := cas.Derive(store, cas.NewCodec(
		func(s *cas.Sink, v string) error {
			if _, err := cas.PutRef(s, cas.String, v); err != nil {
				return err
			}
			return errBoom
		},
		func(s *cas.Source) (string, error) { return cas.GetRef(s, cas.String) },
	))
	_, err = parent.Put(ctx, "child")
	if !errors.Is(err, errBoom) {
		t.Fatalf("got error %v, want %v", err, errBoom)
	}
	if blobs.Len() != 1 {
		t.Errorf("got %d blobs, want 1", blobs.Len())
	}
}

func TestGetErrors(t *testing.T) {
	var (
		ctx   = context.Background()
		blobs = mem.New()
		store = cas.NewStore(cas.NewBackend(blobs), nil, cas.Uint16)
	)

	t.Run("notfound", func(t *testing.T) {
		_, err := store.Get(ctx, cas.Sum(cas.DefaultHasher, []byte("nope")))
		if !errors.Is(err, cas.ErrNotFound) {
			t.Errorf("got error %v, want %v", err, cas.ErrNotFound)
		}
	})

	put := func(t *testing.T, raw []byte) cas.Digest {
		d := cas.Sum(cas.DefaultHasher, raw)
		if _, err := blobs.Put(ctx, d, raw); err != nil {
			t.Fatal(err)
		}
		return d
	}

	t.Run("trailing", func(t *testing.T) {
		d := put(t, []byte{1, 2, 3})
		_, err := store.Get(ctx, d)
		if !cas.IsDecodeError(err) || !errors.Is(err, cas.ErrTrailingData) {
			t.Errorf("got error %v, want trailing-data decode error", err)
		}
	})

	t.Run("short", func(t *testing.T) {
		d := put(t, []byte{1})
		_, err := store.Get(ctx, d)
		if !cas.IsDecodeError(err) {
			t.Errorf("got error %v, want decode error", err)
		}
	})

	t.Run("ok", func(t *testing.T) {
		d := put(t, []byte{1, 2})
		got, err := store.Get(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if got != 0x0102 {
			t.Errorf("got %x, want 0102", got)
		}
	})
}

func TestDerive(t *testing.T) {
	var (
		ctx     = context.Background()
		blobs   = mem.New()
		strs    = cas.NewStore(cas.NewBackend(blobs), cas.Blake3, cas.String)
		rawData = cas.Derive(strs, cas.Bytes)
	)

	if rawData.Hasher() == nil {
		t.Fatal("derived store has no hasher")
	}

	d1, err := strs.Put(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	// String and Bytes have the same encoding.
	d2, err := rawData.Put(ctx, []byte("shared"))
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Errorf("got digests %s and %s, want equal", d1, d2)
	}
	if blobs.Len() != 1 {
		t.Errorf("got %d blobs, want 1", blobs.Len())
	}

	got, err := rawData.Get(ctx, d1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "shared" {
		t.Errorf("got %q, want %q", got, "shared")
	}
}

func TestConcurrency(t *testing.T) {
	const n = 64

	var (
		ctx    = context.Background()
		store  = cas.NewStore(mem.NewBackend(), nil, cas.List(cas.Linked(cas.String)))
		values = make([][]string, n)
	)
	for i := 0; i < n; i++ {
		values[i] = []string{fmt.Sprintf("item %d", i), fmt.Sprintf("item %d", i%8), "common"}
	}

	// Sequential digests, computed in a separate backend.
	want := make([]cas.Digest, n)
	seq := cas.NewStore(mem.NewBackend(), nil, store.Codec())
	for i, v := range values {
		d, err := seq.Put(ctx, v)
		if err != nil {
			t.Fatal(err)
		}
		want[i] = d
	}

	got := make([]cas.Digest, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			d, err := store.Put(gctx, values[i])
			if err != nil {
				return err
			}
			got[i] = d
			return nil
		})
		g.Go(func() error {
			// Reads may race with the puts above and find nothing yet.
			_, err := store.Get(gctx, want[i])
			if err != nil && !errors.Is(err, cas.ErrNotFound) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for i := range values {
		if got[i] != want[i] {
			t.Errorf("value %d: got digest %s, want %s", i, got[i], want[i])
		}
		v, err := store.Get(ctx, got[i])
		if err != nil {
			t.Fatal(err)
		}
		if len(v) != 3 || v[0] != values[i][0] || v[2] != "common" {
			t.Errorf("value %d: got %v, want %v", i, v, values[i])
		}
	}
}

// A Backend that fails every operation.
type brokenBackend struct{}

func (brokenBackend) Store(context.Context, cas.EncodeFunc, cas.HasherFactory) (cas.Digest, error) {
	return cas.Zero, io.ErrClosedPipe
}

func (brokenBackend) Request(context.Context, cas.Digest, cas.DecodeFunc) error {
	return io.ErrClosedPipe
}

func TestBackendErrors(t *testing.T) {
	var (
		ctx   = context.Background()
		store = cas.NewStore(brokenBackend{}, nil, cas.Bytes)
	)
	if _, err := store.Put(ctx, []byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("got error %v, want %v", err, io.ErrClosedPipe)
	}
	_, err := store.Get(ctx, cas.Zero)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("got error %v, want %v", err, io.ErrClosedPipe)
	}
	if cas.IsDecodeError(err) || errors.Is(err, cas.ErrNotFound) {
		t.Errorf("I/O error %v misreported", err)
	}
}

func TestStreamingBackend(t *testing.T) {
	// A Backend not built on a BlobStore sees the encoding as a stream.
	var (
		ctx = context.Background()
		sb  = &streamBackend{objs: make(map[cas.Digest][]byte)}
		s   = cas.NewStore(sb, nil, cas.List(cas.Linked(cas.Bytes)))
	)
	want := [][]byte{[]byte("one"), []byte("two")}
	d, err := s.Put(ctx, want)
	if err != nil {
		t.Fatal(err)
	}
	if len(sb.objs) != 3 {
		t.Errorf("got %d objects, want 3", len(sb.objs))
	}
	got, err := s.Get(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], want[0]) || !bytes.Equal(got[1], want[1]) {
		t.Errorf("got %q, want %q", got, want)
	}
}

type streamBackend struct {
	objs map[cas.Digest][]byte
}

func (sb *streamBackend) Store(ctx context.Context, encode cas.EncodeFunc, f cas.HasherFactory) (cas.Digest, error) {
	buf := new(bytes.Buffer)
	hw := cas.NewHashingWriter(buf, f)
	if err := encode(hw, sb); err != nil {
		return cas.Zero, err
	}
	d := hw.Sum()
	if _, ok := sb.objs[d]; !ok {
		sb.objs[d] = buf.Bytes()
	}
	return d, nil
}

func (sb *streamBackend) Request(ctx context.Context, d cas.Digest, decode cas.DecodeFunc) error {
	b, ok := sb.objs[d]
	if !ok {
		return cas.ErrNotFound
	}
	return decode(bytes.NewReader(b))
}
