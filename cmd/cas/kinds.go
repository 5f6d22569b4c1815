package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/split"
)

// kind is a type of value the put and get subcommands can handle.
type kind struct {
	// raw kinds read their input from stdin and write their output verbatim.
	raw bool

	put func(ctx context.Context, b cas.Backend, f cas.HasherFactory, input []byte) (cas.Digest, error)
	get func(ctx context.Context, b cas.Backend, f cas.HasherFactory, d cas.Digest, w io.Writer) error
}

var kinds = map[string]kind{
	"u8": numKind(cas.Uint8, func(s string) (uint8, error) {
		n, err := strconv.ParseUint(s, 0, 8)
		return uint8(n), err
	}),
	"u16": numKind(cas.Uint16, func(s string) (uint16, error) {
		n, err := strconv.ParseUint(s, 0, 16)
		return uint16(n), err
	}),
	"u32": numKind(cas.Uint32, func(s string) (uint32, error) {
		n, err := strconv.ParseUint(s, 0, 32)
		return uint32(n), err
	}),
	"u64": numKind(cas.Uint64, func(s string) (uint64, error) {
		return strconv.ParseUint(s, 0, 64)
	}),
	"i16": numKind(cas.Int16, func(s string) (int16, error) {
		n, err := strconv.ParseInt(s, 0, 16)
		return int16(n), err
	}),
	"i32": numKind(cas.Int32, func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 0, 32)
		return int32(n), err
	}),
	"i64": numKind(cas.Int64, func(s string) (int64, error) {
		return strconv.ParseInt(s, 0, 64)
	}),
	"bytes":  rawKind(cas.Bytes),
	"string": rawKind(cas.NewCodec(
		func(s *cas.Sink, b []byte) error { return cas.String.Encode(s, string(b)) },
		func(s *cas.Source) ([]byte, error) {
			str, err := cas.String.Decode(s)
			return []byte(str), err
		},
	)),
	"split": rawKind(split.New()),
}

func kindNames() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupKind(name string) (kind, error) {
	k, ok := kinds[name]
	if !ok {
		return kind{}, errors.Errorf("unknown type %q (want one of %v)", name, kindNames())
	}
	return k, nil
}

func numKind[T any](c cas.Codec[T], parse func(string) (T, error)) kind {
	return kind{
		put: func(ctx context.Context, b cas.Backend, f cas.HasherFactory, input []byte) (cas.Digest, error) {
			v, err := parse(strings.TrimSpace(string(input)))
			if err != nil {
				return cas.Zero, errors.Wrapf(err, "parsing %q", input)
			}
			return cas.NewStore(b, f, c).Put(ctx, v)
		},
		get: func(ctx context.Context, b cas.Backend, f cas.HasherFactory, d cas.Digest, w io.Writer) error {
			v, err := cas.NewStore(b, f, c).Get(ctx, d)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, v)
			return err
		},
	}
}

func rawKind(c cas.Codec[[]byte]) kind {
	return kind{
		raw: true,
		put: func(ctx context.Context, b cas.Backend, f cas.HasherFactory, input []byte) (cas.Digest, error) {
			return cas.NewStore(b, f, c).Put(ctx, input)
		},
		get: func(ctx context.Context, b cas.Backend, f cas.HasherFactory, d cas.Digest, w io.Writer) error {
			v, err := cas.NewStore(b, f, c).Get(ctx, d)
			if err != nil {
				return err
			}
			_, err = w.Write(v)
			return err
		},
	}
}
