package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend/mem"
)

// hash prints the digest of stdin under the chosen hash function,
// without storing anything.
// With -type, stdin is first encoded as a value of that type,
// giving the digest that put would produce.
func (c maincmd) hash(ctx context.Context, fs *flag.FlagSet, args []string) error {
	typ := fs.String("type", "", "hash the encoding of a value of this type")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "reading stdin")
	}

	if *typ == "" {
		fmt.Println(cas.Sum(c.f, input))
		return nil
	}

	k, err := lookupKind(*typ)
	if err != nil {
		return err
	}

	// Encode into a scratch store.
	d, err := k.put(ctx, mem.NewBackend(), c.f, input)
	if err != nil {
		return errors.Wrapf(err, "encoding %s value", *typ)
	}
	fmt.Println(d)
	return nil
}
