package main

import (
	"context"
	"flag"
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
)

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	typ := fs.String("type", "bytes", "type of value to get")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	k, err := lookupKind(*typ)
	if err != nil {
		return err
	}

	args = fs.Args()
	if len(args) == 0 {
		return errors.New("missing digest")
	}
	d, err := cas.DigestFromHex(args[0])
	if err != nil {
		return errors.Wrapf(err, "decoding digest %s", args[0])
	}

	err = k.get(ctx, c.blobBackend(), c.f, d, os.Stdout)
	return errors.Wrapf(err, "getting %s value %s", *typ, d)
}
