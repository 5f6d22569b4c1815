package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
)

func (c maincmd) list(ctx context.Context, fs *flag.FlagSet, args []string) error {
	start := fs.String("start", "", "start after this digest")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var startDigest cas.Digest
	if *start != "" {
		startDigest, err = cas.DigestFromHex(*start)
		if err != nil {
			return errors.Wrap(err, "parsing start digest")
		}
	}

	return c.s.ListDigests(ctx, startDigest, func(d cas.Digest) error {
		fmt.Println(d)
		return nil
	})
}
