package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

func (c maincmd) put(ctx context.Context, fs *flag.FlagSet, args []string) error {
	typ := fs.String("type", "bytes", "type of value to store")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	k, err := lookupKind(*typ)
	if err != nil {
		return err
	}

	var input []byte
	switch {
	case len(fs.Args()) > 0:
		input = []byte(fs.Arg(0))
	case k.raw:
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			return errors.Wrap(err, "reading stdin")
		}
	default:
		return errors.New("missing value")
	}

	d, err := k.put(ctx, c.blobBackend(), c.f, input)
	if err != nil {
		return errors.Wrapf(err, "storing %s value", *typ)
	}

	c.log.WithField("type", *typ).Debugf("stored %d input bytes", len(input))
	fmt.Println(d)
	return nil
}
