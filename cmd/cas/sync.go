package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

// sync copies blobs among the main store
// and the stores described by the config files named in args,
// until all have the same blobs.
func (c maincmd) sync(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	stores := []cas.BlobStore{c.s}
	for _, arg := range fs.Args() {
		s, err := storeFromConfig(ctx, arg)
		if err != nil {
			return errors.Wrapf(err, "reading %s", arg)
		}
		stores = append(stores, s)
	}
	if len(stores) < 2 {
		return errors.New("no other stores to sync with")
	}

	return backend.Sync(ctx, stores)
}
