// Command cas is a general purpose CLI interface to content-addressed stores.
//
// Usage:
//
//	cas [-config FILE] [-hash NAME] [-log] [-v] SUBCOMMAND ARGS...
//
// The config file is JSON, or YAML if its name ends in .yaml or .yml,
// and describes the blob store to use.
// Its "type" entry names a registered backend;
// the remaining entries are that backend's parameters.
//
// Subcommands are put, get, list, sync, and hash.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/bobg/subcmd"
	"github.com/sirupsen/logrus"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
	_ "github.com/bobg/cas/backend/badger"
	_ "github.com/bobg/cas/backend/compress"
	_ "github.com/bobg/cas/backend/file"
	_ "github.com/bobg/cas/backend/gcs"
	"github.com/bobg/cas/backend/logging"
	_ "github.com/bobg/cas/backend/lru"
	_ "github.com/bobg/cas/backend/mem"
	_ "github.com/bobg/cas/backend/pg"
	_ "github.com/bobg/cas/backend/replica"
	_ "github.com/bobg/cas/backend/sqlite3"
)

type maincmd struct {
	s   cas.BlobStore
	f   cas.HasherFactory
	log logrus.FieldLogger
}

func main() {
	var (
		config  = flag.String("config", "casconf.json", "path to config file")
		hash    = flag.String("hash", "", "hash function (default blake2b)")
		dolog   = flag.Bool("log", false, "log every blob store operation")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *config == "" {
		log.Fatal("Config value not set")
	}

	f, err := cas.HasherByName(*hash)
	if err != nil {
		log.WithError(err).Fatal("Choosing hash function")
	}

	ctx := context.Background()

	s, err := storeFromConfig(ctx, *config)
	if err != nil {
		log.WithError(err).WithField("config", *config).Fatal("Creating store")
	}
	if *dolog {
		s = logging.New(s, log)
	}

	c := maincmd{s: s, f: f, log: log}
	err = subcmd.Run(ctx, c, flag.Args())

	// Some stores (e.g. replica with async members) finish writing only on Close.
	if cerr := backend.Close(s); cerr != nil {
		log.WithError(cerr).Error("Closing store")
		if err == nil {
			err = cerr
		}
	}
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"get":  c.get,
		"hash": c.hash,
		"list": c.list,
		"put":  c.put,
		"sync": c.sync,
	}
}

func (c maincmd) blobBackend() cas.Backend {
	return cas.NewBackend(c.s)
}
