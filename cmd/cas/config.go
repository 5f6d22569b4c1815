package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/bobg/cas"
	"github.com/bobg/cas/backend"
)

func storeFromConfig(ctx context.Context, filename string) (cas.BlobStore, error) {
	conf, err := loadConfig(filename)
	if err != nil {
		return nil, err
	}
	if _, ok := conf["type"].(string); !ok {
		return nil, errors.Errorf("config file %s missing `type` parameter", filename)
	}
	s, err := backend.FromConfig(ctx, conf)
	return s, errors.Wrapf(err, "creating store from %s", filename)
}

func loadConfig(filename string) (map[string]interface{}, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return decodeYAML(f, filename)
	}
	return decodeJSON(f, filename)
}

func decodeJSON(r io.Reader, filename string) (map[string]interface{}, error) {
	var conf map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	err := dec.Decode(&conf)
	return conf, errors.Wrapf(err, "decoding config file %s", filename)
}

func decodeYAML(r io.Reader, filename string) (map[string]interface{}, error) {
	var conf map[string]interface{}
	err := yaml.NewDecoder(r).Decode(&conf)
	return conf, errors.Wrapf(err, "decoding config file %s", filename)
}
