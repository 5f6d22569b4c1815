// Package backend holds the registry of storage backends,
// plus helpers that work on any cas.BlobStore.
//
// Each backend subpackage registers a Factory under its name when imported,
// so a program can choose its storage medium from configuration:
//
//	import _ "github.com/bobg/cas/backend/sqlite3"
//
//	s, err := backend.Create(ctx, "sqlite3", map[string]interface{}{"conn": "cas.db"})
package backend

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/cas"
)

// Factory creates a blob store from a configuration map.
type Factory func(context.Context, map[string]interface{}) (cas.BlobStore, error)

var registry = make(map[string]Factory)

// Register makes a Factory available to Create under the given key.
// It is normally called from the init function of a backend package.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create creates a blob store with the Factory registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (cas.BlobStore, error) {
	f, ok := registry[key]
	if !ok {
		return nil, errors.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// Keys lists the registered keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromConfig creates a blob store from a configuration map
// whose "type" entry names the registered Factory.
func FromConfig(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
	typ, ok := conf["type"].(string)
	if !ok {
		return nil, errors.New(`missing "type" parameter`)
	}
	return Create(ctx, typ, conf)
}

// Nested creates the blob store described by the "nested" entry of conf.
// It is for decorator backends wrapping another store.
func Nested(ctx context.Context, conf map[string]interface{}) (cas.BlobStore, error) {
	nested, ok := conf["nested"].(map[string]interface{})
	if !ok {
		return nil, errors.New(`missing "nested" parameter`)
	}
	if _, ok := nested["type"].(string); !ok {
		return nil, errors.New(`"nested" parameter missing "type"`)
	}
	s, err := FromConfig(ctx, nested)
	return s, errors.Wrap(err, "creating nested store")
}

// IntParam gets an integer from conf.
// Config decoders disagree on the representation of numbers,
// so several are accepted.
func IntParam(conf map[string]interface{}, key string) (int, bool, error) {
	v, ok := conf[key]
	if !ok {
		return 0, false, nil
	}
	switch v := v.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, true, errors.Errorf("%q parameter is not an integer", key)
		}
		return int(v), true, nil
	case json.Number:
		n, err := v.Int64()
		return int(n), true, errors.Wrapf(err, "parsing %q parameter", key)
	}
	return 0, true, errors.Errorf("%q parameter has type %T, want a number", key, v)
}
