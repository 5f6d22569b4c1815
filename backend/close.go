package backend

import (
	"io"

	"github.com/bobg/cas"
)

// Close releases the resources held by s,
// if it holds any (that is, if it implements io.Closer).
// Stores that wrap other stores close them in turn.
// A store must not be used after it is closed.
func Close(s cas.BlobStore) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
