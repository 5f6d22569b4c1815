package cas

import "io"

// HashingWriter is an io.Writer that passes everything written to it
// through to an underlying writer
// while also absorbing the same bytes into a Hasher.
// It lets a value be encoded, stored, and digested in a single pass.
type HashingWriter struct {
	w io.Writer
	h Hasher
}

// NewHashingWriter produces a HashingWriter writing to w
// and hashing with a fresh Hasher from f.
func NewHashingWriter(w io.Writer, f HasherFactory) *HashingWriter {
	return &HashingWriter{w: w, h: f()}
}

// Write implements io.Writer.
// Only the bytes accepted by the underlying writer are hashed.
func (hw *HashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		if _, herr := hw.h.Write(p[:n]); herr != nil && err == nil {
			err = herr
		}
	}
	return n, err
}

// Sum finalizes the hash of everything written so far.
// The HashingWriter must not be written to afterwards.
func (hw *HashingWriter) Sum() Digest {
	return hw.h.Sum()
}
