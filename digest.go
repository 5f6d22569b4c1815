package cas

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// DigestSize is the length in bytes of a Digest.
const DigestSize = 32

// Digest identifies a stored value: it is the hash of the value's canonical encoding.
// Digests are produced by finalizing a Hasher;
// callers get them from Store.Put and friends and should not invent them.
type Digest [DigestSize]byte

// Zero is the zero value of a Digest.
var Zero Digest

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero tells whether d is the zero Digest.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Less orders digests lexicographically by their bytes.
func (d Digest) Less(other Digest) bool {
	return bytes.Compare(d[:], other[:]) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	got, err := DigestFromHex(string(text))
	if err != nil {
		return err
	}
	*d = got
	return nil
}

// DigestFromBytes copies b into a Digest.
// It is an error if b is not exactly DigestSize bytes long.
func DigestFromBytes(b []byte) (Digest, error) {
	var out Digest
	if len(b) != DigestSize {
		return out, fmt.Errorf("digest has %d bytes, want %d", len(b), DigestSize)
	}
	copy(out[:], b)
	return out, nil
}

// DigestFromHex parses the hex encoding of a Digest, as produced by Digest.String.
func DigestFromHex(s string) (Digest, error) {
	var out Digest
	if len(s) != 2*DigestSize {
		return out, fmt.Errorf("digest %q has wrong length", s)
	}
	_, err := hex.Decode(out[:], []byte(s))
	return out, err
}

// Value implements driver.Valuer,
// so a Digest can be a SQL query parameter.
func (d Digest) Value() (driver.Value, error) {
	return d[:], nil
}

// Scan implements sql.Scanner.
func (d *Digest) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into a digest", src)
	}
	got, err := DigestFromBytes(b)
	if err != nil {
		return err
	}
	*d = got
	return nil
}
