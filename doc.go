// Package cas is a content-addressable storage engine for typed values.
//
// A value is serialized to a canonical byte encoding by a Codec,
// and the encoding is stored in a Backend under its digest:
// a cryptographic hash of exactly those bytes.
// The digest is computed in the same pass that writes the bytes,
// by a HashingWriter sitting between the codec and the backend.
//
// Because the lookup key is computed from the content,
// equal values always get the same digest,
// and storing a value twice is harmless.
// Nothing is ever deleted.
//
// Values may refer to other values by digest.
// A codec writing a composite value can store a child as an object of its own
// (see Sink.Nested, PutRef and Linked)
// and embed only the child's digest in the parent.
// Large structures thus become a directed acyclic graph
// whose shared subtrees are stored once.
// A Lazy defers the hashing and storing of a subtree
// until it is forced
// or until a value containing it is stored.
//
// A Store binds one Backend and one HasherFactory to one Go type.
// Several Stores may share a backend;
// they also share the reader-writer lock guarding it,
// which the backend supplies (see Locker).
// Stores made with Derive share it in every case.
// Put holds the write lock for its whole duration,
// since nested stores happen while the parent is being encoded.
// Get holds the read lock.
//
// Concrete storage media live in the subpackages of backend.
// Most of them implement the simpler BlobStore interface,
// which NewBackend adapts to a Backend.
package cas
