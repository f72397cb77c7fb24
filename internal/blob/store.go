// Package blob abstracts the object store holding chunk sequences and
// accumulated analysis text.
//
// Keys are hierarchical strings of the form {user}/{pack}/{source}/{artifact}.
// There is no atomic append primitive: "appending" is read-then-write, and
// the pipeline relies on the single-writer-per-source invariant enforced by
// the job scheduler rather than on storage-level locking.
package blob

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob: not found")

// Store is the minimal object-store contract the pipeline consumes.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
}

// Key joins path segments into a store key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}
