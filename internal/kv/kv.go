// Package kv provides the flat key-value substrate underneath the document
// store. It is a deliberately small contract: string keys, string values,
// synchronous operations, no transactions and no secondary indexes. Anything
// smarter (collections, shapes, indexes) is layered on top by docstore.
package kv

import "errors"

// ErrQuotaExceeded is returned by Set when a value exceeds the store's
// configured per-value size limit. Callers are expected to recover by
// shrinking or cleaning up data; the write is never retried internally.
var ErrQuotaExceeded = errors.New("kv: value exceeds quota")

// Store is the substrate contract. Implementations must be safe for
// concurrent use at the single-operation level; read-modify-write sequences
// built on top of Get/Set are the caller's problem to serialize.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key does not exist.
	Get(key string) (string, bool, error)

	// Set writes a value, overwriting any existing one. Returns
	// ErrQuotaExceeded when the value is larger than the configured limit.
	Set(key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all keys beginning with prefix, in unspecified order.
	Keys(prefix string) ([]string, error)

	// Close releases the underlying database.
	Close() error
}

// Options configure a substrate backend.
type Options struct {
	// MaxValueSize bounds the byte length of a single value. Zero means
	// unlimited. This models the hard quota real flat stores impose.
	MaxValueSize int
}

func (o Options) checkQuota(value string) error {
	if o.MaxValueSize > 0 && len(value) > o.MaxValueSize {
		return ErrQuotaExceeded
	}
	return nil
}
