// Package kv defines the flat key-value persistence contract the permission
// and write-back stores serialize their documents into, with Redis and
// PostgreSQL backends.
package kv

import "context"

// Store is the host persistence boundary. Values are opaque serialized
// documents; namespacing is the caller's concern (provider-prefixed keys).
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value for key, creating or replacing it.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
