// Package cache stores computed channel programs so repeated runs over the
// same masks skip extraction and optimization.
//
// Three backends implement [Cache]:
//   - [FileCache]: JSON files under a directory, the CLI default
//   - [RedisCache]: a shared Redis instance for the HTTP server
//   - [NullCache]: caching disabled
//
// Keys are built by a [Keyer] from a content hash of the mask plus every
// option that changes the result.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	// TTLChannel is how long a compiled channel program stays cached.
	TTLChannel = 7 * 24 * time.Hour

	// TTLRun is how long a combined program stays cached.
	TTLRun = 24 * time.Hour
)

// NullCache stores nothing; every Get misses. It backs --no-cache and is the
// runner's fallback when no cache is configured.
type NullCache struct{}

// NewNullCache returns a cache that never hits.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
