package storage

import (
	"context"
	"time"
)

// PageCache holds fetched page bodies for a limited time so repeated
// requests for the same target skip the network
type PageCache interface {
	// Get returns the cached body for key; ok is false on a miss or expiry
	Get(key string) (body string, ok bool, err error)

	// Put stores body under key until the cache TTL passes
	Put(key, body string) error

	// Len returns the number of live entries
	Len() (int, error)

	// RunGC reclaims space periodically. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close releases the store; cached data is discarded
	Close() error
}
