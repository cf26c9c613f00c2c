// Package storage provides the durable key/value store the cart session and
// offline queue persist themselves into. Values are JSON-serialized strings;
// there are no transactional guarantees, and concurrent writers to the same
// key follow last-writer-wins.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("storage: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}
