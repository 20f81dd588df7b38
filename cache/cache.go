// Package cache is the explicit invalidation layer used instead of ad hoc global caches.
// Every entry is addressed by a typed Key so callers invalidate a single entity or a whole
// entity type without knowing how the backend lays keys out.
package cache

import (
	"context"
	"errors"
	"time"
)

// Entity identifies the kind of data a key points at
type Entity string

const (
	// EntityAsset caches fetched remote asset bytes keyed by URL
	EntityAsset Entity = "asset"
	// EntityOrderFiles caches regenerated production file sets keyed by order id
	EntityOrderFiles Entity = "order_files"
)

// Key addresses one cached value
type Key struct {
	Entity Entity
	ID     string
}

func (k Key) String() string {
	return string(k.Entity) + ":" + k.ID
}

// ErrInvalidKey is returned for keys without entity or id
var ErrInvalidKey = errors.New("cache: invalid key")

// Store is implemented by the memory and redis backends
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
	InvalidateEntity(ctx context.Context, entity Entity) error
}

func validate(k Key) error {
	if k.Entity == "" || k.ID == "" {
		return ErrInvalidKey
	}
	return nil
}
