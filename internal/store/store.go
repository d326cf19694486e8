package store

import (
	"context"
	"errors"
)

// Common errors returned by the store
var (
	ErrNotFound = errors.New("key not found")
)

// Store is a string key-value store shared by every execution context (process,
// tab) of one client installation. Writes are last-write-wins.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key
	Set(ctx context.Context, key, value string) error

	// SetMany stores all entries in a single write, so readers never observe
	// only part of the group
	SetMany(ctx context.Context, entries map[string]string) error

	// Delete removes the given keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error

	// Update removes del and stores set in a single write. A key named in
	// both ends up stored.
	Update(ctx context.Context, set map[string]string, del []string) error

	// Origin identifies this handle in change notifications
	Origin() string
}

// Change describes a write made through some handle of a shared store.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Watcher reports writes made by other handles sharing the same backing store.
// Writes made through the watching handle itself are not reported. The
// returned channel is closed once ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// WatchableStore is a Store whose cross-context writes can be observed.
type WatchableStore interface {
	Store
	Watcher
}
