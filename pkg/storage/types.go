package storage

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by stores that refuse a write for lack of space.
var ErrQuotaExceeded = errors.New("storage: quota exceeded")

// ErrEmptyKey is returned when a write or delete names no key.
var ErrEmptyKey = errors.New("storage: key is required")

// Store is a flat string key-value store.
type Store interface {
	// GetItem returns the value for key; ok is false when the key is missing.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	// Keys lists every key currently held.
	Keys(ctx context.Context) ([]string, error)
}
