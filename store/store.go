// Package store is the only path through which room and user records are read
// or written.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for an absent key.
var ErrNotFound = errors.New("store: key not found")

// Writer queues mutations inside an Atomic block.
type Writer interface {
	Set(key string, value []byte)
	Delete(keys ...string)
	ListAppend(key, value string)
	ListRemove(key, value string)
}

// Store is a key/value store with ordered string lists.
//
// Atomic applies every mutation queued by fn as one unit: either all of them
// become visible or none do. Reads made inside fn see the state before the block.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	ListAppend(ctx context.Context, key, value string) error
	ListRemove(ctx context.Context, key, value string) error
	ListRead(ctx context.Context, key string) ([]string, error)
	Atomic(ctx context.Context, fn func(w Writer) error) error
	Close() error
}
