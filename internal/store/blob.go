// Package store persists basin partitions as Parquet objects in a blob
// backend (GCS, the local filesystem or memory).
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// BlobStore is a flat key/value object store. Keys use "/" as separator.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte) error
	// Get fails with ErrNotFound when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key starting with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Backend names accepted by Open.
const (
	BackendGCS    = "gcs"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Options selects and configures a BlobStore backend.
type Options struct {
	Backend string
	Bucket  string
	Dir     string
}

// Open builds the BlobStore named by opts.Backend. The returned close
// function releases backend resources and is never nil.
func Open(ctx context.Context, opts Options) (BlobStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case BackendGCS:
		gcs, err := NewGCSStore(ctx, opts.Bucket)
		if err != nil {
			return nil, noop, err
		}
		return gcs, gcs.Close, nil
	case BackendLocal:
		local, err := NewLocalStore(opts.Dir)
		if err != nil {
			return nil, noop, err
		}
		return local, noop, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
