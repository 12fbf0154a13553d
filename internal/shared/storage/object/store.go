package object

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrStore marks transport, auth or filesystem failures of the backing store.
	ErrStore = errors.New("object store failure")
	// ErrNotFound is returned by Open when no object exists at the key.
	ErrNotFound = errors.New("object not found")
)

// PutOptions carries the HTTP metadata stored with an object.
type PutOptions struct {
	ContentType        string
	ContentDisposition string
}

// Store defines the contract for saving, probing and sharing binary objects by key.
// Keys are caller-chosen and overwritten on Put.
type Store interface {
	// Exists reports whether an object is present. A missing object is (false, nil).
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// SignedURL returns a time-limited download URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
