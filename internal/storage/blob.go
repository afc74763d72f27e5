// Package storage keeps uploaded media on disk. Keys are generated here,
// never taken from the client.
package storage

import (
	"errors"
	"io"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured cap.
	ErrTooLarge = errors.New("upload too large")
	// ErrUnsupportedType is returned for uploads that are not images.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrBadKey is returned for malformed asset keys.
	ErrBadKey = errors.New("bad asset key")
)

// Store saves uploads and serves them back by key.
type Store interface {
	Put(r io.Reader) (key string, err error)
	Open(key string) (io.ReadCloser, string, error)
}
