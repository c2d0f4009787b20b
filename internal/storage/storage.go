package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotSupported is returned by backends that cannot serve an operation.
	ErrNotSupported = errors.New("operation not supported by storage backend")
	// ErrObjectNotFound is returned when a key does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
// Size is the number of bytes actually written.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage persists uploaded payloads under keys.
type Storage interface {
	// Put stores the payload read from r under key. Callers supply unique keys.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL, or ErrNotSupported.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Persist writes r under dir with a generated unique name that keeps the extension of
// originalName. size may be -1 when unknown. The returned info carries the stored key and
// the byte length written.
func Persist(ctx context.Context, s Storage, dir, originalName string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	if r == nil {
		return ObjectInfo{}, errors.New("persist upload: reader is nil")
	}
	name := uuid.New().String() + filepath.Ext(originalName)
	key := path.Join(filepath.ToSlash(dir), name)

	info, err := s.Put(ctx, key, r, PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalName,
		},
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("persist upload: %w", err)
	}
	return info, nil
}
