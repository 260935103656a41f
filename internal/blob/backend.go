package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("blob not found")

// Backend stores blob bytes under slash-separated relative paths.
type Backend interface {
	Put(ctx context.Context, storagePath string, src io.Reader, size int64, contentType string) error
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// cleanStoragePath rejects absolute paths and anything escaping the root.
func cleanStoragePath(storagePath string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(storagePath, "\\", "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", ErrInvalidPath
	}
	return clean, nil
}
