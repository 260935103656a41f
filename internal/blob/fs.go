package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSBackend keeps blobs as files below a root directory.
type FSBackend struct {
	rootDir string
}

func NewFSBackend(rootDir string) (*FSBackend, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}
	return &FSBackend{rootDir: rootDir}, nil
}

func (b *FSBackend) Put(_ context.Context, storagePath string, src io.Reader, _ int64, _ string) error {
	absPath, err := b.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), filepath.Base(absPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary blob file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, src); err != nil {
		return fmt.Errorf("writing blob file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("finalizing blob file: %w", err)
	}

	return nil
}

func (b *FSBackend) Open(_ context.Context, storagePath string) (io.ReadCloser, error) {
	absPath, err := b.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob file: %w", err)
	}
	return f, nil
}

func (b *FSBackend) Delete(_ context.Context, storagePath string) error {
	absPath, err := b.resolve(storagePath)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting blob file: %w", err)
	}

	return nil
}

func (b *FSBackend) resolve(storagePath string) (string, error) {
	clean, err := cleanStoragePath(storagePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.rootDir, filepath.FromSlash(clean)), nil
}
