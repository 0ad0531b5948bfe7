// Package blob stores evidence binaries on the local filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/assurelog/internal/core"
)

// FS keeps each blob as one file directly under Dir.
type FS struct {
	Dir string
}

var _ core.BlobStore = (*FS)(nil)

// NewFS creates dir if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FS{Dir: dir}, nil
}

func (f *FS) path(name string) (string, error) {
	if !core.ValidStoredName(name) {
		return "", fmt.Errorf("blob %q: %w", name, core.ErrNotFound)
	}
	return filepath.Join(f.Dir, name), nil
}

// Put writes r to a new file. Existing blobs are never overwritten.
func (f *FS) Put(ctx context.Context, name string, r io.Reader) (int64, error) {
	p, err := f.path(name)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}

	n, err := io.Copy(file, &ctxReader{ctx: ctx, r: r})
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return 0, fmt.Errorf("write blob: %w", err)
	}
	return n, nil
}

// Open returns a reader for the blob; missing blobs give core.ErrNotFound.
func (f *FS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// Delete removes the blob. A blob that is already gone is not an error.
func (f *FS) Delete(_ context.Context, name string) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
