package fileio

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Open opens p for reading. Remote paths go through the default cache.
func Open(ctx context.Context, p string) (io.ReadCloser, error) {
	return Default().Open(ctx, p)
}

// Open opens p for reading, downloading it first when it is remote.
func (c *Cache) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	local, err := c.Path(ctx, p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(local)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p)
	}
	return f, nil
}

// Create opens p for writing. s3:// destinations are uploaded on Close.
func Create(ctx context.Context, p string) (io.WriteCloser, error) {
	return Default().Create(ctx, p)
}

// Create opens p for writing. Parent directories of local paths are created.
func (c *Cache) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	switch scheme(p) {
	case "s3":
		bucket, key, err := splitS3URL(p)
		if err != nil {
			return nil, err
		}
		return &s3Writer{ctx: ctx, cache: c, bucket: bucket, key: key}, nil
	case "http", "https":
		return nil, errors.Newf("cannot write to %s: HTTP destinations are read-only", p)
	}
	local, err := c.Path(ctx, p)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(local); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory %s", dir)
		}
	}
	f, err := os.Create(local)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", p)
	}
	return f, nil
}
