package fileio

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// ErrWorkdirExists is returned by CreateWorkdir for a non-empty directory.
var ErrWorkdirExists = errors.New("output directory already exists and is not empty")

// CreateWorkdir creates dir for a training run. An existing non-empty
// directory is an error unless force is set.
func CreateWorkdir(dir string, force bool) error {
	entries, err := os.ReadDir(dir)
	switch {
	case err == nil:
		if len(entries) > 0 && !force {
			return errors.Wrapf(ErrWorkdirExists, "%s (use --force to overwrite)", dir)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create output directory %s", dir)
		}
		return nil
	default:
		return errors.Wrapf(err, "inspect output directory %s", dir)
	}
}

// TeeFile appends everything written to w into dir/name as well.
// The returned closer closes the file only.
func TeeFile(w io.Writer, dir, name string) (io.Writer, io.Closer, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", name)
	}
	if w == nil {
		return f, f, nil
	}
	return io.MultiWriter(w, f), f, nil
}
