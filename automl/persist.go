package automl

import (
	"context"
	"io"
	"os"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/fileio"
)

// ModelFile is the artifact name train writes into its output directory.
const ModelFile = "model.gob"

// Save writes m as a gob blob to path, which may be local or s3://.
// Local files are encoded next to path and renamed into place, so a failed
// save never leaves a truncated model behind.
func Save(ctx context.Context, path string, m *Model) error {
	if fileio.IsRemote(path) {
		w, err := fileio.Create(ctx, path)
		if err != nil {
			return err
		}
		return encode(w, path, m)
	}
	local, err := fileio.Default().Path(ctx, path)
	if err != nil {
		return err
	}
	tmp := local + ".tmp"
	w, err := fileio.Create(ctx, tmp)
	if err != nil {
		return err
	}
	if err := encode(w, path, m); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, local); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "save model to %s", path)
	}
	return nil
}

// encode closes w in every case.
func encode(w io.WriteCloser, path string, m *Model) error {
	if err := model.SaveModelToWriter(m, w); err != nil {
		w.Close()
		return errors.Wrapf(err, "save model to %s", path)
	}
	return errors.Wrapf(w.Close(), "save model to %s", path)
}

// Load reads a Model written by Save. Remote paths go through the download
// cache.
func Load(ctx context.Context, path string) (*Model, error) {
	r, err := fileio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var m Model
	if err := model.LoadModelFromReader(&m, r); err != nil {
		return nil, errors.Wrapf(err, "load model from %s", path)
	}
	return &m, nil
}
