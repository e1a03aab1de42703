// Package engine defines the contract between an automl Model and the
// search backend that produces its estimator.
//
// An Engine runs a budgeted search in Fit and hands back the best estimator
// it found. The Model stores that estimator and later passes it back through
// Refit and Predict; engines never keep a hidden reference to it. Engines are
// persisted together with the Model, so implementations keep their state in
// exported fields and register themselves with encoding/gob.
package engine

import (
	"context"
	"encoding/gob"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Default seeds used when the configuration does not set them.
const (
	DefaultRandomSeed  = 13370
	DefaultNumericSeed = 1337
)

// Seeds are threaded explicitly into every stochastic step of a search.
// Random drives the sampling of configurations and pipelines, Numeric the
// data splits and estimator initialisation.
type Seeds struct {
	Random  uint64
	Numeric uint64
}

// DefaultSeeds returns the seeds used when none are configured.
func DefaultSeeds() Seeds {
	return Seeds{Random: DefaultRandomSeed, Numeric: DefaultNumericSeed}
}

// Input is the training data and run context handed to Engine.Fit.
type Input struct {
	XTrain mat.Matrix
	YTrain *mat.VecDense

	// XVal and YVal are nil when no validation file was given.
	XVal mat.Matrix
	YVal *mat.VecDense

	// Workdir receives the engine's log and best-configuration record.
	// Empty means no artifacts are written.
	Workdir string

	Seeds Seeds

	// Progress receives the engine's human-readable log as it is produced.
	// nil discards it.
	Progress io.Writer
}

// HasValidation reports whether a validation set was supplied.
func (in Input) HasValidation() bool {
	return in.XVal != nil && in.YVal != nil
}

// Report holds training diagnostics, written to metrics.json.
type Report map[string]float64

// Engine is one AutoML backend.
type Engine interface {
	// Name is the registry name of the engine.
	Name() string

	// Fit searches for the best estimator on in.XTrain / in.YTrain.
	Fit(ctx context.Context, in Input) (model.Estimator, Report, error)

	// Refit fits the structure of est on new data without searching again.
	// est itself is left untouched.
	Refit(est model.Estimator, X, y mat.Matrix) (model.Estimator, error)

	// Predict applies est to X.
	Predict(est model.Estimator, X mat.Matrix) (mat.Matrix, error)
}

// Base implements Refit and Predict for engines whose estimators are plain
// model.Estimators. Kind names the engine in UntrainedModelError.
type Base struct {
	Kind string
}

// Name returns Kind.
func (b Base) Name() string { return b.Kind }

// Refit clones est and fits the clone on X, y.
func (b Base) Refit(est model.Estimator, X, y mat.Matrix) (model.Estimator, error) {
	if est == nil {
		return nil, errors.NewUntrainedModelError(b.Kind, "retrain")
	}
	clone := model.Clone(est)
	if err := clone.Fit(X, y); err != nil {
		return nil, errors.Wrapf(err, "%s: refit", b.Kind)
	}
	return clone, nil
}

// Predict returns est's predictions for X.
func (b Base) Predict(est model.Estimator, X mat.Matrix) (mat.Matrix, error) {
	if est == nil {
		return nil, errors.NewUntrainedModelError(b.Kind, "predict")
	}
	return est.Predict(X)
}
