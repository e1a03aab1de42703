package model_selection

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/core/parallel"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// CVResult stores cross-validation results. Scores are keyed by scorer
// name and hold one entry per fold in fold order.
type CVResult struct {
	Scores     map[string][]float64
	Estimators []model.Estimator
}

// Mean returns the mean test score for the named scorer.
func (cv *CVResult) Mean(name string) float64 {
	scores := cv.Scores[name]
	if len(scores) == 0 {
		return math.NaN()
	}
	return stat.Mean(scores, nil)
}

// Std returns the sample standard deviation of the named scorer's fold
// scores, or 0 for a single fold.
func (cv *CVResult) Std(name string) float64 {
	scores := cv.Scores[name]
	if len(scores) <= 1 {
		return 0
	}
	return stat.StdDev(scores, nil)
}

// DefaultSplitter returns a shuffled StratifiedKFold for classifiers and a
// shuffled KFold otherwise.
func DefaultSplitter(est model.Estimator, nSplits int, seed uint64) KFoldSplitter {
	if model.IsClassifier(est) {
		return NewStratifiedKFold(nSplits, true, seed)
	}
	return NewKFold(nSplits, true, seed)
}

// CrossValidate fits a clone of est on every training fold and scores it on
// the matching test fold. Folds run on up to nJobs goroutines (≤0 = all
// CPUs); results are stored by fold index, so they do not depend on
// scheduling.
func CrossValidate(ctx context.Context, est model.Estimator, X mat.Matrix, y *mat.VecDense,
	splitter KFoldSplitter, scorers []*metrics.Scorer, nJobs int) (*CVResult, error) {
	if est == nil {
		return nil, errors.NewValueError("CrossValidate", "estimator is nil")
	}
	if y == nil {
		return nil, errors.NewValueError("CrossValidate", "y is required")
	}
	if len(scorers) == 0 {
		return nil, errors.NewValueError("CrossValidate", "at least one scorer is required")
	}
	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}

	scores := make([][]float64, len(folds))
	fitted := make([]model.Estimator, len(folds))
	err = parallel.ForEach(len(folds), nJobs, func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fold := folds[i]
		XTrain, yTrain := Subset(X, y, fold.TrainIndices)
		XTest, yTest := Subset(X, y, fold.TestIndices)

		clone := model.Clone(est)
		if err := clone.Fit(XTrain, yTrain); err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		scores[i] = make([]float64, len(scorers))
		for k, s := range scorers {
			v, err := s.Score(clone, XTest, yTest)
			if err != nil {
				return errors.Wrapf(err, "fold %d: %s", i, s.Name)
			}
			scores[i][k] = v
		}
		fitted[i] = clone
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CVResult{Scores: make(map[string][]float64, len(scorers)), Estimators: fitted}
	for k, s := range scorers {
		perFold := make([]float64, len(folds))
		for i := range folds {
			perFold[i] = scores[i][k]
		}
		result.Scores[s.Name] = perFold
	}
	return result, nil
}
