// Package naive_bayes provides naive Bayes classifiers.
package naive_bayes

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/core/parallel"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// parallelRows is the row count above which predictions are computed in
// parallel chunks.
const parallelRows = 1000

func init() {
	gob.Register(&GaussianNB{})
}

// GaussianNB models each feature as an independent normal per class.
type GaussianNB struct {
	State *model.StateManager

	// VarSmoothing is added to every variance as a fraction of the largest
	// feature variance.
	VarSmoothing float64

	ClassLabels []float64
	ClassPrior  []float64
	Theta       [][]float64 // per-class feature means
	Var         [][]float64 // per-class feature variances
}

// NewGaussianNB creates a GaussianNB with var_smoothing=1e-9.
func NewGaussianNB(varSmoothing ...float64) *GaussianNB {
	nb := &GaussianNB{State: model.NewStateManager(), VarSmoothing: 1e-9}
	if len(varSmoothing) > 0 {
		nb.VarSmoothing = varSmoothing[0]
	}
	return nb
}

// Fit estimates class priors and per-class feature moments.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	if nb.VarSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.VarSmoothing)
	}
	nSamples, nFeatures, err := model.CheckXY("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}
	nb.State = model.EnsureState(nb.State)

	nb.ClassLabels = model.UniqueLabels(y)
	nClasses := len(nb.ClassLabels)
	members := make([][]int, nClasses)
	for i := 0; i < nSamples; i++ {
		k := model.LabelIndex(nb.ClassLabels, y.At(i, 0))
		members[k] = append(members[k], i)
	}

	col := make([]float64, nSamples)
	maxVar := 0.0
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	epsilon := nb.VarSmoothing * maxVar
	if epsilon == 0 {
		epsilon = 1e-12
	}

	nb.ClassPrior = make([]float64, nClasses)
	nb.Theta = make([][]float64, nClasses)
	nb.Var = make([][]float64, nClasses)
	for k, rows := range members {
		nb.ClassPrior[k] = float64(len(rows)) / float64(nSamples)
		nb.Theta[k] = make([]float64, nFeatures)
		nb.Var[k] = make([]float64, nFeatures)
		values := make([]float64, len(rows))
		for j := 0; j < nFeatures; j++ {
			for r, i := range rows {
				values[r] = X.At(i, j)
			}
			mean, variance := stat.PopMeanVariance(values, nil)
			nb.Theta[k][j] = mean
			nb.Var[k][j] = variance + epsilon
		}
	}

	nb.State.SetDimensions(nFeatures, nSamples)
	nb.State.SetFitted()
	return nil
}

func (nb *GaussianNB) jointLogLikelihood(X mat.Matrix, i int, out []float64) {
	_, nFeatures := X.Dims()
	for k := range nb.ClassLabels {
		ll := math.Log(nb.ClassPrior[k])
		for j := 0; j < nFeatures; j++ {
			ll += distuv.Normal{Mu: nb.Theta[k][j], Sigma: math.Sqrt(nb.Var[k][j])}.LogProb(X.At(i, j))
		}
		out[k] = ll
	}
}

// PredictProba returns normalised posterior class probabilities.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.State.RequireFitted("GaussianNB", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := nb.State.CheckFeatures("GaussianNB.PredictProba", cols); err != nil {
		return nil, err
	}
	nClasses := len(nb.ClassLabels)
	probas := mat.NewDense(rows, nClasses, nil)
	parallel.ParallelizeWithThreshold(rows, parallelRows, func(start, end int) {
		jll := make([]float64, nClasses)
		for i := start; i < end; i++ {
			nb.jointLogLikelihood(X, i, jll)
			norm := floats.LogSumExp(jll)
			for k, v := range jll {
				probas.Set(i, k, math.Exp(v-norm))
			}
		}
	})
	return probas, nil
}

// Predict returns the maximum a posteriori class.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.State.RequireFitted("GaussianNB", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := nb.State.CheckFeatures("GaussianNB.Predict", cols); err != nil {
		return nil, err
	}
	predictions := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, parallelRows, func(start, end int) {
		jll := make([]float64, len(nb.ClassLabels))
		for i := start; i < end; i++ {
			nb.jointLogLikelihood(X, i, jll)
			predictions.Set(i, 0, nb.ClassLabels[floats.MaxIdx(jll)])
		}
	})
	return predictions, nil
}

func (nb *GaussianNB) Classes() []float64 {
	return append([]float64(nil), nb.ClassLabels...)
}

func (nb *GaussianNB) IsFitted() bool { return nb.State.IsFitted() }

func (nb *GaussianNB) Clone() model.Estimator { return NewGaussianNB(nb.VarSmoothing) }

func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{"name": "gaussian_nb", "var_smoothing": nb.VarSmoothing}
}

func (nb *GaussianNB) String() string {
	return fmt.Sprintf("GaussianNB(var_smoothing=%g)", nb.VarSmoothing)
}
