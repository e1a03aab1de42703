package linear_model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// LogisticRegression implements logistic regression for classification.
// Binary problems fit a single weight vector; multiclass problems are fit
// one-vs-rest and PredictProba normalises the per-class sigmoids.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	FitIntercept bool
	MaxIter      int
	Tol          float64
	RandomState  int64 // Seed for weight initialisation; <0 starts from zeros

	// Model parameters
	Coef        [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	Intercepts  []float64
	ClassLabels []float64
	NIter       []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
		RandomState:  -1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the penalty type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRMaxIter sets maximum iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// WithLRRandomState sets random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.RandomState = seed
	}
}

func (lr *LogisticRegression) validate() error {
	if lr.Penalty != "l2" && lr.Penalty != "none" {
		return errors.NewValidationError("penalty", "must be l2 or none", lr.Penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", lr.MaxIter)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	lr.State = model.EnsureState(lr.State)

	lr.ClassLabels = model.UniqueLabels(y)
	if len(lr.ClassLabels) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(lr.ClassLabels)))
	}
	lr.initializeWeights(nFeatures)

	if len(lr.ClassLabels) == 2 {
		if err := lr.fitBinary(X, binaryTarget(y, lr.ClassLabels[1]), 0); err != nil {
			return err
		}
	} else {
		for classIdx, class := range lr.ClassLabels {
			if err := lr.fitBinary(X, binaryTarget(y, class), classIdx); err != nil {
				return err
			}
		}
	}

	lr.State.SetDimensions(nFeatures, nSamples)
	lr.State.SetFitted()
	return nil
}

func binaryTarget(y mat.Matrix, positive float64) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := range out {
		if y.At(i, 0) == positive {
			out[i] = 1
		}
	}
	return out
}

// initializeWeights initializes model weights
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nModels := 1
	if len(lr.ClassLabels) > 2 {
		nModels = len(lr.ClassLabels)
	}
	lr.Coef = make([][]float64, nModels)
	for i := range lr.Coef {
		lr.Coef[i] = make([]float64, nFeatures)
	}
	lr.Intercepts = make([]float64, nModels)
	lr.NIter = make([]int, nModels)

	if lr.RandomState < 0 {
		return
	}
	// Initialize with small random values
	rng := rand.New(rand.NewSource(lr.RandomState))
	for i := range lr.Coef {
		for j := range lr.Coef[i] {
			lr.Coef[i][j] = rng.NormFloat64() * 0.01
		}
	}
}

// fitBinary fits one sigmoid with gradient descent. Diverging weights
// stop the fit with a NumericalInstabilityError.
func (lr *LogisticRegression) fitBinary(X mat.Matrix, yBinary []float64, k int) error {
	nSamples, nFeatures := X.Dims()
	weights := lr.Coef[k]
	intercept := &lr.Intercepts[k]

	baseLearningRate := 1.0
	gradWeights := make([]float64, nFeatures)
	converged := false

	for iter := 0; iter < lr.MaxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - yBinary[i]
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.Penalty == "l2" {
			lambda := 1.0 / lr.C
			for j := range weights {
				gradWeights[j] += lambda * weights[j] / float64(nSamples)
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.FitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		lr.NIter[k] = iter + 1
		if err := errors.CheckNumericalStability("LogisticRegression.Fit", weights, iter); err != nil {
			return err
		}

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.Tol {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.MaxIter,
			"gradient did not reach tol; increase max_iter or scale the data"))
	}
	return nil
}

func (lr *LogisticRegression) decision(X mat.Matrix, i, k int) float64 {
	z := lr.Intercepts[k]
	for j, w := range lr.Coef[k] {
		z += X.At(i, j) * w
	}
	return z
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < nClasses; c++ {
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, lr.ClassLabels[best])
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.State.CheckFeatures("LogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	nClasses := len(lr.ClassLabels)
	probas := mat.NewDense(nSamples, nClasses, nil)
	for i := 0; i < nSamples; i++ {
		if nClasses == 2 {
			p := sigmoid(lr.decision(X, i, 0))
			probas.Set(i, 0, 1.0-p)
			probas.Set(i, 1, p)
			continue
		}
		sum := 0.0
		for k := 0; k < nClasses; k++ {
			p := sigmoid(lr.decision(X, i, k))
			probas.Set(i, k, p)
			sum += p
		}
		for k := 0; k < nClasses; k++ {
			if sum > 0 {
				probas.Set(i, k, probas.At(i, k)/sum)
			} else {
				probas.Set(i, k, 1/float64(nClasses))
			}
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the sorted labels seen by Fit.
func (lr *LogisticRegression) Classes() []float64 {
	return append([]float64(nil), lr.ClassLabels...)
}

func (lr *LogisticRegression) IsFitted() bool { return lr.State.IsFitted() }

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Estimator {
	return NewLogisticRegression(
		WithLRPenalty(lr.Penalty),
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.FitIntercept),
		WithLRMaxIter(lr.MaxIter),
		WithLRTol(lr.Tol),
		WithLRRandomState(lr.RandomState),
	)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"name":          "logistic_regression",
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"random_state":  lr.RandomState,
	}
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(C=%g, penalty=%s, max_iter=%d)", lr.C, lr.Penalty, lr.MaxIter)
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z < 0 {
		e := math.Exp(z)
		return e / (1.0 + e)
	}
	return 1.0 / (1.0 + math.Exp(-z))
}
