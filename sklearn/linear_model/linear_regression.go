package linear_model

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

func init() {
	gob.Register(&LinearRegression{})
	gob.Register(&Ridge{})
	gob.Register(&LogisticRegression{})
}

// LinearRegression is a linear regression model using ordinary least squares.
type LinearRegression struct {
	State *model.StateManager

	// Hyperparameters
	FitIntercept bool // Whether to learn the intercept
	Positive     bool // Clip negative coefficients to zero after solving

	// Learned parameters
	Coefficients   []float64
	InterceptValue float64
	Rank           int
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithPositive は係数の非負制約を設定
func WithPositive(positive bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.Positive = positive
	}
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	lr.State = model.EnsureState(lr.State)

	XFit := designMatrix(X, lr.FitIntercept)
	_, width := XFit.Dims()

	// 特異値分解による最小二乗解（ランク落ちでも最小ノルム解を返す）
	var svd mat.SVD
	if !svd.Factorize(XFit, mat.SVDThin) {
		return errors.NewModelError("LinearRegression.Fit", "svd factorization", errors.ErrSingularMatrix)
	}
	lr.Rank = svd.Rank(1e-12)
	if lr.Rank == 0 {
		return errors.NewModelError("LinearRegression.Fit", "rank", errors.ErrSingularMatrix)
	}
	target := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		target.SetVec(i, y.At(i, 0))
	}
	coefficients := mat.NewVecDense(width, nil)
	svd.SolveVecTo(coefficients, target, lr.Rank)

	lr.InterceptValue = 0
	offset := 0
	if lr.FitIntercept {
		lr.InterceptValue = coefficients.AtVec(0)
		offset = 1
	}
	lr.Coefficients = make([]float64, cols)
	for j := 0; j < cols; j++ {
		lr.Coefficients[j] = coefficients.AtVec(j + offset)
	}

	if lr.Positive {
		for j, c := range lr.Coefficients {
			if c < 0 {
				lr.Coefficients[j] = 0
			}
		}
	}

	lr.State.SetDimensions(cols, rows)
	lr.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := lr.State.CheckFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, lr.Coefficients, lr.InterceptValue), nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2(y, predictions)
}

// Weights は学習された重み係数のコピーを返す
func (lr *LinearRegression) Weights() []float64 {
	if lr.Coefficients == nil {
		return nil
	}
	return append([]float64(nil), lr.Coefficients...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.InterceptValue
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"name":          "linear_regression",
		"fit_intercept": lr.FitIntercept,
		"positive":      lr.Positive,
	}
}

// IsFitted はモデルが学習済みかを返す
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}

// Clone は同じハイパーパラメータを持つ未学習モデルを返す
func (lr *LinearRegression) Clone() model.Estimator {
	return NewLinearRegression(WithLRFitIntercept(lr.FitIntercept), WithPositive(lr.Positive))
}

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	if !lr.State.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
	}
	nf, ns := lr.State.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, n_samples=%d, rank=%d)",
		lr.FitIntercept, nf, ns, lr.Rank)
}

// designMatrix は切片用に先頭へ1の列を追加した行列を作る
func designMatrix(X mat.Matrix, intercept bool) *mat.Dense {
	rows, cols := X.Dims()
	if !intercept {
		return mat.DenseCopyOf(X)
	}
	out := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, 1.0)
		for j := 0; j < cols; j++ {
			out.Set(i, j+1, X.At(i, j))
		}
	}
	return out
}

func linearPredict(X mat.Matrix, coef []float64, intercept float64) *mat.Dense {
	rows, cols := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := intercept
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions
}

func r2(y, predictions mat.Matrix) (float64, error) {
	rows, _ := y.Dims()
	var yMean float64
	for i := 0; i < rows; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(rows)

	var ssTot, ssRes float64
	for i := 0; i < rows; i++ {
		yi := y.At(i, 0)
		predi := predictions.At(i, 0)
		ssTot += (yi - yMean) * (yi - yMean)
		ssRes += (yi - predi) * (yi - predi)
	}
	if ssTot == 0 {
		return 0, errors.NewValueError("Score", "Cannot compute score with zero variance in y_true")
	}
	return 1.0 - ssRes/ssTot, nil
}

var _ model.LinearModel = (*LinearRegression)(nil)
