package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Ridge is least squares with an L2 penalty on the coefficients.
// The intercept is not penalised: X and y are centred before solving.
type Ridge struct {
	State *model.StateManager

	Alpha        float64
	FitIntercept bool

	Coefficients   []float64
	InterceptValue float64
}

// RidgeOption は設定オプション
type RidgeOption func(*Ridge)

// WithAlpha は正則化の強さを設定
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) { r.Alpha = alpha }
}

// WithRidgeFitIntercept は切片の学習有無を設定
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) { r.FitIntercept = fit }
}

// NewRidge は新しいRidgeモデルを作成 (alpha=1.0)
func NewRidge(opts ...RidgeOption) *Ridge {
	r := &Ridge{
		State:        model.NewStateManager(),
		Alpha:        1.0,
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit solves (XᵀX + αI) w = Xᵀy by Cholesky factorisation.
func (r *Ridge) Fit(X, y mat.Matrix) error {
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	rows, cols, err := model.CheckXY("Ridge.Fit", X, y)
	if err != nil {
		return err
	}
	r.State = model.EnsureState(r.State)

	xMean := make([]float64, cols)
	var yMean float64
	if r.FitIntercept {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				xMean[j] += X.At(i, j)
			}
			yMean += y.At(i, 0)
		}
		for j := range xMean {
			xMean[j] /= float64(rows)
		}
		yMean /= float64(rows)
	}

	Xc := mat.NewDense(rows, cols, nil)
	Xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, X)
	yc := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yc.SetVec(i, y.At(i, 0)-yMean)
	}

	gram := mat.NewSymDense(cols, nil)
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(Xc.T(), yc)

	w := mat.NewVecDense(cols, nil)
	var chol mat.Cholesky
	if chol.Factorize(gram) {
		if err := chol.SolveVecTo(w, &rhs); err != nil {
			return errors.Wrap(err, "Ridge.Fit")
		}
	} else {
		// alpha=0 かつランク落ちの場合は最小ノルム解
		var svd mat.SVD
		if !svd.Factorize(Xc, mat.SVDThin) {
			return errors.NewModelError("Ridge.Fit", "svd factorization", errors.ErrSingularMatrix)
		}
		rank := svd.Rank(1e-12)
		if rank == 0 {
			return errors.NewModelError("Ridge.Fit", "rank", errors.ErrSingularMatrix)
		}
		svd.SolveVecTo(w, yc, rank)
	}

	r.Coefficients = make([]float64, cols)
	r.InterceptValue = yMean
	for j := 0; j < cols; j++ {
		r.Coefficients[j] = w.AtVec(j)
		r.InterceptValue -= xMean[j] * r.Coefficients[j]
	}

	r.State.SetDimensions(cols, rows)
	r.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.State.RequireFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := r.State.CheckFeatures("Ridge.Predict", cols); err != nil {
		return nil, err
	}
	return linearPredict(X, r.Coefficients, r.InterceptValue), nil
}

// Score はR²を返す
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2(y, predictions)
}

func (r *Ridge) Weights() []float64 {
	if r.Coefficients == nil {
		return nil
	}
	return append([]float64(nil), r.Coefficients...)
}

func (r *Ridge) Intercept() float64 { return r.InterceptValue }

func (r *Ridge) IsFitted() bool { return r.State.IsFitted() }

func (r *Ridge) Clone() model.Estimator {
	return NewRidge(WithAlpha(r.Alpha), WithRidgeFitIntercept(r.FitIntercept))
}

func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"name":          "ridge",
		"alpha":         r.Alpha,
		"fit_intercept": r.FitIntercept,
	}
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.Alpha, r.FitIntercept)
}

var _ model.LinearModel = (*Ridge)(nil)
