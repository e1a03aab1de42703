package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// mapeEps は |y_true| がゼロのときの分母の下限
const mapeEps = 2.220446049250313e-16

// residuals returns yTrue-yPred. Errors carry op, the scorer name.
func residuals(op string, yTrue, yPred *mat.VecDense) ([]float64, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return nil, err
	}
	r := make([]float64, n)
	for i := range r {
		r[i] = yTrue.AtVec(i) - yPred.AtVec(i)
	}
	return r, nil
}

func meanSquare(r []float64) float64 {
	return floats.Dot(r, r) / float64(len(r))
}

// MSE は平均二乗誤差
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("neg_mean_squared_error", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return meanSquare(r), nil
}

// RMSE は平均二乗誤差の平方根
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("neg_root_mean_squared_error", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(meanSquare(r)), nil
}

// MAE は平均絶対誤差
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("neg_mean_absolute_error", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Norm(r, 1) / float64(len(r)), nil
}

// MAPE returns the mean of |y_true-y_pred| / max(|y_true|, eps) as a
// fraction, so a zero target yields a very large but finite error.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("neg_mean_absolute_percentage_error", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, d := range r {
		sum += math.Abs(d) / math.Max(math.Abs(yTrue.AtVec(i)), mapeEps)
	}
	return sum / float64(len(r)), nil
}

// R2Score は決定係数。yTrueが定数の場合は完全一致で1、それ以外は0を返し
// UndefinedMetricWarningを出す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("r2", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	y := mat.Col(nil, 0, yTrue)
	mean := stat.Mean(y, nil)
	var tss float64
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	rss := floats.Dot(r, r)
	return varianceRatio("r2", rss, tss)
}

// ExplainedVarianceScore は 1 - Var(y_true-y_pred)/Var(y_true)。
// R2Scoreと違い残差の平均（バイアス）を罰しない。
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("explained_variance", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	_, varTrue := stat.PopMeanVariance(mat.Col(nil, 0, yTrue), nil)
	_, varRes := stat.PopMeanVariance(r, nil)
	return varianceRatio("explained_variance", varRes, varTrue)
}

func varianceRatio(metric string, num, den float64) (float64, error) {
	if den == 0 {
		result := 0.0
		if num == 0 {
			result = 1
		}
		errors.Warn(errors.NewUndefinedMetricWarning(metric, "y_true is constant", result))
		return result, nil
	}
	return 1 - num/den, nil
}
