package model_selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/sklearn/linear_model"
	"github.com/YuminosukeSato/automlcli/sklearn/tree"
)

func coverage(t *testing.T, folds []CVFold, n int) {
	t.Helper()
	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, n, len(f.TrainIndices)+len(f.TestIndices))
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	assert.Len(t, seen, n)
	for idx, c := range seen {
		assert.Equal(t, 1, c, "index %d tested %d times", idx, c)
	}
}

func TestKFold(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	folds, err := NewKFold(3, false, 0).Split(X, nil)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	coverage(t, folds, 10)

	a, err := NewKFold(3, true, 42).Split(X, nil)
	require.NoError(t, err)
	b, err := NewKFold(3, true, 42).Split(X, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	coverage(t, a, 10)

	_, err = NewKFold(11, false, 0).Split(X, nil)
	assert.Error(t, err)
	_, err = NewKFold(1, false, 0).Split(X, nil)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	X := mat.NewDense(12, 1, nil)
	y := mat.NewVecDense(12, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1})
	folds, err := NewStratifiedKFold(4, true, 7).Split(X, y)
	require.NoError(t, err)
	coverage(t, folds, 12)
	for _, f := range folds {
		ones := 0
		for _, idx := range f.TestIndices {
			if y.AtVec(idx) == 1 {
				ones++
			}
		}
		assert.Equal(t, 1, ones)
		assert.Len(t, f.TestIndices, 3)
	}
}

func TestTrainTestSplit(t *testing.T) {
	X := mat.NewDense(20, 2, nil)
	y := mat.NewVecDense(20, nil)
	for i := 0; i < 20; i++ {
		X.Set(i, 0, float64(i))
		y.SetVec(i, float64(i))
	}
	XTr, XTe, yTr, yTe, err := TrainTestSplit(X, y, 0.1, 1)
	require.NoError(t, err)
	assert.Equal(t, 18, yTr.Len())
	assert.Equal(t, 2, yTe.Len())
	r, _ := XTr.Dims()
	assert.Equal(t, 18, r)
	for i := 0; i < yTe.Len(); i++ {
		assert.Equal(t, XTe.At(i, 0), yTe.AtVec(i))
	}

	_, _, _, _, err = TrainTestSplit(X, y, 1.5, 1)
	assert.Error(t, err)
}

func TestSubsetNilTarget(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	xs, ys := Subset(X, nil, []int{2, 0})
	assert.Nil(t, ys)
	assert.Equal(t, 3.0, xs.At(0, 0))
	assert.Equal(t, 1.0, xs.At(1, 0))
}

func TestCrossValidateRegression(t *testing.T) {
	X := mat.NewDense(30, 1, nil)
	y := mat.NewVecDense(30, nil)
	for i := 0; i < 30; i++ {
		X.Set(i, 0, float64(i))
		y.SetVec(i, 3*float64(i)+1)
	}
	r2, err := metrics.GetScorer("r2")
	require.NoError(t, err)
	mse, err := metrics.GetScorer("neg_mean_squared_error")
	require.NoError(t, err)

	est := linear_model.NewLinearRegression()
	res, err := CrossValidate(context.Background(), est, X, y, NewKFold(5, true, 3), []*metrics.Scorer{r2, mse}, -1)
	require.NoError(t, err)
	assert.Len(t, res.Scores["r2"], 5)
	assert.InDelta(t, 1.0, res.Mean("r2"), 1e-9)
	assert.InDelta(t, 0.0, res.Mean("neg_mean_squared_error"), 1e-9)
	assert.InDelta(t, 0.0, res.Std("r2"), 1e-9)
	assert.False(t, est.IsFitted(), "the original estimator is not fitted")
	assert.Len(t, res.Estimators, 5)
}

func TestCrossValidateClassificationDeterministic(t *testing.T) {
	X := mat.NewDense(20, 1, nil)
	y := mat.NewVecDense(20, nil)
	for i := 0; i < 20; i++ {
		X.Set(i, 0, float64(i))
		if i >= 10 {
			y.SetVec(i, 1)
		}
	}
	acc, err := metrics.GetScorer("accuracy")
	require.NoError(t, err)

	est := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(2))
	a, err := CrossValidate(context.Background(), est, X, y, DefaultSplitter(est, 4, 9), []*metrics.Scorer{acc}, 1)
	require.NoError(t, err)
	b, err := CrossValidate(context.Background(), est, X, y, DefaultSplitter(est, 4, 9), []*metrics.Scorer{acc}, 4)
	require.NoError(t, err)
	assert.Equal(t, a.Scores, b.Scores)
	assert.Greater(t, a.Mean("accuracy"), 0.8)
}

func TestCrossValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	acc, _ := metrics.GetScorer("accuracy")
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewVecDense(4, []float64{0, 1, 0, 1})
	_, err := CrossValidate(ctx, tree.NewDecisionTreeClassifier(), X, y, NewKFold(2, false, 0), []*metrics.Scorer{acc}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
