package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// CheckXY validates a training pair and returns its shape. y must be a
// column vector with one row per sample of X, and neither may contain NaN.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	for i := 0; i < nSamples; i++ {
		if math.IsNaN(y.At(i, 0)) {
			return 0, 0, errors.NewValueError(op, "target contains NaN")
		}
		for j := 0; j < nFeatures; j++ {
			if math.IsNaN(X.At(i, j)) {
				return 0, 0, errors.NewValueError(op, "input contains NaN; add an imputer step")
			}
		}
	}
	return nSamples, nFeatures, nil
}

// UniqueLabels returns the sorted distinct values of the column vector y.
func UniqueLabels(y mat.Matrix) []float64 {
	rows, _ := y.Dims()
	seen := make(map[float64]struct{})
	for i := 0; i < rows; i++ {
		seen[y.At(i, 0)] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Float64s(labels)
	return labels
}

// LabelIndex returns the position of v in the sorted labels, or -1.
func LabelIndex(labels []float64, v float64) int {
	i := sort.SearchFloat64s(labels, v)
	if i < len(labels) && labels[i] == v {
		return i
	}
	return -1
}
