package preprocessing

import (
	"math"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SimpleImputer replaces NaN with the per-column mean of the training data.
// A column that is entirely NaN is filled with 0.
type SimpleImputer struct {
	State      *model.StateManager
	Statistics []float64
}

// NewSimpleImputer は平均値で補完するSimpleImputerを作成する
func NewSimpleImputer() *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager()}
}

// Fit computes the column means ignoring NaN.
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	s.State = model.EnsureState(s.State)
	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		var sum float64
		n := 0
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n > 0 {
			s.Statistics[j] = sum / float64(n)
		}
	}
	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// Transform fills NaN cells with the fitted means.
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は学習と変換を同時に実行する
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// CloneTransformer returns an unfitted imputer.
func (s *SimpleImputer) CloneTransformer() model.Transformer {
	return NewSimpleImputer()
}

// GetParams はパラメータを返す
func (s *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{"name": "simple_imputer", "strategy": "mean"}
}
