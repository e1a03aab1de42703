package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
)

// DecisionTreeRegressor is a CART regressor minimising squared error.
type DecisionTreeRegressor struct {
	Params
	State *model.StateManager

	Nodes       []Node
	Importances []float64
}

// NewDecisionTreeRegressor creates a regressor with the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		Params: newParams("squared_error", opts),
		State:  model.NewStateManager(),
	}
}

func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := dt.validate("squared_error"); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	dt.State = model.EnsureState(dt.State)

	target := make([]float64, nSamples)
	idx := make([]int, nSamples)
	for i := range target {
		target[i] = y.At(i, 0)
		idx[i] = i
	}
	b := &builder{
		params:   dt.Params,
		X:        X,
		y:        target,
		newStats: func() criterion { return &varianceStats{} },
	}
	dt.Nodes, dt.Importances = b.build(idx)

	dt.State.SetDimensions(nFeatures, nSamples)
	dt.State.SetFitted()
	return nil
}

// Predict returns the mean target of each sample's leaf.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.State.CheckFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		predictions.Set(i, 0, apply(dt.Nodes, X, i).Value[0])
	}
	return predictions, nil
}

func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

func (dt *DecisionTreeRegressor) GetDepth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	return depthOf(dt.Nodes, 0)
}

func (dt *DecisionTreeRegressor) GetNLeaves() int { return countLeaves(dt.Nodes) }

func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.State.IsFitted() }

func (dt *DecisionTreeRegressor) Clone() model.Estimator {
	return NewDecisionTreeRegressor(dt.options()...)
}

func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.asMap("decision_tree")
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d)", dt.MaxDepth)
}
