package tree

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
)

func init() {
	gob.Register(&DecisionTreeClassifier{})
	gob.Register(&DecisionTreeRegressor{})
}

// DecisionTreeClassifier is a CART classifier using gini or entropy.
type DecisionTreeClassifier struct {
	Params
	State *model.StateManager

	Nodes       []Node
	ClassLabels []float64
	Importances []float64
}

// NewDecisionTreeClassifier creates a classifier. Defaults: gini, unlimited
// depth, min_samples_split=2, min_samples_leaf=1.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		Params: newParams("gini", opts),
		State:  model.NewStateManager(),
	}
}

// Fit grows the tree on X and the class labels in y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate("gini", "entropy"); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	dt.State = model.EnsureState(dt.State)

	dt.ClassLabels = model.UniqueLabels(y)
	encoded := make([]float64, nSamples)
	idx := make([]int, nSamples)
	for i := range encoded {
		encoded[i] = float64(model.LabelIndex(dt.ClassLabels, y.At(i, 0)))
		idx[i] = i
	}

	nClasses := len(dt.ClassLabels)
	entropy := dt.Criterion == "entropy"
	b := &builder{
		params: dt.Params,
		X:      X,
		y:      encoded,
		newStats: func() criterion {
			return &classStats{counts: make([]float64, nClasses), entropy: entropy}
		},
	}
	dt.Nodes, dt.Importances = b.build(idx)

	dt.State.SetDimensions(nFeatures, nSamples)
	dt.State.SetFitted()
	return nil
}

// PredictProba returns the class fractions of the leaf each sample falls in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.State.CheckFeatures("DecisionTreeClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	probas := mat.NewDense(rows, len(dt.ClassLabels), nil)
	for i := 0; i < rows; i++ {
		probas.SetRow(i, apply(dt.Nodes, X, i).Value)
	}
	return probas, nil
}

// Predict returns the majority class of each sample's leaf.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, nClasses := probas.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for c := 1; c < nClasses; c++ {
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, dt.ClassLabels[best])
	}
	return predictions, nil
}

// Score returns the mean accuracy.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := X.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.ClassLabels...)
}

// GetFeatureImportances returns the normalised impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

// GetDepth returns the depth of the fitted tree (a single leaf has depth 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	return depthOf(dt.Nodes, 0)
}

func (dt *DecisionTreeClassifier) GetNLeaves() int { return countLeaves(dt.Nodes) }

func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.State.IsFitted() }

func (dt *DecisionTreeClassifier) Clone() model.Estimator {
	return NewDecisionTreeClassifier(dt.options()...)
}

func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.asMap("decision_tree")
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.Criterion, dt.MaxDepth)
}
