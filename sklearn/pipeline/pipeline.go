// Package pipeline chains transformers with a final estimator.
package pipeline

import (
	"encoding/gob"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

func init() {
	gob.Register(&Pipeline{})
	gob.Register(&ClassifierPipeline{})
}

// Pipeline applies Steps in order and feeds the result to Final.
type Pipeline struct {
	Steps []model.Transformer
	Final model.Estimator
}

// ClassifierPipeline is a Pipeline whose final estimator is a classifier.
type ClassifierPipeline struct {
	*Pipeline
}

// New returns a *ClassifierPipeline when final is a model.Classifier and a
// *Pipeline otherwise, so that model.IsClassifier sees through the wrapper.
func New(final model.Estimator, steps ...model.Transformer) model.Estimator {
	p := &Pipeline{Steps: steps, Final: final}
	if _, ok := final.(model.Classifier); ok {
		return &ClassifierPipeline{Pipeline: p}
	}
	return p
}

// Fit fits each step on the output of the previous one, then the final
// estimator on the fully transformed data.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	if p.Final == nil {
		return errors.NewValueError("Pipeline.Fit", "pipeline has no final estimator")
	}
	Xt := X
	for i, step := range p.Steps {
		out, err := step.FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %d", i)
		}
		Xt = out
	}
	return p.Final.Fit(Xt, y)
}

func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	for i, step := range p.Steps {
		out, err := step.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %d", i)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X through every step and predicts with Final.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return p.Final.Predict(Xt)
}

func (p *Pipeline) IsFitted() bool {
	return p.Final != nil && p.Final.IsFitted()
}

// Clone returns an unfitted pipeline with cloned steps.
func (p *Pipeline) Clone() model.Estimator {
	steps := make([]model.Transformer, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.CloneTransformer()
	}
	return New(model.Clone(p.Final), steps...)
}

// GetParams lists the step names and the final estimator's parameters.
func (p *Pipeline) GetParams() map[string]interface{} {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = stepName(s)
	}
	params := map[string]interface{}{"name": "pipeline", "steps": names}
	if p.Final != nil {
		params["final"] = p.Final.GetParams()
	}
	return params
}

func (p *Pipeline) String() string {
	parts := make([]string, 0, len(p.Steps)+1)
	for _, s := range p.Steps {
		parts = append(parts, stepName(s))
	}
	if p.Final != nil {
		parts = append(parts, fmt.Sprint(p.Final.GetParams()["name"]))
	}
	return "Pipeline(" + strings.Join(parts, " -> ") + ")"
}

func stepName(s model.Transformer) string {
	if pg, ok := s.(model.ParamGetter); ok {
		if name, ok := pg.GetParams()["name"].(string); ok {
			return name
		}
	}
	return fmt.Sprintf("%T", s)
}

// PredictProba transforms X and returns the final classifier's probabilities.
func (c *ClassifierPipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "PredictProba")
	}
	Xt, err := c.transform(X)
	if err != nil {
		return nil, err
	}
	return c.Final.(model.Classifier).PredictProba(Xt)
}

func (c *ClassifierPipeline) Classes() []float64 {
	return c.Final.(model.Classifier).Classes()
}
