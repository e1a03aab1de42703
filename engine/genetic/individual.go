package genetic

import (
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/engine/learner"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/preprocessing"
)

// Scaler step names. The empty string means no scaling step.
const (
	NoScaler       = ""
	StandardScaler = "standard_scaler"
	MinMaxScaler   = "minmax_scaler"
)

var scalers = []string{NoScaler, StandardScaler, MinMaxScaler}

// Individual is one candidate pipeline: an optional scaler followed by a
// configured learner.
type Individual struct {
	Scaler  string         `json:"scaler,omitempty"`
	Learner string         `json:"learner"`
	Config  learner.Config `json:"config"`
	// Fitness is the mean internal CV score, -Inf when evaluation failed.
	Fitness float64 `json:"-"`
}

func (ind *Individual) key() string {
	return fmt.Sprintf("%s|%s|%s", ind.Scaler, ind.Learner, ind.Config)
}

// Steps lists the pipeline step names in order.
func (ind *Individual) Steps() []string {
	steps := []string{"simple_imputer"}
	if ind.Scaler != NoScaler {
		steps = append(steps, ind.Scaler)
	}
	return append(steps, ind.Learner)
}

// String renders the pipeline as "Pipeline(standard_scaler -> ridge{alpha: 1})".
func (ind *Individual) String() string {
	s := "Pipeline("
	if ind.Scaler != NoScaler {
		s += ind.Scaler + " -> "
	}
	return s + ind.Learner + ind.Config.String() + ")"
}

// Build returns the unfitted estimator for ind.
func (ind *Individual) Build(task metrics.Task, seed uint64) (model.Estimator, error) {
	l, err := learner.Lookup(task, ind.Learner)
	if err != nil {
		return nil, err
	}
	var steps []model.Transformer
	switch ind.Scaler {
	case StandardScaler:
		steps = append(steps, preprocessing.NewStandardScalerDefault())
	case MinMaxScaler:
		steps = append(steps, preprocessing.NewMinMaxScalerDefault())
	}
	return l.Build(ind.Config, seed, steps...), nil
}

// operators holds the variation operators bound to a learner set and RNG.
type operators struct {
	learners []*learner.Learner
	rng      *rand.Rand
}

func (o *operators) random() *Individual {
	l := o.learners[o.rng.IntN(len(o.learners))]
	return &Individual{
		Scaler:  scalers[o.rng.IntN(len(scalers))],
		Learner: l.Name,
		Config:  l.Sample(o.rng),
	}
}

func (o *operators) byName(name string) *learner.Learner {
	for _, l := range o.learners {
		if l.Name == name {
			return l
		}
	}
	return o.learners[0]
}

// mutate resamples one gene of parent: its scaler, a hyperparameter or
// the learner itself.
func (o *operators) mutate(parent *Individual) *Individual {
	child := &Individual{Scaler: parent.Scaler, Learner: parent.Learner, Config: parent.Config.Clone()}
	switch o.rng.IntN(3) {
	case 0:
		child.Scaler = scalers[o.rng.IntN(len(scalers))]
	case 1:
		child.Config = o.byName(child.Learner).Mutate(child.Config, o.rng)
	default:
		l := o.learners[o.rng.IntN(len(o.learners))]
		child.Learner = l.Name
		child.Config = l.Sample(o.rng)
	}
	return child
}

// crossover takes the learner of a and the scaler of b. When both parents
// share a learner, hyperparameters are mixed uniformly.
func (o *operators) crossover(a, b *Individual) *Individual {
	child := &Individual{Scaler: b.Scaler, Learner: a.Learner, Config: a.Config.Clone()}
	if a.Learner == b.Learner {
		for _, d := range o.byName(a.Learner).Space {
			if o.rng.IntN(2) == 1 {
				child.Config[d.Name] = b.Config[d.Name]
			}
		}
	}
	return child
}

// tournament returns the fittest of k individuals drawn with replacement.
// Ties go to the earlier draw.
func (o *operators) tournament(pop []*Individual, k int) *Individual {
	best := pop[o.rng.IntN(len(pop))]
	for i := 1; i < k; i++ {
		c := pop[o.rng.IntN(len(pop))]
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}
