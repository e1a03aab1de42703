package learner

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/preprocessing"
	"github.com/YuminosukeSato/automlcli/sklearn/linear_model"
	"github.com/YuminosukeSato/automlcli/sklearn/naive_bayes"
	"github.com/YuminosukeSato/automlcli/sklearn/pipeline"
	"github.com/YuminosukeSato/automlcli/sklearn/tree"
)

// Learner is an estimator family with its search space.
type Learner struct {
	Name  string
	Task  metrics.Task
	Space []Dimension
	new   func(cfg Config, seed uint64) model.Estimator
}

// Default returns the configuration made of every dimension's default.
func (l *Learner) Default() Config {
	cfg := make(Config, len(l.Space))
	for _, d := range l.Space {
		cfg[d.Name] = d.Default
	}
	return cfg
}

// Sample draws a random configuration.
func (l *Learner) Sample(r *rand.Rand) Config {
	cfg := make(Config, len(l.Space))
	for _, d := range l.Space {
		cfg[d.Name] = d.Sample(r)
	}
	return cfg
}

// Mutate returns a copy of cfg with one dimension resampled. A learner
// without hyperparameters returns cfg unchanged.
func (l *Learner) Mutate(cfg Config, r *rand.Rand) Config {
	out := cfg.Clone()
	if len(l.Space) == 0 {
		return out
	}
	d := l.Space[r.IntN(len(l.Space))]
	out[d.Name] = d.Sample(r)
	return out
}

// Build returns an unfitted pipeline: mean imputation, then steps, then the
// learner configured with cfg. Keys missing from cfg take their defaults.
func (l *Learner) Build(cfg Config, seed uint64, steps ...model.Transformer) model.Estimator {
	full := l.Default()
	for k, v := range cfg {
		full[k] = v
	}
	all := append([]model.Transformer{preprocessing.NewSimpleImputer()}, steps...)
	return pipeline.New(l.new(full, seed), all...)
}

var catalog = map[metrics.Task][]*Learner{
	metrics.TaskClassification: {
		{
			Name: "logistic_regression",
			Task: metrics.TaskClassification,
			Space: []Dimension{
				{Name: "C", Kind: LogUniform, Low: 1e-3, High: 1e3, Default: 1.0},
				{Name: "penalty", Kind: Categorical, Choices: []any{"l2", "none"}, Default: "l2"},
				{Name: "max_iter", Kind: IntUniform, Low: 50, High: 500, Default: 100},
			},
			new: func(cfg Config, seed uint64) model.Estimator {
				return linear_model.NewLogisticRegression(
					linear_model.WithLRC(cfg.float("C")),
					linear_model.WithLRPenalty(cfg.str("penalty")),
					linear_model.WithLRMaxIter(cfg.int("max_iter")),
					linear_model.WithLRRandomState(int64(seed&(1<<62-1))),
				)
			},
		},
		{
			Name: "gaussian_nb",
			Task: metrics.TaskClassification,
			Space: []Dimension{
				{Name: "var_smoothing", Kind: LogUniform, Low: 1e-12, High: 1e-3, Default: 1e-9},
			},
			new: func(cfg Config, _ uint64) model.Estimator {
				return naive_bayes.NewGaussianNB(cfg.float("var_smoothing"))
			},
		},
		{
			Name: "decision_tree",
			Task: metrics.TaskClassification,
			Space: append([]Dimension{
				{Name: "criterion", Kind: Categorical, Choices: []any{"gini", "entropy"}, Default: "gini"},
			}, treeSpace...),
			new: func(cfg Config, _ uint64) model.Estimator {
				return tree.NewDecisionTreeClassifier(treeOptions(cfg, cfg.str("criterion"))...)
			},
		},
	},
	metrics.TaskRegression: {
		{
			Name: "linear_regression",
			Task: metrics.TaskRegression,
			Space: []Dimension{
				{Name: "fit_intercept", Kind: Categorical, Choices: []any{true, false}, Default: true},
			},
			new: func(cfg Config, _ uint64) model.Estimator {
				return linear_model.NewLinearRegression(linear_model.WithLRFitIntercept(cfg.bool("fit_intercept")))
			},
		},
		{
			Name: "ridge",
			Task: metrics.TaskRegression,
			Space: []Dimension{
				{Name: "alpha", Kind: LogUniform, Low: 1e-4, High: 1e3, Default: 1.0},
			},
			new: func(cfg Config, _ uint64) model.Estimator {
				return linear_model.NewRidge(linear_model.WithAlpha(cfg.float("alpha")))
			},
		},
		{
			Name:  "decision_tree",
			Task:  metrics.TaskRegression,
			Space: treeSpace,
			new: func(cfg Config, _ uint64) model.Estimator {
				return tree.NewDecisionTreeRegressor(treeOptions(cfg, "squared_error")...)
			},
		},
	},
}

var treeSpace = []Dimension{
	{Name: "max_depth", Kind: IntUniform, Low: 0, High: 20, Default: 0},
	{Name: "min_samples_split", Kind: IntUniform, Low: 2, High: 20, Default: 2},
	{Name: "min_samples_leaf", Kind: IntUniform, Low: 1, High: 20, Default: 1},
}

func treeOptions(cfg Config, criterion string) []tree.Option {
	return []tree.Option{
		tree.WithCriterion(criterion),
		tree.WithMaxDepth(cfg.int("max_depth")),
		tree.WithMinSamplesSplit(cfg.int("min_samples_split")),
		tree.WithMinSamplesLeaf(cfg.int("min_samples_leaf")),
	}
}

// Names returns the learner names available for task, sorted.
func Names(task metrics.Task) []string {
	names := make([]string, 0, len(catalog[task]))
	for _, l := range catalog[task] {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named learner for task.
func Lookup(task metrics.Task, name string) (*Learner, error) {
	return lookup(task, "learner", name)
}

func lookup(task metrics.Task, key, name string) (*Learner, error) {
	for _, l := range catalog[task] {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, errors.NewUnknownNameError(key, "learner", name, Names(task))
}

// Select resolves names for task in the given order. An empty list selects
// every learner of the task. key names the parameter in errors.
func Select(task metrics.Task, key string, names []string) ([]*Learner, error) {
	if len(names) == 0 {
		names = Names(task)
	}
	out := make([]*Learner, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		l, err := lookup(task, key, n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
