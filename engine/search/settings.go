package search

import (
	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/engine/learner"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Evaluation methods.
const (
	EvalHoldout = "holdout"
	EvalCV      = "cv"
)

// defaultMaxIter applies when neither a time budget nor max_iter is set.
const defaultMaxIter = 100

// Settings are the validated parameters of a search run.
type Settings struct {
	Task metrics.Task
	// TimeBudget is in seconds; <= 0 means unlimited.
	TimeBudget float64
	// MaxIter is the trial limit; 0 means unlimited.
	MaxIter       int
	Metric        string
	EstimatorList []string
	EvalMethod    string
	SplitRatio    float64
	NSplits       int
	NJobs         int
}

// ParseSettings reads and validates the search parameters.
func ParseSettings(p *engine.Params) (Settings, error) {
	var (
		s   Settings
		err error
	)
	task, err := p.String("task", string(metrics.TaskClassification))
	if err != nil {
		return s, err
	}
	if s.Task, err = metrics.ParseTask("model.task", task); err != nil {
		return s, err
	}

	if s.TimeBudget, err = p.Float("time_budget", 60); err != nil {
		return s, err
	}
	if s.MaxIter, err = p.Int("max_iter", 0); err != nil {
		return s, err
	}
	if s.MaxIter < 0 {
		return s, errors.NewConfigurationErrorf("model.max_iter", "must be non-negative, got %d", s.MaxIter)
	}
	if s.TimeBudget <= 0 && s.MaxIter == 0 {
		s.MaxIter = defaultMaxIter
	}

	if s.Metric, err = p.String("metric", "auto"); err != nil {
		return s, err
	}
	if s.Metric == "auto" {
		s.Metric = s.Task.DefaultMetric()
	}
	if _, err := metrics.LookupScorer("model.metric", s.Metric, s.Task); err != nil {
		return s, err
	}

	if s.EstimatorList, err = p.Strings("estimator_list", nil); err != nil {
		return s, err
	}
	if len(s.EstimatorList) == 0 {
		s.EstimatorList = learner.Names(s.Task)
	}
	if _, err := learner.Select(s.Task, "model.estimator_list", s.EstimatorList); err != nil {
		return s, err
	}

	if s.EvalMethod, err = p.String("eval_method", EvalHoldout); err != nil {
		return s, err
	}
	if err := p.OneOf("eval_method", s.EvalMethod, EvalHoldout, EvalCV); err != nil {
		return s, err
	}
	if s.SplitRatio, err = p.Float("split_ratio", 0.1); err != nil {
		return s, err
	}
	if err := p.Range("split_ratio", s.SplitRatio, 1e-9, 1-1e-9); err != nil {
		return s, err
	}
	if s.NSplits, err = p.Int("n_splits", 5); err != nil {
		return s, err
	}
	if err := p.Range("n_splits", float64(s.NSplits), 2, 1e6); err != nil {
		return s, err
	}
	if s.NJobs, err = p.Int("n_jobs", -1); err != nil {
		return s, err
	}
	return s, nil
}
