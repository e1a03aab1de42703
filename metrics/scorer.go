package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Task は推定問題の種類
type Task string

const (
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// ParseTask validates a task name.
func ParseTask(key, s string) (Task, error) {
	switch Task(s) {
	case TaskClassification, TaskRegression:
		return Task(s), nil
	}
	return "", errors.NewUnknownNameError(key, "task", s,
		[]string{string(TaskClassification), string(TaskRegression)})
}

// DefaultMetric is the metric used when a search is configured with "auto".
func (t Task) DefaultMetric() string {
	if t == TaskRegression {
		return "r2"
	}
	return "accuracy"
}

type labelFunc func(yTrue, yPred *mat.VecDense) (float64, error)
type probaFunc func(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error)

// Scorer is a named, sklearn-style scoring rule. Higher scores are better;
// error metrics are negated ("neg_mean_squared_error").
type Scorer struct {
	Name string
	// Bounded scorers have a best value of 1, so the search loss is 1-score.
	Bounded bool
	// Task is empty for scorers that apply to both tasks.
	Task  Task
	label labelFunc
	proba probaFunc
	sign  float64
}

// NeedsProba reports whether the scorer reads PredictProba output.
func (s *Scorer) NeedsProba() bool { return s.proba != nil }

// Loss converts a score into a minimisation objective.
func (s *Scorer) Loss(score float64) float64 {
	if s.Bounded {
		return 1 - score
	}
	return -score
}

// Score evaluates est on X against y.
func (s *Scorer) Score(est model.Estimator, X mat.Matrix, y *mat.VecDense) (float64, error) {
	if s.proba != nil {
		clf, ok := est.(model.Classifier)
		if !ok {
			return 0, errors.NewConfigurationErrorf("metric", "%s requires a classifier with probability estimates", s.Name)
		}
		proba, err := clf.PredictProba(X)
		if err != nil {
			return 0, err
		}
		v, err := s.proba(y, proba, clf.Classes())
		return s.sign * v, err
	}
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return s.ScorePredictions(y, pred)
}

// ScorePredictions scores precomputed label or value predictions.
func (s *Scorer) ScorePredictions(y *mat.VecDense, pred mat.Matrix) (float64, error) {
	if s.label == nil {
		return 0, errors.NewValueError(s.Name, "scorer needs probability estimates")
	}
	p, err := FirstColumn(s.Name, pred)
	if err != nil {
		return 0, err
	}
	v, err := s.label(y, p)
	return s.sign * v, err
}

var scorers = map[string]*Scorer{
	"accuracy":          {Name: "accuracy", Bounded: true, Task: TaskClassification, label: Accuracy, sign: 1},
	"balanced_accuracy": {Name: "balanced_accuracy", Bounded: true, Task: TaskClassification, label: BalancedAccuracy, sign: 1},
	"precision":         {Name: "precision", Bounded: true, Task: TaskClassification, label: Precision, sign: 1},
	"recall":            {Name: "recall", Bounded: true, Task: TaskClassification, label: Recall, sign: 1},
	"f1":                {Name: "f1", Bounded: true, Task: TaskClassification, label: F1Score, sign: 1},
	"roc_auc":           {Name: "roc_auc", Bounded: true, Task: TaskClassification, proba: RocAUCProba, sign: 1},
	"average_precision": {Name: "average_precision", Bounded: true, Task: TaskClassification, proba: AveragePrecisionProba, sign: 1},
	"neg_log_loss":      {Name: "neg_log_loss", Task: TaskClassification, proba: LogLoss, sign: -1},

	"r2":                                 {Name: "r2", Bounded: true, Task: TaskRegression, label: R2Score, sign: 1},
	"explained_variance":                 {Name: "explained_variance", Bounded: true, Task: TaskRegression, label: ExplainedVarianceScore, sign: 1},
	"neg_mean_squared_error":             {Name: "neg_mean_squared_error", Task: TaskRegression, label: MSE, sign: -1},
	"neg_root_mean_squared_error":        {Name: "neg_root_mean_squared_error", Task: TaskRegression, label: RMSE, sign: -1},
	"neg_mean_absolute_error":            {Name: "neg_mean_absolute_error", Task: TaskRegression, label: MAE, sign: -1},
	"neg_mean_absolute_percentage_error": {Name: "neg_mean_absolute_percentage_error", Task: TaskRegression, label: MAPE, sign: -1},
}

// ScorerNames returns the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetScorer looks up a scorer by its sklearn name. Unknown names yield a
// ConfigurationError with the closest registered name as a suggestion.
func GetScorer(name string) (*Scorer, error) {
	return LookupScorer("metric", name, "")
}

// GetScorerForTask is GetScorer plus a task compatibility check.
func GetScorerForTask(name string, task Task) (*Scorer, error) {
	return LookupScorer("metric", name, task)
}

// LookupScorer resolves name for task and reports errors under key, the
// configuration key the name was read from. An empty task accepts any scorer.
func LookupScorer(key, name string, task Task) (*Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewUnknownNameError(key, "metric", name, ScorerNames())
	}
	if s.Task != "" && task != "" && s.Task != task {
		return nil, errors.NewConfigurationErrorf(key, "metric %q is not defined for %s", name, task)
	}
	return s, nil
}
