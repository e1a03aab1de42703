package automl

import (
	"context"
	"encoding/json"

	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/model_selection"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

// DefaultMetric is used by Evaluate when no metric is named.
const DefaultMetric = "accuracy"

// Score is the result of one metric. Holdout scores set Value only;
// cross-validated scores set Mean, Std and the per-fold Folds.
type Score struct {
	Value float64
	Mean  float64
	Std   float64
	Folds []float64
}

// IsCV reports whether s came from cross-validation.
func (s Score) IsCV() bool { return s.Folds != nil }

type cvScore struct {
	Mean   engine.Float   `json:"mean"`
	Std    engine.Float   `json:"std"`
	Scores []engine.Float `json:"scores"`
}

// MarshalJSON encodes a holdout score as a bare number and a
// cross-validated one as {"mean", "std", "scores"}.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.IsCV() {
		return json.Marshal(engine.Float(s.Value))
	}
	folds := make([]engine.Float, len(s.Folds))
	for i, v := range s.Folds {
		folds[i] = engine.Float(v)
	}
	return json.Marshal(cvScore{Mean: engine.Float(s.Mean), Std: engine.Float(s.Std), Scores: folds})
}

// UnmarshalJSON accepts both forms written by MarshalJSON.
func (s *Score) UnmarshalJSON(data []byte) error {
	var cv cvScore
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &cv); err != nil {
			return err
		}
		*s = Score{Mean: float64(cv.Mean), Std: float64(cv.Std), Folds: make([]float64, len(cv.Scores))}
		for i, v := range cv.Scores {
			s.Folds[i] = float64(v)
		}
		return nil
	}
	var v engine.Float
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Score{Value: float64(v)}
	return nil
}

// Evaluation maps metric names to scores.
type Evaluation map[string]Score

// Evaluate scores the trained estimator on dataPath with each named metric
// (DefaultMetric when none). With cvFolds > 0 the held estimator structure
// is cross-validated on dataPath instead: every fold fits a fresh clone.
func (m *Model) Evaluate(ctx context.Context, dataPath string, metricNames []string, cvFolds int) (Evaluation, error) {
	if err := m.untrained("evaluate"); err != nil {
		return nil, err
	}
	if len(metricNames) == 0 {
		metricNames = []string{DefaultMetric}
	}
	scorers := make([]*metrics.Scorer, 0, len(metricNames))
	for _, name := range metricNames {
		s, err := metrics.LookupScorer("scoring", name, "")
		if err != nil {
			return nil, err
		}
		scorers = append(scorers, s)
	}
	if cvFolds == 1 || cvFolds < 0 {
		return nil, errors.NewConfigurationErrorf("cv", "cross-validation needs at least 2 folds, got %d", cvFolds)
	}

	frame, err := m.loadLabeled(ctx, dataPath)
	if err != nil {
		return nil, err
	}
	if err := m.checkFeatures(dataPath, frame); err != nil {
		return nil, err
	}

	out := make(Evaluation, len(scorers))
	if cvFolds > 0 {
		splitter := model_selection.DefaultSplitter(m.Estimator, cvFolds, m.Seeds.Numeric)
		cv, err := model_selection.CrossValidate(ctx, m.Estimator, frame.X, frame.Y, splitter, scorers, -1)
		if err != nil {
			return nil, errors.Wrap(err, "cross-validate")
		}
		for _, s := range scorers {
			out[s.Name] = Score{Mean: cv.Mean(s.Name), Std: cv.Std(s.Name), Folds: cv.Scores[s.Name]}
		}
	} else {
		for _, s := range scorers {
			v, err := s.Score(m.Estimator, frame.X, frame.Y)
			if err != nil {
				return nil, errors.Wrapf(err, "score %s", s.Name)
			}
			out[s.Name] = Score{Value: v}
		}
	}

	log.GetLoggerWithName("automl").Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.DataPathKey, dataPath,
		log.SamplesKey, frame.NumRows(),
		"cv_folds", cvFolds,
	)
	return out, nil
}
