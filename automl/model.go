// Package automl binds a tabular dataset contract (target, index and ignored
// columns) to an AutoML engine and exposes the train / retrain / predict /
// evaluate lifecycle used by the CLI.
//
// A Model is built from configuration by Build, trained with Train and
// persisted with Save. Later invocations restore it with Load:
//
//	m, err := automl.Build(automl.Spec{
//		Type:         "search",
//		TargetColumn: "target",
//		Params:       map[string]any{"time_budget": 30},
//	})
//	report, err := m.Train(ctx, "train.csv", "", "out")
//	err = automl.Save(ctx, "out/model.gob", m)
package automl

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/dataset"
	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

// Model is a configured AutoML model. Every exported field is persisted.
type Model struct {
	Type           string
	TargetColumn   string
	IndexColumn    string
	IgnoredColumns []string
	// Params are the engine parameters from the model block.
	Params map[string]any
	Seeds  engine.Seeds
	Engine engine.Engine
	// Estimator is nil until Train succeeds.
	Estimator model.Estimator
	// FeatureNames is the feature column order seen by Train.
	FeatureNames []string

	progress io.Writer
}

// SetProgress directs engine progress output (search iterations,
// generation scores) to w. It is not persisted.
func (m *Model) SetProgress(w io.Writer) { m.progress = w }

// IsTrained reports whether the model holds a fitted estimator.
func (m *Model) IsTrained() bool { return m.Estimator != nil }

func (m *Model) loader() dataset.Loader {
	return dataset.Loader{
		TargetColumn:   m.TargetColumn,
		IndexColumn:    m.IndexColumn,
		IgnoredColumns: m.IgnoredColumns,
	}
}

// loadLabeled loads path and requires the target column.
func (m *Model) loadLabeled(ctx context.Context, path string) (*dataset.Frame, error) {
	frame, err := m.loader().Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if !frame.HasTarget() {
		return nil, errors.NewMissingTargetError(m.TargetColumn, path)
	}
	return frame, nil
}

// checkFeatures rejects a frame whose features differ from the training
// columns, since the fitted estimator is order-sensitive.
func (m *Model) checkFeatures(path string, frame *dataset.Frame) error {
	if m.FeatureNames == nil || slices.Equal(m.FeatureNames, frame.FeatureNames) {
		return nil
	}
	return errors.NewDataFormatError(path, "",
		fmt.Sprintf("feature columns %v do not match the training columns %v", frame.FeatureNames, m.FeatureNames))
}

func (m *Model) untrained(op string) error {
	if m.Estimator == nil {
		return errors.NewUntrainedModelError(m.Type, op)
	}
	return nil
}

// Train loads the training data (and the validation data when
// validationPath is set), runs the engine and stores the fitted estimator.
// Engine artifacts are written to workdir when it is not empty. On error the
// model is left unchanged.
func (m *Model) Train(ctx context.Context, trainPath, validationPath, workdir string) (engine.Report, error) {
	logger := log.GetLoggerWithName("automl").With(log.OperationKey, log.OperationTrain, log.EngineKey, m.Type)
	start := time.Now()

	train, err := m.loadLabeled(ctx, trainPath)
	if err != nil {
		return nil, err
	}
	in := engine.Input{
		XTrain:   train.X,
		YTrain:   train.Y,
		Workdir:  workdir,
		Seeds:    m.Seeds,
		Progress: m.progress,
	}
	if validationPath != "" {
		val, err := m.loadLabeled(ctx, validationPath)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(train.FeatureNames, val.FeatureNames) {
			return nil, errors.NewDataFormatError(validationPath, "",
				fmt.Sprintf("feature columns %v do not match the training columns %v", val.FeatureNames, train.FeatureNames))
		}
		in.XVal, in.YVal = val.X, val.Y
	}

	logger.Info("Training started",
		log.DataPathKey, trainPath,
		log.SamplesKey, train.NumRows(),
		log.FeaturesKey, len(train.FeatureNames),
	)
	est, report, err := m.Engine.Fit(ctx, in)
	if err != nil {
		return nil, errors.Wrapf(err, "train %s", m.Type)
	}
	m.Estimator = est
	m.FeatureNames = train.FeatureNames
	logger.Info("Training finished", log.DurationSecondsKey, time.Since(start).Seconds())
	return report, nil
}

// Retrain refits the trained estimator structure on trainPath, keeping its
// hyperparameters.
func (m *Model) Retrain(ctx context.Context, trainPath string) error {
	if err := m.untrained("retrain"); err != nil {
		return err
	}
	frame, err := m.loadLabeled(ctx, trainPath)
	if err != nil {
		return err
	}
	if err := m.checkFeatures(trainPath, frame); err != nil {
		return err
	}
	est, err := m.Engine.Refit(m.Estimator, frame.X, frame.Y)
	if err != nil {
		return errors.Wrapf(err, "retrain %s", m.Type)
	}
	m.Estimator = est
	log.GetLoggerWithName("automl").Info("Model retrained",
		log.OperationKey, log.OperationRetrain,
		log.DataPathKey, trainPath,
		log.SamplesKey, frame.NumRows(),
	)
	return nil
}

// Predict returns one row per input row, in input order: the index column
// when one is configured, then the prediction under outputColumn (the
// target column name when empty). The target column may be absent.
func (m *Model) Predict(ctx context.Context, dataPath, outputColumn string) (*dataset.Table, error) {
	if err := m.untrained("predict"); err != nil {
		return nil, err
	}
	frame, err := m.loader().Load(ctx, dataPath)
	if err != nil {
		return nil, err
	}
	if err := m.checkFeatures(dataPath, frame); err != nil {
		return nil, err
	}
	pred, err := m.Engine.Predict(m.Estimator, frame.X)
	if err != nil {
		return nil, errors.Wrapf(err, "predict %s", m.Type)
	}
	if outputColumn == "" {
		outputColumn = m.TargetColumn
	}

	n := frame.NumRows()
	out := &dataset.Table{}
	if frame.Index != nil {
		index := make([]any, n)
		for i, v := range frame.Index {
			index[i] = v
		}
		out.Columns = append(out.Columns, dataset.Column{Name: m.IndexColumn, Values: index})
	}
	out.Columns = append(out.Columns, dataset.Column{Name: outputColumn, Values: column(pred, n)})
	return out, nil
}

func column(pred mat.Matrix, n int) []any {
	values := make([]any, n)
	for i := range values {
		values[i] = pred.At(i, 0)
	}
	return values
}

// String describes the model for logging.
func (m *Model) String() string {
	s := fmt.Sprintf("Model(type=%s, target=%s", m.Type, m.TargetColumn)
	if m.IndexColumn != "" {
		s += ", index=" + m.IndexColumn
	}
	if len(m.IgnoredColumns) > 0 {
		s += fmt.Sprintf(", ignored=%v", m.IgnoredColumns)
	}
	if m.Estimator != nil {
		s += fmt.Sprintf(", trained on %d features", len(m.FeatureNames))
	} else {
		s += ", untrained"
	}
	return s + ")"
}
