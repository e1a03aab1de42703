// Package search is a budgeted hyperparameter search engine. It tries the
// default configuration of every selected learner, then samples random
// configurations until the time budget or trial limit runs out, and refits
// the best configuration on the full training data.
package search

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"

	"github.com/YuminosukeSato/automlcli/core/model"
	"github.com/YuminosukeSato/automlcli/core/parallel"
	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/engine/learner"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/model_selection"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

// Name is the registry name of the engine.
const Name = "search"

// Artifact file names written to the workdir.
const (
	LogFile  = "search.log"
	BestFile = "best.json"
	PlotFile = "search.png"
)

func init() {
	gob.Register(&Engine{})
}

// Trial is one line of the search log.
type Trial struct {
	RecordID           int            `json:"record_id"`
	Learner            string         `json:"learner"`
	Config             learner.Config `json:"config"`
	ValidationLoss     engine.Float   `json:"validation_loss"`
	BestValidationLoss engine.Float   `json:"best_validation_loss"`
	TrialTime          float64        `json:"trial_time"`
	WallClockTime      float64        `json:"wall_clock_time"`
	SampleSize         int            `json:"sample_size"`
}

// Best is the record of the winning configuration, written to best.json.
type Best struct {
	Estimator string         `json:"best_estimator"`
	Config    learner.Config `json:"best_config"`
	Iteration int            `json:"best_iteration"`
	Loss      engine.Float   `json:"best_loss"`
}

// Engine is the search backend. Best and Log are set by Fit.
type Engine struct {
	engine.Base
	Settings Settings
	Best     *Best
	Log      string
}

// New builds a search engine from its parameters.
func New(p *engine.Params) (engine.Engine, error) {
	s, err := ParseSettings(p)
	if err != nil {
		return nil, err
	}
	return &Engine{Base: engine.Base{Kind: Name}, Settings: s}, nil
}

// proposal is a configuration waiting to be evaluated.
type proposal struct {
	learner *learner.Learner
	config  learner.Config
}

// evaluator scores a configuration on the validation scheme.
type evaluator struct {
	scorer   *metrics.Scorer
	seed     uint64
	XTrain   mat.Matrix
	YTrain   *mat.VecDense
	XVal     mat.Matrix
	YVal     *mat.VecDense
	splitter model_selection.KFoldSplitter
}

func (ev *evaluator) sampleSize() int {
	r, _ := ev.XTrain.Dims()
	return r
}

func (ev *evaluator) loss(ctx context.Context, p proposal) (float64, error) {
	est := p.learner.Build(p.config, ev.seed)
	var score float64
	if ev.splitter != nil {
		cv, err := model_selection.CrossValidate(ctx, est, ev.XTrain, ev.YTrain, ev.splitter, []*metrics.Scorer{ev.scorer}, 1)
		if err != nil {
			return math.Inf(1), err
		}
		score = cv.Mean(ev.scorer.Name)
	} else {
		if err := est.Fit(ev.XTrain, ev.YTrain); err != nil {
			return math.Inf(1), err
		}
		s, err := ev.scorer.Score(est, ev.XVal, ev.YVal)
		if err != nil {
			return math.Inf(1), err
		}
		score = s
	}
	loss := ev.scorer.Loss(score)
	if math.IsNaN(loss) {
		loss = math.Inf(1)
	}
	return loss, nil
}

func (e *Engine) newEvaluator(in engine.Input) (*evaluator, error) {
	scorer, err := metrics.GetScorerForTask(e.Settings.Metric, e.Settings.Task)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{scorer: scorer, seed: in.Seeds.Numeric, XTrain: in.XTrain, YTrain: in.YTrain}
	switch {
	case in.HasValidation():
		ev.XVal, ev.YVal = in.XVal, in.YVal
	case e.Settings.EvalMethod == EvalCV:
		if e.Settings.Task == metrics.TaskClassification {
			ev.splitter = model_selection.NewStratifiedKFold(e.Settings.NSplits, true, in.Seeds.Numeric)
		} else {
			ev.splitter = model_selection.NewKFold(e.Settings.NSplits, true, in.Seeds.Numeric)
		}
	default:
		XTr, XVa, yTr, yVa, err := model_selection.TrainTestSplit(in.XTrain, in.YTrain, e.Settings.SplitRatio, in.Seeds.Numeric)
		if err != nil {
			return nil, err
		}
		ev.XTrain, ev.YTrain, ev.XVal, ev.YVal = XTr, yTr, XVa, yVa
	}
	return ev, nil
}

// Fit runs the search and returns the best configuration refit on all of
// in.XTrain.
func (e *Engine) Fit(ctx context.Context, in engine.Input) (model.Estimator, engine.Report, error) {
	if in.YTrain == nil {
		return nil, nil, errors.NewValueError("search.Fit", "training target is required")
	}
	logger := log.GetLoggerWithName(Name)
	learners, err := learner.Select(e.Settings.Task, "model.estimator_list", e.Settings.EstimatorList)
	if err != nil {
		return nil, nil, err
	}
	ev, err := e.newEvaluator(in)
	if err != nil {
		return nil, nil, err
	}

	progress := in.Progress
	if progress == nil {
		progress = io.Discard
	}
	rng := rand.New(rand.NewPCG(in.Seeds.Random, in.Seeds.Random))
	batch := parallel.Workers(e.Settings.NJobs, 0)
	budget := time.Duration(e.Settings.TimeBudget * float64(time.Second))

	var (
		logBuf   bytes.Buffer
		trials   []Trial
		best     *Best
		firstErr error
	)
	start := time.Now()
	next := 0
	propose := func() proposal {
		l := learners[next%len(learners)]
		cfg := l.Default()
		if next >= len(learners) {
			cfg = l.Sample(rng)
		}
		next++
		return proposal{learner: l, config: cfg}
	}

	logger.Info("Starting search",
		log.EngineKey, Name,
		log.MetricKey, e.Settings.Metric,
		log.SamplesKey, ev.sampleSize(),
		"learners", e.Settings.EstimatorList,
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, "search cancelled")
		}
		if len(trials) > 0 {
			if e.Settings.MaxIter > 0 && len(trials) >= e.Settings.MaxIter {
				break
			}
			if budget > 0 && time.Since(start) >= budget {
				break
			}
		}
		n := batch
		if e.Settings.MaxIter > 0 && len(trials)+n > e.Settings.MaxIter {
			n = e.Settings.MaxIter - len(trials)
		}
		props := make([]proposal, n)
		for i := range props {
			props[i] = propose()
		}

		losses := make([]float64, n)
		durations := make([]time.Duration, n)
		errs := make([]error, n)
		_ = parallel.ForEach(n, n, func(i int) error {
			t0 := time.Now()
			errs[i] = errors.SafeExecute(fmt.Sprintf("trial %d", len(trials)+i), func() error {
				var err error
				losses[i], err = ev.loss(ctx, props[i])
				return err
			})
			if errs[i] != nil {
				losses[i] = math.Inf(1)
			}
			durations[i] = time.Since(t0)
			return nil
		})

		for i, p := range props {
			id := len(trials)
			if errs[i] != nil {
				if firstErr == nil {
					firstErr = errs[i]
				}
				logger.Warn("Trial failed",
					log.TrialKey, id,
					log.LearnerKey, p.learner.Name,
					log.ErrAttr(errs[i]),
				)
			}
			if best == nil || losses[i] < float64(best.Loss) {
				best = &Best{Estimator: p.learner.Name, Config: p.config, Iteration: id, Loss: engine.Float(losses[i])}
			}
			t := Trial{
				RecordID:           id,
				Learner:            p.learner.Name,
				Config:             p.config,
				ValidationLoss:     engine.Float(losses[i]),
				BestValidationLoss: best.Loss,
				TrialTime:          durations[i].Seconds(),
				WallClockTime:      time.Since(start).Seconds(),
				SampleSize:         ev.sampleSize(),
			}
			trials = append(trials, t)
			line, err := json.Marshal(t)
			if err != nil {
				return nil, nil, errors.Wrap(err, "encode trial record")
			}
			logBuf.Write(line)
			logBuf.WriteByte('\n')
			fmt.Fprintf(progress, "[search] iter %d: %s loss=%.4g best=%.4g (%s) %.1fs\n",
				id, p.learner.Name, losses[i], float64(best.Loss), best.Estimator, t.WallClockTime)
			logger.Debug("Trial finished",
				log.TrialKey, id,
				log.LearnerKey, p.learner.Name,
				log.LossKey, losses[i],
				log.HyperParamsKey, p.config.String(),
			)
		}
	}

	e.Log = logBuf.String()
	if math.IsInf(float64(best.Loss), 1) {
		if err := e.writeArtifacts(in.Workdir, trials, nil); err != nil {
			logger.Warn("Failed to write search log", log.ErrAttr(err))
		}
		if firstErr == nil {
			return nil, nil, errors.Newf("search: all %d trials had an infinite loss", len(trials))
		}
		return nil, nil, errors.Wrapf(firstErr, "search: all %d trials failed", len(trials))
	}
	e.Best = best

	l, err := learner.Lookup(e.Settings.Task, best.Estimator)
	if err != nil {
		return nil, nil, err
	}
	est := l.Build(best.Config, in.Seeds.Numeric)
	if err := est.Fit(in.XTrain, in.YTrain); err != nil {
		return nil, nil, errors.Wrapf(err, "search: refit %s", best.Estimator)
	}
	if err := e.writeArtifacts(in.Workdir, trials, best); err != nil {
		return nil, nil, err
	}

	logger.Info("Search finished",
		log.LearnerKey, best.Estimator,
		log.LossKey, float64(best.Loss),
		"trials", len(trials),
		log.DurationSecondsKey, time.Since(start).Seconds(),
	)
	report := engine.Report{
		"best_loss":      float64(best.Loss),
		"best_iteration": float64(best.Iteration),
		"n_trials":       float64(len(trials)),
	}
	return est, report, nil
}

// writeArtifacts persists the log, the best record and the trace plot.
// best is nil when every trial failed; only the log is written then.
func (e *Engine) writeArtifacts(workdir string, trials []Trial, best *Best) error {
	if workdir == "" {
		return nil
	}
	if err := engine.WriteText(workdir, LogFile, e.Log); err != nil {
		return err
	}
	if best == nil {
		return nil
	}
	if err := engine.WriteJSON(workdir, BestFile, best); err != nil {
		return err
	}

	losses := make(plotter.XYs, len(trials))
	bestSoFar := make(plotter.XYs, len(trials))
	for i, t := range trials {
		losses[i] = plotter.XY{X: t.WallClockTime, Y: float64(t.ValidationLoss)}
		bestSoFar[i] = plotter.XY{X: t.WallClockTime, Y: float64(t.BestValidationLoss)}
	}
	return engine.SavePlot(workdir, PlotFile, "Search trace", "wall clock time (s)", "validation loss",
		engine.Series{Name: "trial", Points: losses, Scatter: true},
		engine.Series{Name: "best", Points: bestSoFar},
	)
}
