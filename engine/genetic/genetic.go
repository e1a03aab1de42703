// Package genetic is an evolutionary pipeline optimizer. Individuals are
// pipelines of an optional scaler and a configured learner; fitness is the
// mean internal cross-validation score. Every generation produces offspring
// by crossover, mutation or reproduction and keeps the fittest of parents
// and offspring.
package genetic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
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
const Name = "genetic"

// Artifact file names written to the workdir.
const (
	LogFile      = "genetic.log"
	PipelineFile = "pipeline.json"
	FittedFile   = "fitted_pipeline.gob"
	PlotFile     = "generations.png"
)

const tournamentSize = 3

func init() {
	gob.Register(&Engine{})
}

// Engine is the genetic backend. Best and Log are set by Fit.
type Engine struct {
	engine.Base
	Settings Settings
	Best     *Individual
	Log      string
}

// New builds a genetic engine from its parameters.
func New(p *engine.Params) (engine.Engine, error) {
	s, err := ParseSettings(p)
	if err != nil {
		return nil, err
	}
	return &Engine{Base: engine.Base{Kind: Name}, Settings: s}, nil
}

// Pipeline is the exported description of the best individual.
type Pipeline struct {
	Steps       []string       `json:"steps"`
	Scaler      string         `json:"scaler,omitempty"`
	Learner     string         `json:"learner"`
	Config      learner.Config `json:"config"`
	Scoring     string         `json:"scoring"`
	CVScore     engine.Float   `json:"cv_score"`
	Generations int            `json:"generations"`
}

// generation summarises one generation for the plot.
type generation struct {
	best, mean float64
}

var scoreLine = regexp.MustCompile(`Current best internal CV score: (-?(?:[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?|[Ii]nf))`)

// BestCVScore scans log line by line for the best-score marker and returns
// the highest score found, or -Inf when there is none.
func BestCVScore(logText string) float64 {
	best := math.Inf(-1)
	sc := bufio.NewScanner(strings.NewReader(logText))
	for sc.Scan() {
		m := scoreLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		if v > best {
			best = v
		}
	}
	return best
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (e *Engine) splitter(seed uint64) model_selection.KFoldSplitter {
	if e.Settings.Task == metrics.TaskClassification {
		return model_selection.NewStratifiedKFold(e.Settings.CV, true, seed)
	}
	return model_selection.NewKFold(e.Settings.CV, true, seed)
}

// Fit evolves the population and returns the best pipeline refit on all of
// in.XTrain.
func (e *Engine) Fit(ctx context.Context, in engine.Input) (model.Estimator, engine.Report, error) {
	if in.YTrain == nil {
		return nil, nil, errors.NewValueError("genetic.Fit", "training target is required")
	}
	s := e.Settings
	logger := log.GetLoggerWithName(Name)
	learners, err := learner.Select(s.Task, "model.learners", s.Learners)
	if err != nil {
		return nil, nil, err
	}
	scorer, err := metrics.GetScorerForTask(s.Scoring, s.Task)
	if err != nil {
		return nil, nil, err
	}
	splitter := e.splitter(in.Seeds.Numeric)

	var logBuf bytes.Buffer
	var logw io.Writer = &logBuf
	if s.Verbosity >= 2 && in.Progress != nil {
		logw = io.MultiWriter(&logBuf, in.Progress)
	}

	ops := &operators{learners: learners, rng: rand.New(rand.NewPCG(in.Seeds.Random, in.Seeds.Random))}
	cache := make(map[string]float64)
	var firstErr error

	// evaluate fills in Fitness for every individual of pop, scoring each
	// distinct pipeline once.
	evaluate := func(pop []*Individual) error {
		var todo []*Individual
		queued := make(map[string]bool)
		for _, ind := range pop {
			k := ind.key()
			if _, ok := cache[k]; ok || queued[k] {
				continue
			}
			queued[k] = true
			todo = append(todo, ind)
		}
		scores := make([]float64, len(todo))
		errs := make([]error, len(todo))
		_ = parallel.ForEach(len(todo), s.NJobs, func(i int) error {
			errs[i] = errors.SafeExecute("evaluate "+todo[i].String(), func() error {
				est, err := todo[i].Build(s.Task, in.Seeds.Numeric)
				if err != nil {
					return err
				}
				cv, err := model_selection.CrossValidate(ctx, est, in.XTrain, in.YTrain, splitter, []*metrics.Scorer{scorer}, 1)
				if err != nil {
					return err
				}
				scores[i] = cv.Mean(scorer.Name)
				return nil
			})
			return nil
		})
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, ind := range todo {
			v := scores[i]
			if errs[i] != nil {
				if firstErr == nil {
					firstErr = errs[i]
				}
				logger.Warn("Pipeline evaluation failed",
					log.LearnerKey, ind.Learner,
					log.HyperParamsKey, ind.Config.String(),
					log.ErrAttr(errs[i]),
				)
				v = math.Inf(-1)
			}
			if math.IsNaN(v) {
				v = math.Inf(-1)
			}
			cache[ind.key()] = v
		}
		for _, ind := range pop {
			ind.Fitness = cache[ind.key()]
		}
		return nil
	}

	start := time.Now()
	var deadline time.Time
	if s.MaxTimeMins > 0 {
		deadline = start.Add(time.Duration(s.MaxTimeMins * float64(time.Minute)))
	}
	nSamples, _ := in.XTrain.Dims()
	logger.Info("Starting evolution",
		log.EngineKey, Name,
		log.MetricKey, s.Scoring,
		log.SamplesKey, nSamples,
		"generations", s.Generations,
		"population_size", s.PopulationSize,
	)

	pop := make([]*Individual, s.PopulationSize)
	for i := range pop {
		pop[i] = ops.random()
	}
	if err := evaluate(pop); err != nil {
		return nil, nil, errors.Wrap(err, "genetic cancelled")
	}
	rank(pop)

	var history []generation
	bestSoFar := math.Inf(-1)
	stale := 0
	for gen := 1; gen <= s.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, "genetic cancelled")
		}
		offspring := make([]*Individual, s.OffspringSize)
		for i := range offspring {
			r := ops.rng.Float64()
			switch {
			case r < s.CrossoverRate:
				offspring[i] = ops.crossover(ops.tournament(pop, tournamentSize), ops.tournament(pop, tournamentSize))
			case r < s.CrossoverRate+s.MutationRate:
				offspring[i] = ops.mutate(ops.tournament(pop, tournamentSize))
			default:
				p := ops.tournament(pop, tournamentSize)
				offspring[i] = &Individual{Scaler: p.Scaler, Learner: p.Learner, Config: p.Config.Clone()}
			}
		}
		if err := evaluate(offspring); err != nil {
			return nil, nil, errors.Wrap(err, "genetic cancelled")
		}
		pop = append(pop, offspring...)
		rank(pop)
		pop = pop[:s.PopulationSize]

		best := pop[0].Fitness
		fmt.Fprintf(logw, "Generation %d - Current best internal CV score: %s\n", gen, formatScore(best))
		history = append(history, generation{best: best, mean: meanFitness(pop)})
		logger.Debug("Generation finished",
			log.GenerationKey, gen,
			log.ScoreKey, best,
			log.LearnerKey, pop[0].Learner,
		)

		if best > bestSoFar {
			bestSoFar = best
			stale = 0
		} else {
			stale++
		}
		if s.EarlyStop > 0 && stale >= s.EarlyStop {
			fmt.Fprintf(logw, "The optimized pipeline was not improved after %d iterations. Stopping.\n", s.EarlyStop)
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Fprintf(logw, "%.2f minutes have elapsed. Stopping after generation %d.\n", time.Since(start).Minutes(), gen)
			break
		}
	}

	best := pop[0]
	if math.IsInf(best.Fitness, -1) {
		e.Log = logBuf.String()
		if firstErr == nil {
			return nil, nil, errors.New("genetic: no pipeline could be evaluated")
		}
		return nil, nil, errors.Wrap(firstErr, "genetic: no pipeline could be evaluated")
	}
	fmt.Fprintf(logw, "\nBest pipeline: %s\n", best)
	e.Log = logBuf.String()
	e.Best = best

	est, err := best.Build(s.Task, in.Seeds.Numeric)
	if err != nil {
		return nil, nil, err
	}
	if err := est.Fit(in.XTrain, in.YTrain); err != nil {
		return nil, nil, errors.Wrapf(err, "genetic: refit %s", best)
	}

	report := engine.Report{"best_cv_score": BestCVScore(e.Log)}
	if in.HasValidation() {
		v, err := scorer.Score(est, in.XVal, in.YVal)
		if err != nil {
			return nil, nil, errors.Wrap(err, "genetic: validation score")
		}
		report["validation_score"] = v
	}
	if s.CVAfterTraining {
		cv, err := model_selection.CrossValidate(ctx, est, in.XTrain, in.YTrain, splitter, []*metrics.Scorer{scorer}, s.NJobs)
		if err != nil {
			return nil, nil, errors.Wrap(err, "genetic: cv after training")
		}
		report["cv_score"] = cv.Mean(scorer.Name)
	}

	if err := e.writeArtifacts(in.Workdir, est, history); err != nil {
		return nil, nil, err
	}
	logger.Info("Evolution finished",
		log.LearnerKey, best.Learner,
		log.ScoreKey, best.Fitness,
		"generations", len(history),
		log.DurationSecondsKey, time.Since(start).Seconds(),
	)
	return est, report, nil
}

// rank sorts pop by descending fitness. Equal fitness keeps the incumbent
// order, so parents win ties against their offspring.
func rank(pop []*Individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].Fitness > pop[j].Fitness })
}

func meanFitness(pop []*Individual) float64 {
	vals := make([]float64, 0, len(pop))
	for _, ind := range pop {
		if !math.IsInf(ind.Fitness, 0) {
			vals = append(vals, ind.Fitness)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

func (e *Engine) writeArtifacts(workdir string, est model.Estimator, history []generation) error {
	if workdir == "" {
		return nil
	}
	if err := engine.WriteText(workdir, LogFile, e.Log); err != nil {
		return err
	}
	b := e.Best
	if err := engine.WriteJSON(workdir, PipelineFile, Pipeline{
		Steps:       b.Steps(),
		Scaler:      b.Scaler,
		Learner:     b.Learner,
		Config:      b.Config,
		Scoring:     e.Settings.Scoring,
		CVScore:     engine.Float(b.Fitness),
		Generations: len(history),
	}); err != nil {
		return err
	}
	if err := model.SaveModel(&est, filepath.Join(workdir, FittedFile)); err != nil {
		return errors.Wrapf(err, "write %s", FittedFile)
	}

	bestPts := make(plotter.XYs, len(history))
	meanPts := make(plotter.XYs, len(history))
	for i, g := range history {
		bestPts[i] = plotter.XY{X: float64(i + 1), Y: g.best}
		meanPts[i] = plotter.XY{X: float64(i + 1), Y: g.mean}
	}
	return engine.SavePlot(workdir, PlotFile, "Evolution", "generation", e.Settings.Scoring,
		engine.Series{Name: "best", Points: bestPts},
		engine.Series{Name: "population mean", Points: meanPts},
	)
}
