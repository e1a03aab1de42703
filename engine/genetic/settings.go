package genetic

import (
	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/engine/learner"
	"github.com/YuminosukeSato/automlcli/metrics"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// Settings are the validated parameters of an evolutionary run.
type Settings struct {
	Task           metrics.Task
	Generations    int
	PopulationSize int
	OffspringSize  int
	MutationRate   float64
	CrossoverRate  float64
	CV             int
	Scoring        string
	NJobs          int
	// MaxTimeMins stops the run after the current generation; 0 = unlimited.
	MaxTimeMins float64
	// EarlyStop ends the run after this many generations without
	// improvement; 0 disables it.
	EarlyStop       int
	Verbosity       int
	CVAfterTraining bool
	Learners        []string
}

func defaultScoring(task metrics.Task) string {
	if task == metrics.TaskRegression {
		return "neg_mean_squared_error"
	}
	return "accuracy"
}

// ParseSettings reads and validates the genetic parameters. task is required.
func ParseSettings(p *engine.Params) (Settings, error) {
	var s Settings
	if !p.Has("task") {
		return s, errors.NewConfigurationError("model.task", "task must be 'classification' or 'regression'")
	}
	task, err := p.String("task", "")
	if err != nil {
		return s, err
	}
	if s.Task, err = metrics.ParseTask("model.task", task); err != nil {
		return s, err
	}

	ints := []struct {
		key string
		dst *int
		def int
		min int
	}{
		{"generations", &s.Generations, 10, 1},
		{"population_size", &s.PopulationSize, 20, 2},
		{"cv", &s.CV, 5, 2},
		{"early_stop", &s.EarlyStop, 0, 0},
		{"verbosity", &s.Verbosity, 2, 0},
	}
	for _, f := range ints {
		if *f.dst, err = p.Int(f.key, f.def); err != nil {
			return s, err
		}
		if *f.dst < f.min {
			return s, errors.NewConfigurationErrorf("model."+f.key, "must be at least %d, got %d", f.min, *f.dst)
		}
	}
	if s.OffspringSize, err = p.Int("offspring_size", s.PopulationSize); err != nil {
		return s, err
	}
	if s.OffspringSize < 1 {
		return s, errors.NewConfigurationErrorf("model.offspring_size", "must be at least 1, got %d", s.OffspringSize)
	}

	if s.MutationRate, err = p.Float("mutation_rate", 0.9); err != nil {
		return s, err
	}
	if err := p.Range("mutation_rate", s.MutationRate, 0, 1); err != nil {
		return s, err
	}
	if s.CrossoverRate, err = p.Float("crossover_rate", 0.1); err != nil {
		return s, err
	}
	if err := p.Range("crossover_rate", s.CrossoverRate, 0, 1); err != nil {
		return s, err
	}
	if s.MutationRate+s.CrossoverRate > 1 {
		return s, errors.NewConfigurationErrorf("model.mutation_rate",
			"mutation_rate + crossover_rate must be <= 1, got %g", s.MutationRate+s.CrossoverRate)
	}

	if s.Scoring, err = p.String("scoring", defaultScoring(s.Task)); err != nil {
		return s, err
	}
	if _, err := metrics.LookupScorer("model.scoring", s.Scoring, s.Task); err != nil {
		return s, err
	}
	if s.NJobs, err = p.Int("n_jobs", -1); err != nil {
		return s, err
	}
	if s.MaxTimeMins, err = p.Float("max_time_mins", 0); err != nil {
		return s, err
	}
	if s.CVAfterTraining, err = p.Bool("cv_after_training", false); err != nil {
		return s, err
	}

	if s.Learners, err = p.Strings("learners", nil); err != nil {
		return s, err
	}
	if len(s.Learners) == 0 {
		s.Learners = learner.Names(s.Task)
	}
	if _, err := learner.Select(s.Task, "model.learners", s.Learners); err != nil {
		return s, err
	}
	return s, nil
}
