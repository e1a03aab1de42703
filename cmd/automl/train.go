package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automlcli/automl"
	"github.com/YuminosukeSato/automlcli/config"
	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/fileio"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

// Files written into the training output directory.
const (
	MetricsFile    = "metrics.json"
	PromFile       = "metrics.prom"
	ConfigSnapshot = "config.yaml"
	ParamsFile     = "params.json"
	OutLogFile     = "out.log"
)

type trainOptions struct {
	train      string
	validation string
	force      bool
}

func newTrainCommand(root *rootOptions) *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train CONFIG OUTPUT [KEY=VALUE...]",
		Short: "Train a model and write it with its diagnostics into OUTPUT",
		Long: `Train loads CONFIG, applies the KEY=VALUE overrides (dotted keys, YAML
values), trains the configured model and writes model.gob, metrics.json,
metrics.prom, config.yaml, params.json, out.log and the engine's search
artifacts into the OUTPUT directory.`,
		Example: `  automl train config.yaml out/
  automl train config.yaml out/ --train data/train.csv model.time_budget=30 -f`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, root, opts, args[0], args[1], args[2:])
		},
	}
	cmd.Flags().StringVar(&opts.train, "train", "", "training data (default: train_file from the config)")
	cmd.Flags().StringVar(&opts.validation, "validation", "", "validation data (default: validation_file from the config)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "reuse an existing non-empty output directory")
	return cmd
}

// runParams is the provenance record written to params.json.
type runParams struct {
	RunID          string         `json:"run_id"`
	Command        []string       `json:"command"`
	ConfigFile     string         `json:"config_file"`
	Overrides      []string       `json:"overrides"`
	TrainFile      string         `json:"train_file"`
	ValidationFile string         `json:"validation_file,omitempty"`
	Output         string         `json:"output"`
	Config         map[string]any `json:"config,omitempty"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Status         string         `json:"status"`
	Error          string         `json:"error,omitempty"`
}

func runTrain(cmd *cobra.Command, root *rootOptions, opts *trainOptions, configPath, output string, overrides []string) (err error) {
	ctx := cmd.Context()
	if err := fileio.CreateWorkdir(output, opts.force); err != nil {
		return err
	}
	logw, closer, err := fileio.TeeFile(cmd.ErrOrStderr(), output, OutLogFile)
	if err != nil {
		return err
	}
	defer closer.Close()
	if err := root.setupLogging(logw); err != nil {
		return err
	}

	params := &runParams{
		RunID:      uuid.NewString(),
		Command:    os.Args,
		ConfigFile: configPath,
		Overrides:  overrides,
		Output:     output,
		StartTime:  time.Now().UTC(),
	}
	logger := log.GetLoggerWithName("cli").With(log.RunIDKey, params.RunID, log.WorkdirKey, output)
	defer func() {
		params.EndTime = time.Now().UTC()
		params.Status = "succeeded"
		if err != nil {
			params.Status = "failed"
			params.Error = err.Error()
		}
		if werr := engine.WriteJSON(output, ParamsFile, params); werr != nil {
			logger.Warn("Failed to write run parameters", log.ErrAttr(werr))
		}
	}()

	cfg, err := config.LoadYAML(ctx, configPath, overrides)
	if err != nil {
		return err
	}
	params.Config = cfg
	b, err := config.Build(cfg)
	if err != nil {
		return err
	}
	if err := writeConfigSnapshot(output, cfg); err != nil {
		return err
	}

	params.TrainFile = firstNonEmpty(opts.train, b.TrainFile)
	params.ValidationFile = firstNonEmpty(opts.validation, b.ValidationFile)
	if params.TrainFile == "" {
		return errors.NewConfigurationError("train_file", "no training data: pass --train or set train_file")
	}

	m, err := b.Build()
	if err != nil {
		return err
	}
	m.SetProgress(cmd.OutOrStdout())
	logger.Info("Training model",
		log.ModelNameKey, m.String(),
		log.DataPathKey, params.TrainFile,
		log.RandomSeedKey, b.Seeds.Random,
		"config", cfg,
	)

	start := time.Now()
	report, err := m.Train(ctx, params.TrainFile, params.ValidationFile, output)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := engine.WriteJSON(output, MetricsFile, report); err != nil {
		return err
	}
	if err := writePromMetrics(filepath.Join(output, PromFile), m.Type, report, elapsed); err != nil {
		return err
	}
	if err := automl.Save(ctx, filepath.Join(output, automl.ModelFile), m); err != nil {
		return err
	}
	logger.Info("Model saved",
		"path", filepath.Join(output, automl.ModelFile),
		"report", report,
		log.DurationSecondsKey, elapsed.Seconds(),
	)
	return nil
}

func writeConfigSnapshot(dir string, cfg map[string]any) error {
	f, err := os.Create(filepath.Join(dir, ConfigSnapshot))
	if err != nil {
		return errors.Wrap(err, "write config snapshot")
	}
	if err := config.Dump(f, cfg); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "write config snapshot")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
