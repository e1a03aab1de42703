package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automlcli/automl"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
	"github.com/YuminosukeSato/automlcli/pkg/fileio"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

type evaluateOptions struct {
	scoring    []string
	cv         int
	outputFile string
	quiet      bool
}

func newEvaluateCommand() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate MODEL DATA",
		Short: "Score a trained model on labelled data",
		Long: `Evaluate loads MODEL and scores it on DATA with each --scoring metric
(accuracy when none is given). With --cv K the model's best estimator is
cross-validated on DATA with K folds and every fold score is reported.`,
		Example: "  automl evaluate out/model.gob test.csv --scoring accuracy --scoring f1 --cv 5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := automl.Load(ctx, args[0])
			if err != nil {
				return err
			}
			result, err := m.Evaluate(ctx, args[1], opts.scoring, opts.cv)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encode evaluation")
			}
			data = append(data, '\n')

			if opts.outputFile != "" {
				if err := writeFile(cmd, opts.outputFile, data); err != nil {
					return err
				}
			}
			logger := log.GetLoggerWithName("cli")
			for name, s := range result {
				if s.IsCV() {
					logger.Debug("Evaluated", log.MetricKey, name, log.ScoreKey, s.Mean, "std", s.Std)
				} else {
					logger.Debug("Evaluated", log.MetricKey, name, log.ScoreKey, s.Value)
				}
			}
			if opts.quiet {
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return errors.Wrap(err, "write evaluation")
		},
	}
	cmd.Flags().StringArrayVar(&opts.scoring, "scoring", nil, "metric to compute (repeatable)")
	cmd.Flags().IntVar(&opts.cv, "cv", 0, "number of cross-validation folds (0 scores the held estimator directly)")
	cmd.Flags().StringVar(&opts.outputFile, "output-file", "", "also write the JSON result to this path (local or s3://)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the result")
	return cmd
}

func writeFile(cmd *cobra.Command, path string, data []byte) error {
	w, err := fileio.Create(cmd.Context(), path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(w.Close(), "close %s", path)
}
