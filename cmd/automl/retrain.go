package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automlcli/automl"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

func newRetrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retrain MODEL DATA OUTPUT",
		Short: "Refit a trained model on new data, keeping its hyperparameters",
		Long: `Retrain loads MODEL, refits its best estimator on DATA without a new
search, and saves the result to OUTPUT. When OUTPUT is an existing
directory the model is written as model.gob inside it.`,
		Example: "  automl retrain out/model.gob data/new.csv out/model-v2.gob",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := automl.Load(ctx, args[0])
			if err != nil {
				return err
			}
			m.SetProgress(cmd.OutOrStdout())
			if err := m.Retrain(ctx, args[1]); err != nil {
				return err
			}
			out := modelOutputPath(args[2])
			if err := automl.Save(ctx, out, m); err != nil {
				return err
			}
			log.GetLoggerWithName("cli").Info("Model retrained",
				log.ModelNameKey, m.String(),
				log.DataPathKey, args[1],
				"path", out,
			)
			return nil
		},
	}
}

func modelOutputPath(p string) string {
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return filepath.Join(p, automl.ModelFile)
	}
	return p
}
