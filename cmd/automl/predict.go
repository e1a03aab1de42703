package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automlcli/automl"
	"github.com/YuminosukeSato/automlcli/dataset"
	"github.com/YuminosukeSato/automlcli/pkg/log"
)

type predictOptions struct {
	outputFile string
	column     string
	quiet      bool
}

func newPredictCommand() *cobra.Command {
	opts := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict MODEL DATA",
		Short: "Predict with a trained model",
		Long: `Predict loads MODEL, predicts every row of DATA and prints the
predictions as CSV. The index column, when the model has one, is kept as
the first column.`,
		Example: `  automl predict out/model.gob test.csv
  automl predict out/model.gob s3://bucket/test.jsonl.gz --output-file pred.csv.gz --quiet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := automl.Load(ctx, args[0])
			if err != nil {
				return err
			}
			t, err := m.Predict(ctx, args[1], opts.column)
			if err != nil {
				return err
			}
			if opts.outputFile != "" && opts.outputFile != dataset.Stdout {
				if err := dataset.WriteTable(ctx, opts.outputFile, t); err != nil {
					return err
				}
				log.GetLoggerWithName("cli").Info("Predictions written",
					"path", opts.outputFile,
					log.SamplesKey, t.NumRows(),
				)
			}
			if opts.quiet && opts.outputFile != dataset.Stdout {
				return nil
			}
			return dataset.EncodeTable(cmd.OutOrStdout(), dataset.FormatCSV, t)
		},
	}
	cmd.Flags().StringVar(&opts.outputFile, "output-file", "", "write predictions to this file (format from its extension)")
	cmd.Flags().StringVar(&opts.column, "prediction-column", "", "name of the prediction column (default: the target column)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print predictions")
	return cmd
}
