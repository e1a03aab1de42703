// Command automl trains, retrains, evaluates and applies AutoML models
// described by a YAML configuration.
//
//	automl train config.yaml out/ model.time_budget=120
//	automl predict out/model.gob test.csv --output-file predictions.csv
//	automl evaluate out/model.gob test.csv --scoring accuracy --scoring f1 --cv 5
//	automl retrain out/model.gob new.csv out/model-v2.gob
package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automlcli/pkg/log"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "automl",
		Short:         "Train and apply AutoML models on tabular data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setupLogging(cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(
		newTrainCommand(opts),
		newRetrainCommand(),
		newPredictCommand(),
		newEvaluateCommand(),
	)
	return cmd
}

// setupLogging sends logs and warnings to w.
func (o *rootOptions) setupLogging(w io.Writer) error {
	if err := log.SetupLogger(o.logLevel, o.logFormat, w); err != nil {
		return err
	}
	log.SetupWarnings(w)
	return nil
}

// reportError prints err for the user and logs it with its stack trace.
func reportError(w io.Writer, err error) {
	io.WriteString(w, "Error: "+err.Error()+"\n")
	log.GetLoggerWithName("cli").Error("Command failed", err)
}
