// Package automlcli trains, persists and applies AutoML models on tabular
// data from a YAML configuration.
//
// # Features
//
//   - Two search engines behind one contract: a seeded hyperparameter
//     search over the learner catalogue (engine/search) and a genetic
//     pipeline search (engine/genetic)
//   - CSV, TSV, JSON Lines and gob tables, optionally gzip, zstd or bzip2
//     compressed
//   - Remote configuration and data over http(s):// and s3:// through a
//     local download cache
//   - Models persisted as a single gob blob that predict, retrain and
//     evaluate reload in later invocations
//
// # Installation
//
//	go install github.com/YuminosukeSato/automlcli/cmd/automl@latest
//
// # Quick Start
//
// Write a configuration:
//
//	automlcli:
//	  train_file: data/train.csv
//	  model:
//	    type: search
//	    target_column: target
//	    index_column: id
//	    time_budget: 60
//
// then train and predict:
//
//	automl train config.yaml out/
//	automl predict out/model.gob data/test.csv --output-file predictions.csv
//	automl evaluate out/model.gob data/valid.csv --scoring accuracy --cv 5
//
// Settings can be overridden on the command line with dotted keys:
//
//	automl train config.yaml out/ automlcli.model.time_budget=300 -f
//
// # Library use
//
// The same lifecycle is available from Go:
//
//	b, err := config.Build(cfg)
//	m, err := b.Build()
//	report, err := m.Train(ctx, "train.csv", "", workdir)
//	err = automl.Save(ctx, "model.gob", m)
//
// # Errors
//
// All errors returned by the packages are typed (see pkg/errors) and carry
// stack traces. Check them with errors.As:
//
//	var ce *errors.ConfigurationError
//	if errors.As(err, &ce) {
//	    fmt.Println(ce.Key, ce.Suggestion)
//	}
//
// # Environment
//
//	AUTOMLCLI_CACHE_DIR  download cache directory (default ~/.automlcli/cache)
//	AUTOMLCLI_DEBUG      force debug logging
package automlcli
