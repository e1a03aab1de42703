// Package log defines standard attribute keys for automl operations.
//
// Using these keys keeps the JSON log stream of a training run filterable:
// every record about a data file carries data.path, every record about a
// search trial carries search.trial, and so on.
//
// The keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "LogisticRegression", "DecisionTreeClassifier", "Pipeline"
	ModelNameKey = "model.name"

	// ModelTypeKey is the registry tag of an automl model.
	// Examples: "search", "genetic"
	ModelTypeKey = "model.type"

	// EngineKey names the estimator engine driving the search.
	EngineKey = "automl.engine"

	// OperationKey specifies the operation being performed.
	// Standard values: "train", "retrain", "predict", "evaluate", "fit"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "dataset", "fileio", "search"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DataPathKey is the path or URL a dataset was loaded from.
	DataPathKey = "data.path"

	// DataFormatKey is the decoder selected for a dataset.
	// Examples: "csv", "tsv", "jsonl", "gob"
	DataFormatKey = "data.format"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds for longer operations.
	DurationSecondsKey = "perf.duration_seconds"

	// LossKey records a validation loss. Lower is better.
	LossKey = "metrics.loss"

	// ScoreKey records a scorer value. Higher is better.
	ScoreKey = "metrics.score"

	// MetricKey names the scorer a value was computed with.
	MetricKey = "metrics.name"
)

// Search progress
const (
	// TrialKey is the zero-based trial number of a hyperparameter search.
	TrialKey = "search.trial"

	// GenerationKey is the generation number of an evolutionary search.
	GenerationKey = "search.generation"

	// LearnerKey names the learner family evaluated by a trial.
	LearnerKey = "search.learner"

	// HyperParamsKey contains a trial configuration as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Run context
const (
	// RunIDKey is the unique id of one CLI invocation.
	RunIDKey = "run.id"

	// WorkdirKey is the output directory of a training run.
	WorkdirKey = "run.workdir"

	// URLKey is a remote resource being resolved.
	URLKey = "fileio.url"

	// CachePathKey is the local cache file backing a remote resource.
	CachePathKey = "fileio.cache_path"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationTrain    = "train"
	OperationRetrain  = "retrain"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationFit      = "fit"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"
)
