// Standard attribute keys. Keys follow a hierarchical naming convention
// ("model.name", "data.samples") so that log lines from different packages
// can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "GradientBoostingClassifier", "AdaBoostClassifier"
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies a classifier inside a report collection.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict_proba", "staged_predict_proba", "test_on"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// NeighborsKey is the number of neighbors per group.
	NeighborsKey = "data.neighbors"

	// UniformVariablesKey lists the covariates along which flatness is required.
	UniformVariablesKey = "data.uniform_variables"
)

// Performance and Training
const (
	// DurationMsKey records operation duration in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// LossKey records the training loss.
	LossKey = "metrics.loss"

	// IterationKey records the boosting stage.
	IterationKey = "training.iteration"

	// StagesKey records the number of stages fitted or evaluated.
	StagesKey = "training.stages"
)

// Configuration
const (
	// LearningRateKey records the shrinkage applied to every stage.
	LearningRateKey = "hyperparams.learning_rate"

	// LossNameKey records the resolved loss function.
	LossNameKey = "hyperparams.loss"

	// RandomSeedKey records the seed used for subsampling or data generation.
	RandomSeedKey = "config.random_seed"

	// WorkerIDKey records the worker that ran a parallel task.
	WorkerIDKey = "infra.worker_id"
)
