package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

// Config is the run description read by `uboost train`.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Uniform  UniformConfig  `yaml:"uniform"`
	Boosting BoostingConfig `yaml:"boosting"`
	AdaBoost AdaBoostConfig `yaml:"adaboost"`
	Report   ReportConfig   `yaml:"report"`
	// Workers bounds parallel training; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DataConfig selects generated data or .npy files. When TrainFeatures is set
// all four paths are required and the generator settings are ignored.
type DataConfig struct {
	TrainSamples int     `yaml:"train_samples"`
	TestSamples  int     `yaml:"test_samples"`
	Features     int     `yaml:"features"`
	Distance     float64 `yaml:"distance"`
	Seed         uint64  `yaml:"seed"`

	TrainFeatures string   `yaml:"train_features"`
	TrainLabels   string   `yaml:"train_labels"`
	TestFeatures  string   `yaml:"test_features"`
	TestLabels    string   `yaml:"test_labels"`
	Columns       []string `yaml:"columns"`
}

// UniformConfig describes the uniformity-aware loss.
type UniformConfig struct {
	// Loss is "simple" or "pairwise".
	Loss      string   `yaml:"loss"`
	Variables []string `yaml:"variables"`
	KNN       int      `yaml:"knn"`
}

type BoostingConfig struct {
	NEstimators     int     `yaml:"n_estimators"`
	LearningRate    float64 `yaml:"learning_rate"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	Subsample       float64 `yaml:"subsample"`
	RandomState     uint64  `yaml:"random_state"`
}

type AdaBoostConfig struct {
	NEstimators  int     `yaml:"n_estimators"`
	LearningRate float64 `yaml:"learning_rate"`
}

// ReportConfig controls the flatness tables.
type ReportConfig struct {
	NBins int `yaml:"n_bins"`
	Step  int `yaml:"step"`
	// Stages for the MSE table; empty means the final predictions.
	Stages             []int     `yaml:"stages"`
	TargetEfficiencies []float64 `yaml:"target_efficiencies"`
	LowMemory          bool      `yaml:"low_memory"`
}

// DefaultConfig returns a small generated-data run.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			TrainSamples: 2000,
			TestSamples:  2000,
			Features:     4,
			Distance:     0.6,
			Seed:         42,
		},
		Uniform: UniformConfig{
			Loss:      "simple",
			Variables: []string{"column0"},
			KNN:       10,
		},
		Boosting: BoostingConfig{
			NEstimators:     50,
			LearningRate:    0.1,
			MaxDepth:        3,
			MinSamplesSplit: 2,
			Subsample:       1.0,
		},
		AdaBoost: AdaBoostConfig{
			NEstimators:  50,
			LearningRate: 1.0,
		},
		Report: ReportConfig{
			NBins:              10,
			Step:               10,
			TargetEfficiencies: []float64{0.6, 0.7, 0.8, 0.9},
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "load config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse config file")
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Validate checks every field that the run would otherwise reject late.
func (c Config) Validate() error {
	d := c.Data
	if d.TrainFeatures == "" {
		if d.TrainSamples < 2 {
			return errors.NewValidationError("data.train_samples", "must be >= 2", d.TrainSamples)
		}
		if d.TestSamples < 2 {
			return errors.NewValidationError("data.test_samples", "must be >= 2", d.TestSamples)
		}
		if d.Features < 1 {
			return errors.NewValidationError("data.features", "must be >= 1", d.Features)
		}
	} else if d.TrainLabels == "" || d.TestFeatures == "" || d.TestLabels == "" {
		return errors.NewValidationError("data", "train_labels, test_features and test_labels are required with train_features", d.TrainFeatures)
	}

	switch c.Uniform.Loss {
	case "simple", "pairwise":
	default:
		return errors.NewValidationError("uniform.loss", "must be simple or pairwise", c.Uniform.Loss)
	}
	if len(c.Uniform.Variables) == 0 {
		return errors.NewValidationError("uniform.variables", "must not be empty", c.Uniform.Variables)
	}
	if c.Uniform.KNN < 1 {
		return errors.NewValidationError("uniform.knn", "must be >= 1", c.Uniform.KNN)
	}

	if c.Boosting.NEstimators < 1 {
		return errors.NewValidationError("boosting.n_estimators", "must be >= 1", c.Boosting.NEstimators)
	}
	if c.Boosting.LearningRate <= 0 {
		return errors.NewValidationError("boosting.learning_rate", "must be > 0", c.Boosting.LearningRate)
	}
	if c.Boosting.Subsample <= 0 || c.Boosting.Subsample > 1 {
		return errors.NewValidationError("boosting.subsample", "must be in (0, 1]", c.Boosting.Subsample)
	}
	if c.AdaBoost.NEstimators < 1 {
		return errors.NewValidationError("adaboost.n_estimators", "must be >= 1", c.AdaBoost.NEstimators)
	}
	if c.AdaBoost.LearningRate <= 0 {
		return errors.NewValidationError("adaboost.learning_rate", "must be > 0", c.AdaBoost.LearningRate)
	}

	if c.Report.NBins < 1 {
		return errors.NewValidationError("report.n_bins", "must be >= 1", c.Report.NBins)
	}
	if c.Report.Step < 1 {
		return errors.NewValidationError("report.step", "must be >= 1", c.Report.Step)
	}
	if len(c.Report.TargetEfficiencies) == 0 {
		return errors.NewValidationError("report.target_efficiencies", "must not be empty", c.Report.TargetEfficiencies)
	}
	for _, e := range c.Report.TargetEfficiencies {
		if e <= 0 || e >= 1 {
			return errors.NewValidationError("report.target_efficiencies", "must lie in (0, 1)", e)
		}
	}
	if len(c.Uniform.Variables) > 2 {
		return errors.NewValidationError("uniform.variables", "tables bin over at most 2 variables", c.Uniform.Variables)
	}
	if c.Workers < 0 {
		return errors.NewValidationError("workers", "must be >= 0", c.Workers)
	}
	return nil
}
