// Package config - YAML configuration for evaluation runs and the model boundary.
package config

import (
	"bytes"
	"io"
	"os"
	"runtime"

	"github.com/nvr-ai/go-daylight/evaluation"
	"github.com/nvr-ai/go-daylight/images"
	"github.com/nvr-ai/go-daylight/inference"
	"github.com/nvr-ai/go-daylight/inference/providers"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file.
type Config struct {
	// Evaluation configures the metrics and the batch evaluator.
	Evaluation evaluation.Options `json:"evaluation" yaml:"evaluation"`
	// Maps configures how prediction and reference map files are decoded.
	Maps MapConfig `json:"maps" yaml:"maps"`
	// Model configures the optional model run that produces predictions from inputs.
	Model inference.Config `json:"model" yaml:"model"`
}

// MapConfig controls map decoding.
type MapConfig struct {
	// Height and Width resize every decoded map. 0 keeps the reference size and
	// resizes predictions to match it.
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width"  yaml:"width"`
}

// Default returns the configuration used when no file is given: 10 uniform bins,
// epsilon 1e-6, the three conventional ratio thresholds, the full/low/high IoU
// queries, one worker per CPU and fail-fast error handling.
func Default() Config {
	return Config{
		Evaluation: evaluation.Options{
			Partition:  metrics.Uniform(10),
			Epsilon:    metrics.DefaultEpsilon,
			Thresholds: []float64{metrics.Delta1, metrics.Delta2, metrics.Delta3},
			Queries:    evaluation.DefaultQueries(),
			Workers:    runtime.NumCPU(),
			FailFast:   true,
		},
		Model: inference.Config{
			Format:    inference.FormatONNX,
			Providers: append([]providers.ProviderBackend(nil), providers.DefaultPreference...),
			Input:     images.DefaultPreprocessorConfig(),
		},
	}
}

// Load reads and validates a YAML configuration file on top of Default.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, has unknown fields or is invalid.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	// A file that sets only edges must not inherit the default bin count.
	cfg.Evaluation.Partition = metrics.PartitionSpec{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrapf(metrics.ErrConfiguration, "parse: %v", err)
	}
	if p := cfg.Evaluation.Partition; p.Kind == "" && p.Bins == 0 && len(p.Edges) == 0 {
		cfg.Evaluation.Partition = Default().Evaluation.Partition
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration by building everything it describes.
//
// Returns:
//   - error: A wrapped metrics.ErrConfiguration describing the first problem found.
func (c Config) Validate() error {
	if _, err := evaluation.NewEvaluator(c.Evaluation); err != nil {
		return errors.Wrap(err, "evaluation")
	}
	if c.Evaluation.Workers < 0 {
		return errors.Wrapf(metrics.ErrConfiguration, "evaluation: workers must not be negative, got %d", c.Evaluation.Workers)
	}
	if c.Maps.Height < 0 || c.Maps.Width < 0 {
		return errors.Wrapf(metrics.ErrConfiguration, "maps: invalid size %dx%d", c.Maps.Width, c.Maps.Height)
	}
	if (c.Maps.Height == 0) != (c.Maps.Width == 0) {
		return errors.Wrap(metrics.ErrConfiguration, "maps: height and width must be set together")
	}

	if _, err := inference.ParseFormat(string(c.Model.Format)); err != nil {
		return errors.Wrapf(metrics.ErrConfiguration, "model: %v", err)
	}
	for _, p := range c.Model.Providers {
		if _, err := providers.ParseBackend(string(p)); err != nil {
			return errors.Wrapf(metrics.ErrConfiguration, "model: %v", err)
		}
	}
	if _, err := images.NewPreprocessor(c.Model.Input); err != nil {
		return errors.Wrapf(metrics.ErrConfiguration, "model: %v", err)
	}
	if c.Model.OutputScale < 0 {
		return errors.Wrapf(metrics.ErrConfiguration, "model: output scale must not be negative, got %g", c.Model.OutputScale)
	}
	return nil
}
