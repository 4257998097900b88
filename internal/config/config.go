// Package config holds the run configuration of the trainer: model
// hyperparameters plus data, logging and output settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/vae/internal/vae"
)

// Run defaults.
const (
	DefaultEpochs   = 10
	DefaultSeed     = 42
	DefaultDataDir  = "./data"
	DefaultLogLevel = "info"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full run configuration.
type Config struct {
	Model vae.Config `yaml:"model"`

	Epochs     int    `yaml:"epochs"`
	Seed       int64  `yaml:"seed"`
	DataDir    string `yaml:"data_dir"`
	MaxSamples int    `yaml:"max_samples"`
	Synthetic  bool   `yaml:"synthetic"`
	Shuffle    *bool  `yaml:"shuffle"`
	LogLevel   string `yaml:"log_level"`
	SamplesOut string `yaml:"samples_out"`

	// CheckpointIn initializes the weights from a SafeTensors file;
	// CheckpointOut receives the weights after training.
	CheckpointIn  string `yaml:"checkpoint_in"`
	CheckpointOut string `yaml:"checkpoint_out"`

	// LimitTrainBatches and LimitEvalBatches cap batches per epoch; 0 means all.
	LimitTrainBatches int `yaml:"limit_train_batches"`
	LimitEvalBatches  int `yaml:"limit_eval_batches"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{}.WithDefaults()
}

// Load reads a YAML configuration file. Fields the file omits keep their
// zero value; call WithDefaults to resolve them.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML. Unknown keys are rejected and an empty document
// yields the zero Config.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unset fields replaced by defaults.
func (c Config) WithDefaults() Config {
	c.Model = c.Model.WithDefaults()
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Shuffle == nil {
		shuffle := true
		c.Shuffle = &shuffle
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c
}

// ShuffleEnabled reports whether training batches are shuffled.
func (c Config) ShuffleEnabled() bool {
	return c.Shuffle == nil || *c.Shuffle
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalid, c.Epochs)
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("%w: max_samples must not be negative, got %d", ErrInvalid, c.MaxSamples)
	}
	if c.LimitTrainBatches < 0 || c.LimitEvalBatches < 0 {
		return fmt.Errorf("%w: batch limits must not be negative", ErrInvalid)
	}
	if !c.Synthetic && c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required unless synthetic is set", ErrInvalid)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q: %w", ErrInvalid, c.LogLevel, err)
	}
	return level, nil
}
