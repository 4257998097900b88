package vae

import (
	"errors"
	"fmt"
)

// KLEstimator selects how the KL term of the ELBO is computed.
type KLEstimator string

const (
	// KLMonteCarlo uses the single-sample estimate log q(z) - log p(z).
	KLMonteCarlo KLEstimator = "monte_carlo"
	// KLAnalytic uses the closed-form Gaussian KL.
	KLAnalytic KLEstimator = "analytic"
)

// Defaults for every model option.
const (
	DefaultHiddenDim   = 128
	DefaultLatentDim   = 32
	DefaultInputWidth  = 28
	DefaultInputHeight = 28
	DefaultBatchSize   = 32

	// LearningRate is the Adam step size. It is not configurable.
	LearningRate = 0.001
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid vae config")

// Config holds the model hyperparameters.
//
// Zero values mean "use the default"; call WithDefaults once at
// construction time to resolve them.
type Config struct {
	HiddenDim   int         `yaml:"hidden_dim"`
	LatentDim   int         `yaml:"latent_dim"`
	InputWidth  int         `yaml:"input_width"`
	InputHeight int         `yaml:"input_height"`
	BatchSize   int         `yaml:"batch_size"`
	KLEstimator KLEstimator `yaml:"kl_estimator"`
}

// DefaultConfig returns the configuration with every default applied.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
// BatchSize defaults from its own option, never from the image size.
func (c Config) WithDefaults() Config {
	if c.HiddenDim == 0 {
		c.HiddenDim = DefaultHiddenDim
	}
	if c.LatentDim == 0 {
		c.LatentDim = DefaultLatentDim
	}
	if c.InputWidth == 0 {
		c.InputWidth = DefaultInputWidth
	}
	if c.InputHeight == 0 {
		c.InputHeight = DefaultInputHeight
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.KLEstimator == "" {
		c.KLEstimator = KLMonteCarlo
	}
	return c
}

// Validate rejects non-positive sizes and unknown estimators.
// Odd widths and heights are accepted.
func (c Config) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"hidden_dim", c.HiddenDim},
		{"latent_dim", c.LatentDim},
		{"input_width", c.InputWidth},
		{"input_height", c.InputHeight},
		{"batch_size", c.BatchSize},
	}
	for _, d := range dims {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, d.name, d.value)
		}
	}

	switch c.KLEstimator {
	case KLMonteCarlo, KLAnalytic:
	default:
		return fmt.Errorf("%w: unknown kl_estimator %q", ErrInvalidConfig, c.KLEstimator)
	}
	return nil
}

// Pixels returns the number of pixels of one flattened image.
func (c Config) Pixels() int {
	return c.InputWidth * c.InputHeight
}

// LearningRate returns the fixed optimizer learning rate.
func (c Config) LearningRate() float32 {
	return LearningRate
}
