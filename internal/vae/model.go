// Package vae implements the variational autoencoder: the ELBO, the
// per-batch step shared by training, validation and test, and epoch
// aggregation of the step metrics.
package vae

import (
	"math/rand"

	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// VAE owns an encoder and a decoder for its whole lifetime.
type VAE[B tensor.Backend] struct {
	cfg     Config
	encoder Encoder[B]
	decoder Decoder[B]
}

// New builds a VAE with the default MLP encoder and decoder. cfg is
// resolved with WithDefaults and validated.
func New[B tensor.Backend](cfg Config, backend B, rng *rand.Rand) (*VAE[B], error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &VAE[B]{
		cfg:     cfg,
		encoder: NewMLPEncoder(cfg, rng, backend),
		decoder: NewMLPDecoder(cfg, rng, backend),
	}, nil
}

// NewWithModules builds a VAE around caller-supplied networks.
func NewWithModules[B tensor.Backend](cfg Config, encoder Encoder[B], decoder Decoder[B]) (*VAE[B], error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &VAE[B]{cfg: cfg, encoder: encoder, decoder: decoder}, nil
}

// Forward decodes latent samples z [batch, latent_dim] into pixel
// probabilities [batch, pixels].
func (v *VAE[B]) Forward(z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return v.decoder.Decode(z)
}

// Parameters returns encoder then decoder parameters.
func (v *VAE[B]) Parameters() []*nn.Parameter[B] {
	params := v.encoder.Parameters()
	return append(params, v.decoder.Parameters()...)
}

// Config returns the resolved configuration.
func (v *VAE[B]) Config() Config {
	return v.cfg
}

// Encoder returns the encoder.
func (v *VAE[B]) Encoder() Encoder[B] {
	return v.encoder
}
