package vae

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// Encoder maps images [batch, channels, height, width] to the parameters
// of a diagonal Gaussian over the latent space.
type Encoder[B tensor.Backend] interface {
	// Encode returns (mean, logVar), each [batch, latent_dim].
	Encode(x *tensor.Tensor[float32, B]) (mean, logVar *tensor.Tensor[float32, B])
	Parameters() []*nn.Parameter[B]
}

// Decoder maps latent samples [batch, latent_dim] to per-pixel Bernoulli
// probabilities [batch, pixels] in [0, 1].
type Decoder[B tensor.Backend] interface {
	Decode(z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
}

// MLPEncoder is a one-hidden-layer encoder:
//
//	flatten → Linear(pixels, hidden) → ReLU → {Linear(hidden, latent) for μ, Linear(hidden, latent) for log σ²}
type MLPEncoder[B tensor.Backend] struct {
	body   *nn.Sequential[B]
	mean   *nn.Linear[B]
	logVar *nn.Linear[B]
}

// NewMLPEncoder builds an MLPEncoder for cfg, drawing initial weights from rng.
func NewMLPEncoder[B tensor.Backend](cfg Config, rng *rand.Rand, backend B) *MLPEncoder[B] {
	return &MLPEncoder[B]{
		body: nn.NewSequential[B](
			nn.NewLinear("encoder.fc", cfg.Pixels(), cfg.HiddenDim, rng, backend),
			nn.NewReLU[B](),
		),
		mean:   nn.NewLinear("encoder.mu", cfg.HiddenDim, cfg.LatentDim, rng, backend),
		logVar: nn.NewLinear("encoder.log_var", cfg.HiddenDim, cfg.LatentDim, rng, backend),
	}
}

// Encode flattens x and returns (mean, logVar).
func (e *MLPEncoder[B]) Encode(x *tensor.Tensor[float32, B]) (mean, logVar *tensor.Tensor[float32, B]) {
	if len(x.Shape()) < 2 {
		panic(fmt.Sprintf("MLPEncoder.Encode: expected batched images, got shape %v", x.Shape()))
	}
	h := e.body.Forward(x.Flatten())
	return e.mean.Forward(h), e.logVar.Forward(h)
}

// Parameters returns all encoder weights.
func (e *MLPEncoder[B]) Parameters() []*nn.Parameter[B] {
	params := e.body.Parameters()
	params = append(params, e.mean.Parameters()...)
	return append(params, e.logVar.Parameters()...)
}

// MLPDecoder is a one-hidden-layer decoder:
//
//	Linear(latent, hidden) → ReLU → Linear(hidden, pixels) → Sigmoid
type MLPDecoder[B tensor.Backend] struct {
	net *nn.Sequential[B]
}

// NewMLPDecoder builds an MLPDecoder for cfg, drawing initial weights from rng.
func NewMLPDecoder[B tensor.Backend](cfg Config, rng *rand.Rand, backend B) *MLPDecoder[B] {
	return &MLPDecoder[B]{
		net: nn.NewSequential[B](
			nn.NewLinear("decoder.fc", cfg.LatentDim, cfg.HiddenDim, rng, backend),
			nn.NewReLU[B](),
			nn.NewLinear("decoder.out", cfg.HiddenDim, cfg.Pixels(), rng, backend),
			nn.NewSigmoid[B](),
		),
	}
}

// Decode maps z to pixel probabilities.
func (d *MLPDecoder[B]) Decode(z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return d.net.Forward(z)
}

// Parameters returns all decoder weights.
func (d *MLPDecoder[B]) Parameters() []*nn.Parameter[B] {
	return d.net.Parameters()
}
