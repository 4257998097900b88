// Package distribution provides the diagonal Gaussian used for the VAE's
// prior and approximate posterior.
//
// All operations are expressed through tensor ops, so on an autodiff
// backend samples and log-densities are differentiable with respect to
// the distribution parameters.
package distribution

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// halfLog2Pi is ½·log(2π), the normalising constant of a unit Gaussian.
var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// Normal is a batch of independent Gaussians, one per element of Loc.
//
// Loc and Scale have the same shape, typically [batch, latent].
type Normal[B tensor.Backend] struct {
	loc   *tensor.Tensor[float32, B]
	scale *tensor.Tensor[float32, B]
}

// New creates a Normal with the given mean and standard deviation.
// Panics if the shapes differ. scale must be strictly positive; this is
// not checked.
func New[B tensor.Backend](loc, scale *tensor.Tensor[float32, B]) *Normal[B] {
	if !loc.Shape().Equal(scale.Shape()) {
		panic(fmt.Sprintf("distribution.New: loc shape %v does not match scale shape %v", loc.Shape(), scale.Shape()))
	}
	return &Normal[B]{loc: loc, scale: scale}
}

// Prior returns the standard normal N(0, 1) with the shape of meanLike
// and stdLike. Only the shapes of the references are used.
func Prior[B tensor.Backend](meanLike, stdLike *tensor.Tensor[float32, B]) *Normal[B] {
	return New(tensor.ZerosLike(meanLike), tensor.OnesLike(stdLike))
}

// Posterior returns N(mean, std) for encoder outputs. std is normally
// exp(logVar/2) and therefore positive.
func Posterior[B tensor.Backend](mean, std *tensor.Tensor[float32, B]) *Normal[B] {
	return New(mean, std)
}

// Loc returns the mean.
func (n *Normal[B]) Loc() *tensor.Tensor[float32, B] {
	return n.loc
}

// Scale returns the standard deviation.
func (n *Normal[B]) Scale() *tensor.Tensor[float32, B] {
	return n.scale
}

// Shape returns the batch shape of the distribution.
func (n *Normal[B]) Shape() tensor.Shape {
	return n.loc.Shape()
}

// Rsample draws one reparameterized sample loc + scale·ε with ε ~ N(0, 1)
// taken from rng. The sample is a differentiable function of loc and scale.
func (n *Normal[B]) Rsample(rng *rand.Rand) *tensor.Tensor[float32, B] {
	eps := tensor.Randn[float32](n.Shape(), rng, n.loc.Backend())
	return n.loc.Add(n.scale.Mul(eps))
}

// LogProb evaluates the element-wise log-density at z:
//
//	log N(z; μ, σ) = -(z-μ)²/(2σ²) - log σ - ½·log(2π)
func (n *Normal[B]) LogProb(z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	diff := z.Sub(n.loc)
	variance := n.scale.Mul(n.scale)
	quad := diff.Mul(diff).Div(variance.MulScalar(2))
	return quad.Add(n.scale.Log()).AddScalar(halfLog2Pi).Neg()
}

// KL returns the element-wise closed-form KL(q ‖ p) between two diagonal
// Gaussians of the same shape:
//
//	log(σp/σq) + (σq² + (μq-μp)²)/(2σp²) - ½
func KL[B tensor.Backend](q, p *Normal[B]) *tensor.Tensor[float32, B] {
	if !q.Shape().Equal(p.Shape()) {
		panic(fmt.Sprintf("distribution.KL: shape mismatch %v vs %v", q.Shape(), p.Shape()))
	}
	logRatio := p.scale.Log().Sub(q.scale.Log())
	diff := q.loc.Sub(p.loc)
	num := q.scale.Mul(q.scale).Add(diff.Mul(diff))
	den := p.scale.Mul(p.scale).MulScalar(2)
	return logRatio.Add(num.Div(den)).AddScalar(-0.5)
}
