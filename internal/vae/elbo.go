package vae

import (
	"math/rand"

	"github.com/born-ml/vae/internal/distribution"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// ELBO holds the batch-mean loss terms of one step and the reconstruction.
//
// Loss, ReconLoss and KLDiv are scalar tensors; on an autodiff backend
// Loss is the optimization target.
type ELBO[B tensor.Backend] struct {
	Loss           *tensor.Tensor[float32, B]
	ReconLoss      *tensor.Tensor[float32, B]
	KLDiv          *tensor.Tensor[float32, B]
	Reconstruction *tensor.Tensor[float32, B] // [batch, pixels]
}

// ComputeELBO computes the negative evidence lower bound of x [batch, pixels]
// using the single-sample Monte Carlo KL estimate.
//
//  1. z ~ posterior (reparameterized)
//  2. reconstruction = decode(z)
//  3. recon_loss = Σ_pixels BCE(reconstruction, x)
//  4. kl = Σ_latent (log q(z) - log p(z))
//  5. loss = recon_loss + kl
//  6. every term averaged over the batch
//
// x is not modified. A reconstruction whose shape differs from x panics.
func ComputeELBO[B tensor.Backend](
	x *tensor.Tensor[float32, B],
	prior, posterior *distribution.Normal[B],
	decode func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B],
	rng *rand.Rand,
) ELBO[B] {
	return computeELBO(x, prior, posterior, decode, rng, KLMonteCarlo)
}

func computeELBO[B tensor.Backend](
	x *tensor.Tensor[float32, B],
	prior, posterior *distribution.Normal[B],
	decode func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B],
	rng *rand.Rand,
	estimator KLEstimator,
) ELBO[B] {
	z := posterior.Rsample(rng)
	reconstruction := decode(z)

	reconLoss := nn.NewBCELoss[B]().Forward(reconstruction, x).SumDim(-1, false)

	var kl *tensor.Tensor[float32, B]
	if estimator == KLAnalytic {
		kl = distribution.KL(posterior, prior)
	} else {
		kl = posterior.LogProb(z).Sub(prior.LogProb(z))
	}
	kl = kl.SumDim(-1, false)

	elbo := reconLoss.Add(kl)

	return ELBO[B]{
		Loss:           elbo.MeanDim(0, false),
		ReconLoss:      reconLoss.MeanDim(0, false),
		KLDiv:          kl.MeanDim(0, false),
		Reconstruction: reconstruction,
	}
}
