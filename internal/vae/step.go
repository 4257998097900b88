package vae

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vae/internal/dataset"
	"github.com/born-ml/vae/internal/distribution"
	"github.com/born-ml/vae/internal/tensor"
)

// Mode selects the metric names a step reports under.
type Mode int

const (
	ModeTrain Mode = iota
	ModeValidate
	ModeTest
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeValidate:
		return "validate"
	case ModeTest:
		return "test"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Prefix returns the metric prefix: train, val or test.
func (m Mode) Prefix() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeValidate:
		return "val"
	case ModeTest:
		return "test"
	default:
		panic(fmt.Sprintf("vae: unknown mode %d", int(m)))
	}
}

// ReconstructionKey is the metric key of the reconstruction tensor in
// validation and test outputs.
const ReconstructionKey = "pxz"

// StepOutput is the result of one step.
type StepOutput[B tensor.Backend] struct {
	Mode Mode
	ELBO ELBO[B]
}

// Loss returns the scalar optimization target.
func (o StepOutput[B]) Loss() *tensor.Tensor[float32, B] {
	return o.ELBO.Loss
}

// Metrics returns the three named scalar metrics of the step, for example
// train_elbo_loss, train_recon_loss and train_kl_loss.
func (o StepOutput[B]) Metrics() map[string]float64 {
	p := o.Mode.Prefix()
	return map[string]float64{
		p + "_elbo_loss":  float64(o.ELBO.Loss.Item()),
		p + "_recon_loss": float64(o.ELBO.ReconLoss.Item()),
		p + "_kl_loss":    float64(o.ELBO.KLDiv.Item()),
	}
}

// Reconstruction returns the reconstruction and true for validation and
// test steps. Training steps do not report it.
func (o StepOutput[B]) Reconstruction() (*tensor.Tensor[float32, B], bool) {
	if o.Mode == ModeTrain {
		return nil, false
	}
	return o.ELBO.Reconstruction, true
}

// Record returns the scalar metrics as an EpochRecord.
func (o StepOutput[B]) Record() EpochRecord {
	return EpochRecord{
		ELBO:  float64(o.ELBO.Loss.Item()),
		Recon: float64(o.ELBO.ReconLoss.Item()),
		KL:    float64(o.ELBO.KLDiv.Item()),
	}
}

// Step runs the step shared by every mode:
//
//  1. encode images into (mean, logVar)
//  2. std = exp(logVar / 2)
//  3. build prior and posterior
//  4. flatten images to [batch, pixels]
//  5. compute the ELBO
//
// Step never updates weights. Whether gradients are recorded is decided by
// the caller through the backend.
func (v *VAE[B]) Step(mode Mode, batch dataset.Batch[B], rng *rand.Rand) StepOutput[B] {
	x := batch.Images

	mean, logVar := v.encoder.Encode(x)
	std := logVar.MulScalar(0.5).Exp()

	prior := distribution.Prior(mean, std)
	posterior := distribution.Posterior(mean, std)

	flat := x.Flatten()
	elbo := computeELBO(flat, prior, posterior, v.decoder.Decode, rng, v.cfg.KLEstimator)

	return StepOutput[B]{Mode: mode, ELBO: elbo}
}
