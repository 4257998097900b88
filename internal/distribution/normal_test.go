package distribution_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"pgregory.net/rapid"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/distribution"
	"github.com/born-ml/vae/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func full(shape tensor.Shape, v float32, backend Backend) *tensor.Tensor[float32, Backend] {
	return tensor.Full(shape, v, backend)
}

// Sampled outputs of prior and posterior are [B, D] for any B and D.
func TestRsample_ShapeProperty(t *testing.T) {
	backend := newBackend()

	rapid.Check(t, func(t *rapid.T) {
		b := rapid.IntRange(1, 16).Draw(t, "batch")
		d := rapid.IntRange(1, 16).Draw(t, "latent")
		seed := rapid.Int64().Draw(t, "seed")
		rng := rand.New(rand.NewSource(seed))

		mean := tensor.Randn[float32](tensor.Shape{b, d}, rng, backend)
		std := tensor.Rand[float32](tensor.Shape{b, d}, rng, backend).AddScalar(0.1)

		prior := distribution.Prior(mean, std)
		posterior := distribution.Posterior(mean, std)

		for _, dist := range []*distribution.Normal[Backend]{prior, posterior} {
			z := dist.Rsample(rng)
			if !z.Shape().Equal(tensor.Shape{b, d}) {
				t.Fatalf("sample shape %v, want [%d %d]", z.Shape(), b, d)
			}
			if !dist.Shape().Equal(tensor.Shape{b, d}) {
				t.Fatalf("distribution shape %v, want [%d %d]", dist.Shape(), b, d)
			}
		}
	})
}

func TestPrior_IsStandardNormal(t *testing.T) {
	backend := newBackend()
	mean := full(tensor.Shape{2, 3}, 5, backend)
	std := full(tensor.Shape{2, 3}, 7, backend)

	prior := distribution.Prior(mean, std)
	for _, v := range prior.Loc().Data() {
		assert.Zero(t, v)
	}
	for _, v := range prior.Scale().Data() {
		assert.Equal(t, float32(1), v)
	}
}

func TestNew_ShapeMismatchPanics(t *testing.T) {
	backend := newBackend()
	assert.Panics(t, func() {
		distribution.New(full(tensor.Shape{2, 3}, 0, backend), full(tensor.Shape{3, 2}, 1, backend))
	})
}

func TestLogProb_MatchesGonum(t *testing.T) {
	backend := newBackend()

	loc, err := tensor.FromSlice([]float32{0, 1.5, -2, 0.25}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	scale, err := tensor.FromSlice([]float32{1, 0.5, 2, 0.1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	z, err := tensor.FromSlice([]float32{0.3, 1.0, -5, 0.2}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	got := distribution.New(loc, scale).LogProb(z).Data()
	for i := range got {
		oracle := distuv.Normal{Mu: float64(loc.Data()[i]), Sigma: float64(scale.Data()[i])}
		assert.InDelta(t, oracle.LogProb(float64(z.Data()[i])), float64(got[i]), 1e-4, "element %d", i)
	}
}

func TestRsample_Moments(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(11))

	const n = 20000
	dist := distribution.New(full(tensor.Shape{n, 1}, 3, backend), full(tensor.Shape{n, 1}, 0.5, backend))
	samples := dist.Rsample(rng).Data()

	xs := make([]float64, len(samples))
	for i, v := range samples {
		xs[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(xs, nil)
	assert.InDelta(t, 3.0, mean, 0.02)
	assert.InDelta(t, 0.5, std, 0.02)
}

func TestRsample_Deterministic(t *testing.T) {
	backend := newBackend()
	dist := distribution.New(full(tensor.Shape{4, 3}, 0, backend), full(tensor.Shape{4, 3}, 1, backend))

	a := dist.Rsample(rand.New(rand.NewSource(42))).Data()
	b := dist.Rsample(rand.New(rand.NewSource(42))).Data()
	assert.Equal(t, a, b)
}

// log q(z) - log p(z) is exactly zero when the posterior equals the prior,
// so its sample mean is zero as well.
func TestMonteCarloKL_ZeroWhenPosteriorIsPrior(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(3))

	mean := full(tensor.Shape{1000, 4}, 0, backend)
	std := full(tensor.Shape{1000, 4}, 1, backend)
	q := distribution.Posterior(mean, std)
	p := distribution.Prior(mean, std)

	z := q.Rsample(rng)
	kl := q.LogProb(z).Sub(p.LogProb(z)).SumDim(-1, false).Data()

	xs := make([]float64, len(kl))
	for i, v := range kl {
		xs[i] = float64(v)
	}
	assert.InDelta(t, 0, stat.Mean(xs, nil), 1e-6)
}

func TestMonteCarloKL_ConvergesToAnalytic(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(9))

	const n = 50000
	q := distribution.New(full(tensor.Shape{n, 1}, 0.7, backend), full(tensor.Shape{n, 1}, 0.6, backend))
	p := distribution.Prior(q.Loc(), q.Scale())

	z := q.Rsample(rng)
	mc := q.LogProb(z).Sub(p.LogProb(z)).Data()
	xs := make([]float64, len(mc))
	for i, v := range mc {
		xs[i] = float64(v)
	}

	analytic := float64(distribution.KL(q, p).Data()[0])
	want := -math.Log(0.6) + (0.36+0.49)/2 - 0.5
	assert.InDelta(t, want, analytic, 1e-5)
	assert.InDelta(t, analytic, stat.Mean(xs, nil), 0.02)
}

func TestRsample_GradientsReachParameters(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()
	rng := rand.New(rand.NewSource(1))

	mean := full(tensor.Shape{2, 2}, 0.5, backend)
	logVar := full(tensor.Shape{2, 2}, 0, backend)
	std := logVar.MulScalar(0.5).Exp()

	z := distribution.Posterior(mean, std).Rsample(rng)
	grads := autodiff.Backward(z.Sum(), backend)

	require.Contains(t, grads, mean.Raw())
	require.Contains(t, grads, logVar.Raw())
	for _, g := range grads[mean.Raw()].AsFloat32() {
		assert.Equal(t, float32(1), g)
	}
}
