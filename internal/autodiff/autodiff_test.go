package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/tensor"
)

type testBackend = autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() *testBackend {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	return backend
}

func fromSlice(t *testing.T, data []float64, shape tensor.Shape, backend *testBackend) *tensor.Tensor[float64, *testBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func TestAutodiffBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	assert.False(t, tape.IsRecording(), "tape should not record initially")

	x := tensor.Ones[float32](tensor.Shape{2}, backend)
	x.Add(x)
	assert.Zero(t, tape.NumOps(), "nothing is recorded while stopped")

	tape.StartRecording()
	x.Add(x).Mul(x)
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Zero(t, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear preserves recording state")

	tape.StopRecording()
	assert.False(t, tape.IsRecording())
}

func TestBackward_Square(t *testing.T) {
	backend := newBackend()

	x := fromSlice(t, []float64{2, -3}, tensor.Shape{2}, backend)
	y := x.Mul(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float64{4, -6}, grads[x.Raw()].AsFloat64())
	assert.True(t, backend.Tape().IsRecording(), "recording state restored after backward")
}

func TestBackward_NoOpsPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Ones[float64](tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

func TestBackward_IgnoresOpsAfterOutput(t *testing.T) {
	backend := newBackend()

	x := fromSlice(t, []float64{3}, tensor.Shape{1}, backend)
	loss := x.MulScalar(2).Sum()
	_ = loss.MulScalar(100).Exp() // recorded after the loss, e.g. for reporting

	grads := autodiff.Backward(loss, backend)
	assert.Equal(t, []float64{2}, grads[x.Raw()].AsFloat64())
}

func TestBackward_Accumulates(t *testing.T) {
	backend := newBackend()

	x := fromSlice(t, []float64{1.5}, tensor.Shape{1}, backend)
	// y = x + x·x + exp(x) uses x three times.
	y := x.Add(x.Mul(x)).Add(x.Exp()).Sum()

	grads := autodiff.Backward(y, backend)
	assert.InDelta(t, 1+2*1.5+math.Exp(1.5), grads[x.Raw()].AsFloat64()[0], 1e-12)
}

func TestBackward_LinearLayer(t *testing.T) {
	backend := newBackend()

	// out = x @ wᵀ + b, loss = Σ out
	x := fromSlice(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	w := fromSlice(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, tensor.Shape{2, 3}, backend)
	b := fromSlice(t, []float64{0.5, -0.5}, tensor.Shape{2}, backend)

	loss := x.MatMul(w.T()).Add(b).Sum()
	grads := autodiff.Backward(loss, backend)

	// dL/dw[j,k] = Σ_i x[i,k]; dL/db = batch size.
	assert.Equal(t, []float64{5, 7, 9, 5, 7, 9}, grads[w.Raw()].AsFloat64())
	assert.Equal(t, []float64{2, 2}, grads[b.Raw()].AsFloat64())
	assert.Equal(t, tensor.Shape{2, 3}, grads[x.Raw()].Shape())
}

// numericalGradient estimates ∂f/∂x[i] by central differences.
func numericalGradient(f func([]float64) float64, x []float64, eps float64) []float64 {
	grad := make([]float64, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + eps
		plus := f(x)
		x[i] = orig - eps
		minus := f(x)
		x[i] = orig
		grad[i] = (plus - minus) / (2 * eps)
	}
	return grad
}

// TestGradientCheck compares tape gradients with finite differences for
// every differentiable op on a graph resembling a Gaussian log-density
// followed by a sigmoid/BCE reconstruction term.
func TestGradientCheck(t *testing.T) {
	shape := tensor.Shape{2, 3}
	target := []float64{0, 0.5, 1, 1, 0.25, 0}
	input := []float64{0.3, -1.2, 0.8, 1.5, -0.4, 0.1}

	backend := newBackend()
	x := fromSlice(t, input, shape, backend)
	grads := autodiff.Backward(evalFrom(x, target, backend), backend)
	got := grads[x.Raw()].AsFloat64()

	f := func(data []float64) float64 {
		b := autodiff.New(cpu.New())
		return evalFrom(fromSlice(t, data, shape, b), target, b).Item()
	}
	want := numericalGradient(f, append([]float64(nil), input...), 1e-6)

	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "gradient mismatch at %d", i)
	}
}

// evalFrom builds Σ_d(-(x-μ)²/(2σ²) - log σ) averaged over rows, plus a
// BCE reconstruction term through ReLU and Sigmoid.
func evalFrom(x *tensor.Tensor[float64, *testBackend], target []float64, backend *testBackend) *tensor.Tensor[float64, *testBackend] {
	y, err := tensor.FromSlice(target, x.Shape(), backend)
	if err != nil {
		panic(err)
	}

	mu := x.MeanDim(0, true)
	sigma := x.Mul(x).AddScalar(1).Log().MulScalar(0.5).Exp()
	diff := x.Sub(mu)
	gauss := diff.Mul(diff).Div(sigma.Mul(sigma).MulScalar(2)).Neg().Sub(sigma.Log())
	gaussTerm := gauss.SumDim(-1, false).MeanDim(0, false)

	h := x.Reshape(3, 2).Transpose().Reshape(2, 3)
	p := tensor.New[float64](backend.Sigmoid(backend.ReLU(h.Raw())), backend)
	recon := tensor.New[float64](backend.BinaryCrossEntropy(p.Raw(), y.Raw()), backend)
	reconTerm := recon.SumDim(1, false).MeanDim(0, false)

	return gaussTerm.Add(reconTerm)
}
