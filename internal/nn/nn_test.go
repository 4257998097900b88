package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func TestLinear_Shapes(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(1))
	layer := nn.NewLinear("fc", 4, 3, rng, backend)

	assert.Equal(t, 4, layer.InFeatures())
	assert.Equal(t, 3, layer.OutFeatures())
	assert.Equal(t, tensor.Shape{3, 4}, layer.Weight().Tensor().Shape())
	assert.Equal(t, tensor.Shape{3}, layer.Bias().Tensor().Shape())
	assert.Equal(t, "fc.weight", layer.Weight().Name())
	assert.Equal(t, "fc.bias", layer.Bias().Name())

	out := layer.Forward(tensor.Ones[float32](tensor.Shape{5, 4}, backend))
	assert.Equal(t, tensor.Shape{5, 3}, out.Shape())

	assert.Panics(t, func() { layer.Forward(tensor.Ones[float32](tensor.Shape{5, 3}, backend)) })
	assert.Panics(t, func() { layer.Forward(tensor.Ones[float32](tensor.Shape{4}, backend)) })
}

func TestLinear_Forward(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear("fc", 2, 2, rand.New(rand.NewSource(1)), backend)

	copy(layer.Weight().Tensor().Data(), []float32{1, 2, 3, 4})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -0.5})

	x, err := tensor.FromSlice([]float32{1, 1, 2, 0}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	// [1,1]·Wᵀ = [3, 7], [2,0]·Wᵀ = [2, 6]
	assert.Equal(t, []float32{3.5, 6.5, 2.5, 5.5}, layer.Forward(x).Data())
}

func TestXavier_Bounds(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(7))
	w := nn.Xavier(100, 50, tensor.Shape{50, 100}, rng, backend)

	bound := float32(math.Sqrt(6.0 / 150.0))
	var sum float64
	for _, v := range w.Data() {
		require.LessOrEqual(t, v, bound)
		require.GreaterOrEqual(t, v, -bound)
		sum += float64(v)
	}
	assert.InDelta(t, 0, sum/float64(w.NumElements()), 0.01)
}

func TestXavier_Deterministic(t *testing.T) {
	backend := cpu.New()
	a := nn.Xavier(8, 8, tensor.Shape{8, 8}, rand.New(rand.NewSource(3)), backend)
	b := nn.Xavier(8, 8, tensor.Shape{8, 8}, rand.New(rand.NewSource(3)), backend)
	assert.Equal(t, a.Data(), b.Data())
}

func TestActivations(t *testing.T) {
	backend := newBackend()
	x, err := tensor.FromSlice([]float32{-1, 0, 2}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 0, 2}, nn.NewReLU[Backend]().Forward(x).Data())

	s := nn.NewSigmoid[Backend]().Forward(x).Data()
	assert.InDelta(t, 1/(1+math.E), s[0], 1e-6)
	assert.InDelta(t, 0.5, s[1], 1e-6)

	assert.Nil(t, nn.NewReLU[Backend]().Parameters())
	assert.Nil(t, nn.NewSigmoid[Backend]().Parameters())
}

func TestBCELoss(t *testing.T) {
	backend := newBackend()
	p, _ := tensor.FromSlice([]float32{0.5, 0.5, 0.5, 0.5}, tensor.Shape{2, 2}, backend)
	y, _ := tensor.FromSlice([]float32{0, 1, 1, 0}, tensor.Shape{2, 2}, backend)

	loss := nn.NewBCELoss[Backend]().Forward(p, y)
	require.Equal(t, tensor.Shape{2, 2}, loss.Shape())
	for _, v := range loss.Data() {
		assert.InDelta(t, math.Ln2, v, 1e-6)
	}

	wrong, _ := tensor.FromSlice([]float32{0, 1}, tensor.Shape{2}, backend)
	assert.Panics(t, func() { nn.NewBCELoss[Backend]().Forward(p, wrong) })
}

func TestSequential(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(1))

	model := nn.NewSequential[Backend](
		nn.NewLinear("fc1", 6, 4, rng, backend),
		nn.NewReLU[Backend](),
	)
	model.Add(nn.NewLinear("fc2", 4, 2, rng, backend))
	model.Add(nn.NewSigmoid[Backend]())

	assert.Equal(t, 4, model.Len())
	assert.Len(t, model.Parameters(), 4)
	assert.Equal(t, 6*4+4+4*2+2, nn.CountParameters(model.Parameters()))

	out := model.Forward(tensor.Ones[float32](tensor.Shape{3, 6}, backend))
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	for _, v := range out.Data() {
		assert.True(t, v > 0 && v < 1)
	}

	assert.Panics(t, func() { model.Module(4) })
}

func TestLinear_Gradients(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear("fc", 3, 2, rand.New(rand.NewSource(1)), backend)

	backend.Tape().StartRecording()
	x := tensor.Ones[float32](tensor.Shape{4, 3}, backend)
	loss := layer.Forward(x).Sum()
	grads := autodiff.Backward(loss, backend)

	wGrad := grads[layer.Weight().Tensor().Raw()]
	require.NotNil(t, wGrad, "weight gradient must flow through the transpose")
	assert.Equal(t, []float32{4, 4, 4, 4, 4, 4}, wGrad.AsFloat32())

	bGrad := grads[layer.Bias().Tensor().Raw()]
	require.NotNil(t, bGrad, "bias gradient must flow through the reshape")
	assert.Equal(t, []float32{4, 4}, bGrad.AsFloat32())
}

func TestStateDict_RoundTrip(t *testing.T) {
	backend := newBackend()
	src := nn.NewLinear("fc", 3, 2, rand.New(rand.NewSource(1)), backend)
	dst := nn.NewLinear("fc", 3, 2, rand.New(rand.NewSource(2)), backend)

	state := nn.StateDict(src.Parameters())
	require.Len(t, state, 2)
	require.Contains(t, state, "fc.weight")

	require.NoError(t, nn.LoadStateDict(dst.Parameters(), state))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())
	assert.Equal(t, src.Bias().Tensor().Data(), dst.Bias().Tensor().Data())

	// Loaded values are copies.
	src.Weight().Tensor().Data()[0] += 1
	assert.NotEqual(t, src.Weight().Tensor().Data()[0], dst.Weight().Tensor().Data()[0])
}

func TestLoadStateDict_Mismatch(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(1))
	small := nn.NewLinear("fc", 3, 2, rng, backend)
	large := nn.NewLinear("fc", 4, 2, rng, backend)
	other := nn.NewLinear("head", 3, 2, rng, backend)

	before := append([]float32(nil), small.Bias().Tensor().Data()...)
	require.Error(t, nn.LoadStateDict(small.Parameters(), nn.StateDict(large.Parameters())))
	assert.Equal(t, before, small.Bias().Tensor().Data())

	err := nn.LoadStateDict(small.Parameters(), nn.StateDict(other.Parameters()))
	require.ErrorContains(t, err, "missing parameter fc.weight")
}
