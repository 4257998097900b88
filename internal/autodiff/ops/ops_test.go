package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/tensor"
)

func fromSlice(t *testing.T, shape tensor.Shape, data ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func TestReduceBroadcast(t *testing.T) {
	backend := cpu.New()
	grad := fromSlice(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	tests := []struct {
		name   string
		target tensor.Shape
		want   []float64
	}{
		{"same", tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6}},
		{"row", tensor.Shape{3}, []float64{5, 7, 9}},
		{"row keepdim", tensor.Shape{1, 3}, []float64{5, 7, 9}},
		{"column", tensor.Shape{2, 1}, []float64{6, 15}},
		{"scalar", tensor.Shape{}, []float64{21}},
		{"single", tensor.Shape{1, 1}, []float64{21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reduceBroadcast(grad, tt.target, backend)
			assert.Equal(t, tt.target, got.Shape())
			assert.Equal(t, tt.want, got.AsFloat64())
		})
	}
}

func TestSumDimOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	out := backend.SumDim(x, 1, false)

	op := NewSumDimOp(x, out, 1, false)
	grads := op.Backward(fromSlice(t, tensor.Shape{2}, 10, 20), backend)

	require.Len(t, grads, 1)
	assert.Equal(t, tensor.Shape{2, 3}, grads[0].Shape())
	assert.Equal(t, []float64{10, 10, 10, 20, 20, 20}, grads[0].AsFloat64())
}

func TestMeanDimOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, tensor.Shape{2, 4}, 1, 2, 3, 4, 5, 6, 7, 8)
	out := backend.MeanDim(x, 0, true)

	op := NewMeanDimOp(x, out, 0, true)
	grads := op.Backward(fromSlice(t, tensor.Shape{1, 4}, 2, 4, 6, 8), backend)

	assert.Equal(t, []float64{1, 2, 3, 4, 1, 2, 3, 4}, grads[0].AsFloat64())
}

func TestTransposeOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, tensor.Shape{2, 1, 3}, 1, 2, 3, 4, 5, 6)
	axes := []int{2, 0, 1}
	out := backend.Transpose(x, axes...)

	op := NewTransposeOp(x, out, axes)
	grads := op.Backward(out, backend)

	assert.Equal(t, x.Shape(), grads[0].Shape())
	assert.Equal(t, x.AsFloat64(), grads[0].AsFloat64())
}

func TestReLUOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, tensor.Shape{4}, -1, 0, 0.5, 2)
	op := NewReLUOp(x, backend.ReLU(x))

	grads := op.Backward(fromSlice(t, tensor.Shape{4}, 1, 1, 1, 1), backend)
	assert.Equal(t, []float64{0, 0, 1, 1}, grads[0].AsFloat64())
}

func TestBCEOp_Backward(t *testing.T) {
	backend := cpu.New()
	pred := fromSlice(t, tensor.Shape{3}, 0.5, 0.25, 0.8)
	target := fromSlice(t, tensor.Shape{3}, 1, 0, 0.8)
	op := NewBCEOp(pred, target, backend.BinaryCrossEntropy(pred, target))

	grads := op.Backward(fromSlice(t, tensor.Shape{3}, 1, 1, 1), backend)
	require.Len(t, grads, 2)
	assert.Nil(t, grads[1], "target receives no gradient")

	got := grads[0].AsFloat64()
	assert.InDelta(t, -2.0, got[0], 1e-12)   // -1/p
	assert.InDelta(t, 1/0.75, got[1], 1e-12) // 1/(1-p)
	assert.InDelta(t, 0.0, got[2], 1e-12)    // minimum at p == y
}
