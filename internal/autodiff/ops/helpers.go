package ops

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// Leading dimensions that the target never had are summed away.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Dimensions where the target is 1 were stretched.
	shape := result.Shape()
	for i, dim := range targetShape {
		if dim == 1 && shape[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// broadcastTo expands t to targetShape under broadcasting rules.
func broadcastTo(t *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if t.Shape().Equal(targetShape) {
		return t
	}
	zeros := tensor.MustNewRaw(targetShape, t.DType(), t.Device())
	return backend.Add(zeros, t)
}

// unsqueezeDim restores the reduced dimension dim (size 1) of a
// reduction computed with keepDim=false.
func unsqueezeDim(t *tensor.RawTensor, dim int, inputShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	dim = inputShape.NormalizeDim(dim)
	shape := inputShape.Clone()
	shape[dim] = 1
	return backend.Reshape(t, shape)
}

// zip builds a new tensor with out[i] = f(a[i], b[i]).
// a and b must have the same shape and dtype.
func zip(a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("zip: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	result := tensor.MustNewRaw(a.Shape(), a.DType(), a.Device())

	switch a.DType() {
	case tensor.Float32:
		x, y, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		for i := range out {
			out[i] = float32(f(float64(x[i]), float64(y[i])))
		}
	case tensor.Float64:
		x, y, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		for i := range out {
			out[i] = f(x[i], y[i])
		}
	default:
		panic(fmt.Sprintf("zip: unsupported dtype %s", a.DType()))
	}
	return result
}
