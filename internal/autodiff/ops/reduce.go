package ops

import "github.com/born-ml/vae/internal/tensor"

// SumOp represents a full reduction to a scalar: output = Σ x.
type SumOp struct{ unaryOp }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{unaryOp{input: x, output: output}}
}

// Backward broadcasts the scalar gradient to every input element.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{broadcastTo(outputGrad, op.input.Shape(), backend)}
}

// SumDimOp represents a reduction sum along a dimension: output = sum(x, dim).
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape)
//
// If keepDim=false, grad_y is first unsqueezed at dim.
type SumDimOp struct {
	unaryOp
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{unaryOp: unaryOp{input: x, output: output}, dim: dim, keepDim: keepDim}
}

// Backward computes the input gradient for sum reduction.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		grad = unsqueezeDim(grad, op.dim, op.input.Shape(), backend)
	}
	return []*tensor.RawTensor{broadcastTo(grad, op.input.Shape(), backend)}
}

// MeanDimOp represents a mean along a dimension: output = mean(x, dim).
//
// Backward is the SumDim backward scaled by 1/size(dim).
type MeanDimOp struct {
	unaryOp
	dim     int
	keepDim bool
}

// NewMeanDimOp creates a new MeanDimOp.
func NewMeanDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{unaryOp: unaryOp{input: x, output: output}, dim: dim, keepDim: keepDim}
}

// Backward computes the input gradient for mean reduction.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	size := shape[shape.NormalizeDim(op.dim)]

	grad := outputGrad
	if !op.keepDim {
		grad = unsqueezeDim(grad, op.dim, shape, backend)
	}
	grad = backend.MulScalar(grad, 1/float64(size))
	return []*tensor.RawTensor{broadcastTo(grad, shape, backend)}
}
