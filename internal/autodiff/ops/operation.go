// Package ops defines the differentiable operations recorded on a gradient tape.
//
// Each operation keeps references to its inputs and output from the
// forward pass and maps an output gradient to input gradients:
//   - AddOp, SubOp, MulOp, DivOp: broadcasting arithmetic
//   - AddScalarOp, MulScalarOp: affine maps by a constant
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - ReshapeOp, TransposeOp: layout changes
//   - ExpOp, LogOp, ReLUOp, SigmoidOp: element-wise functions
//   - SumOp, SumDimOp, MeanDimOp: reductions
//   - BCEOp: element-wise binary cross-entropy
package ops

import "github.com/born-ml/vae/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The result is aligned with Inputs(); a nil entry means no gradient
	// flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// unaryOp carries the bookkeeping shared by single-input operations.
type unaryOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the single input tensor.
func (op *unaryOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *unaryOp) Output() *tensor.RawTensor {
	return op.output
}

// binaryOp carries the bookkeeping shared by two-input operations.
type binaryOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

// Inputs returns the input tensors [a, b].
func (op *binaryOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *binaryOp) Output() *tensor.RawTensor {
	return op.output
}
