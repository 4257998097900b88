package ops

import "github.com/born-ml/vae/internal/tensor"

// ReshapeOp represents output = reshape(input).
//
// The backward pass reshapes the gradient back to the input shape. It must
// be recorded: the backend copies data, so without it gradients would stop
// at the reshaped tensor instead of reaching the original parameter.
type ReshapeOp struct{ unaryOp }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp{input: input, output: output}}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// TransposeOp represents output = transpose(input, axes).
//
// The gradient of transpose is transpose with the inverse permutation.
// Linear layers transpose their weight on every forward pass, so this is
// how gradients reach the weight parameter.
type TransposeOp struct {
	unaryOp
	axes []int
}

// NewTransposeOp creates a new TransposeOp. axes must be the full
// permutation used by the forward pass.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{unaryOp: unaryOp{input: input, output: output}, axes: axes}
}

// Backward computes input gradient for transpose.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}
