package ops

import (
	"math"

	"github.com/born-ml/vae/internal/tensor"
)

// ExpOp represents output = exp(x).
//
// Backward:
//
//	∂L/∂x = ∂L/∂output * exp(x) = ∂L/∂output * output
type ExpOp struct{ unaryOp }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unaryOp{input: x, output: output}}
}

// Backward computes the input gradient for exp.
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents output = log(x).
//
// Backward:
//
//	∂L/∂x = ∂L/∂output / x
type LogOp struct{ unaryOp }

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{unaryOp{input: x, output: output}}
}

// Backward computes the input gradient for log.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

// ReLUOp represents output = max(0, x).
//
// The gradient is 1 where x > 0 and 0 elsewhere (including x == 0).
type ReLUOp struct{ unaryOp }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unaryOp{input: x, output: output}}
}

// Backward computes the input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zip(outputGrad, op.input, func(g, x float64) float64 {
		if x > 0 {
			return g
		}
		return 0
	})
	return []*tensor.RawTensor{grad}
}

// SigmoidOp represents output = σ(x) = 1 / (1 + exp(-x)).
//
// Backward:
//
//	∂L/∂x = ∂L/∂output * σ(x) * (1 - σ(x))
type SigmoidOp struct{ unaryOp }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unaryOp{input: x, output: output}}
}

// Backward computes the input gradient for sigmoid.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zip(outputGrad, op.output, func(g, s float64) float64 {
		return g * s * (1 - s)
	})
	return []*tensor.RawTensor{grad}
}

// bceMinDenominator keeps the BCE gradient finite when the prediction
// saturates at exactly 0 or 1.
const bceMinDenominator = 1e-12

// BCEOp represents the element-wise binary cross-entropy
// output = -(y·log(p) + (1-y)·log(1-p)).
//
// Backward:
//
//	∂L/∂p = ∂L/∂output * (p - y) / (p · (1 - p))
//
// The target y is data; no gradient flows to it.
type BCEOp struct{ binaryOp }

// NewBCEOp creates a new BCEOp for prediction p and target y.
func NewBCEOp(pred, target, output *tensor.RawTensor) *BCEOp {
	return &BCEOp{binaryOp{inputs: []*tensor.RawTensor{pred, target}, output: output}}
}

// Backward computes the prediction gradient for binary cross-entropy.
func (op *BCEOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	pred, target := op.inputs[0], op.inputs[1]

	ratio := zip(pred, target, func(p, y float64) float64 {
		return (p - y) / math.Max(p*(1-p), bceMinDenominator)
	})
	grad := zip(outputGrad, ratio, func(g, r float64) float64 { return g * r })

	return []*tensor.RawTensor{grad, nil}
}
