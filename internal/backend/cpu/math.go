package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vae/internal/parallel"
	"github.com/born-ml/vae/internal/tensor"
)

// bceLogFloor bounds log terms of the binary cross-entropy, matching the
// usual framework behaviour so a saturated sigmoid yields a large finite
// loss instead of +Inf.
const bceLogFloor = -100.0

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, math.Log)
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float64) float64 { return v + scalar })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float64) float64 { return v * scalar })
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float64) float64 { return math.Max(v, 0) })
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, sigmoid)
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// BinaryCrossEntropy computes the per-element loss
//
//	-(y·log(p) + (1-y)·log(1-p))
//
// with no reduction. pred and target must have the same shape.
// Each log term is floored at -100; values of p outside [0, 1] still
// produce NaN.
func (cpu *CPUBackend) BinaryCrossEntropy(pred, target *tensor.RawTensor) *tensor.RawTensor {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("binary_cross_entropy: shape mismatch %v vs %v", pred.Shape(), target.Shape()))
	}
	if pred.DType() != target.DType() {
		panic(fmt.Sprintf("binary_cross_entropy: dtype mismatch %s vs %s", pred.DType(), target.DType()))
	}

	result := tensor.MustNewRaw(pred.Shape(), pred.DType(), cpu.device)
	switch pred.DType() {
	case tensor.Float32:
		bceKernel(result.AsFloat32(), pred.AsFloat32(), target.AsFloat32(), cpu.par)
	case tensor.Float64:
		bceKernel(result.AsFloat64(), pred.AsFloat64(), target.AsFloat64(), cpu.par)
	default:
		panic(fmt.Sprintf("binary_cross_entropy: unsupported dtype %s", pred.DType()))
	}
	return result
}

func bceKernel[T float](out, pred, target []T, cfg parallel.Config) {
	parallel.For(len(out), cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p, y := float64(pred[i]), float64(target[i])
			logP := math.Max(math.Log(p), bceLogFloor)
			log1mP := math.Max(math.Log(1-p), bceLogFloor)
			out[i] = T(-(y*logP + (1-y)*log1mP))
		}
	})
}

func (cpu *CPUBackend) unary(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		mapKernel(result.AsFloat32(), x.AsFloat32(), cpu.par, f)
	case tensor.Float64:
		mapKernel(result.AsFloat64(), x.AsFloat64(), cpu.par, f)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

func mapKernel[T float](dst, src []T, cfg parallel.Config, f func(float64) float64) {
	parallel.For(len(src), cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = T(f(float64(src[i])))
		}
	})
}
