package cpu

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// Sum reduces all elements to a scalar tensor (shape []).
// Float32 inputs are accumulated in float64.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(tensor.Shape{}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		var sum float64
		for _, v := range x.AsFloat32() {
			sum += float64(v)
		}
		result.AsFloat32()[0] = float32(sum)
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		result.AsFloat64()[0] = sum
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// SumDim sums tensor elements along dim.
//
// Parameters:
//   - dim: dimension to reduce (negative values count from the end)
//   - keepDim: keep the reduced dimension with size 1 instead of removing it
//
// Example:
//
//	x := shape [2, 3, 4]
//	backend.SumDim(x, -1, true)  // shape [2, 3, 1]
//	backend.SumDim(x, -1, false) // shape [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages tensor elements along dim. See SumDim for parameters.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meandim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	result := tensor.MustNewRaw(ReducedShape(shape, dim, keepDim), x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		reduceDimKernel(result.AsFloat32(), x.AsFloat32(), shape, dim, mean)
	case tensor.Float64:
		reduceDimKernel(result.AsFloat64(), x.AsFloat64(), shape, dim, mean)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

// ReducedShape returns the shape left after reducing dim.
func ReducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, d := range shape {
		if i != dim {
			out = append(out, d)
		}
	}
	return out
}

func reduceDimKernel[T float](out, in []T, shape tensor.Shape, dim int, mean bool) {
	outer := tensor.Shape(shape[:dim]).NumElements()
	size := shape[dim]
	inner := tensor.Shape(shape[dim+1:]).NumElements()

	for o := 0; o < outer; o++ {
		base := o * size * inner
		for i := 0; i < inner; i++ {
			var acc float64
			for k := 0; k < size; k++ {
				acc += float64(in[base+k*inner+i])
			}
			if mean {
				acc /= float64(size)
			}
			out[o*inner+i] = T(acc)
		}
	}
}
