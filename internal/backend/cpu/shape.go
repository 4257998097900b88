package cpu

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// Reshape returns a copy of t with a new shape.
// The element count must be unchanged; a dimension of -1 is inferred.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape, err := inferShape(newShape, t.NumElements())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}

	result, err := t.Clone().WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

func inferShape(shape tensor.Shape, numElements int) (tensor.Shape, error) {
	out := shape.Clone()
	inferred := -1
	known := 1
	for i, d := range out {
		if d == -1 {
			if inferred >= 0 {
				return nil, fmt.Errorf("only one dimension can be inferred in %v", shape)
			}
			inferred = i
			continue
		}
		known *= d
	}
	if inferred >= 0 {
		if known == 0 || numElements%known != 0 {
			return nil, fmt.Errorf("cannot infer dimension of %v for %d elements", shape, numElements)
		}
		out[inferred] = numElements / known
	}
	if out.NumElements() != numElements {
		return nil, fmt.Errorf("cannot reshape %d elements into %v", numElements, shape)
	}
	return out, nil
}

// Transpose permutes the dimensions of t.
// With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if err := validatePermutation(axes, ndim); err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}

	result := tensor.MustNewRaw(outShape, t.DType(), cpu.device)
	switch t.DType() {
	case tensor.Float32:
		transposeKernel(result.AsFloat32(), t.AsFloat32(), t.Strides(), outShape, axes)
	case tensor.Float64:
		transposeKernel(result.AsFloat64(), t.AsFloat64(), t.Strides(), outShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}
	return result
}

func validatePermutation(axes []int, ndim int) error {
	if len(axes) != ndim {
		return fmt.Errorf("expected %d axes, got %d", ndim, len(axes))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			return fmt.Errorf("invalid permutation %v", axes)
		}
		seen[ax] = true
	}
	return nil
}

func transposeKernel[T float](out, in []T, inStrides []int, outShape tensor.Shape, axes []int) {
	// srcStrides[i] is the input stride walked when output dim i advances.
	srcStrides := make([]int, len(axes))
	for i, ax := range axes {
		srcStrides[i] = inStrides[ax]
	}

	index := make([]int, len(outShape))
	src := 0
	for i := range out {
		out[i] = in[src]
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			src += srcStrides[d]
			if index[d] < outShape[d] {
				break
			}
			src -= srcStrides[d] * index[d]
			index[d] = 0
		}
	}
}
