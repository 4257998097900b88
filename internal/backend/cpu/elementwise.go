package cpu

import "github.com/born-ml/vae/internal/tensor"

type float interface {
	~float32 | ~float64
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
)

func apply[T float](op binaryOp, x, y T) T {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	default:
		return x / y
	}
}

// binaryKernel computes out = a op b, broadcasting a and b to outShape.
func binaryKernel[T float](out, a, b []T, aShape, bShape, outShape tensor.Shape, op binaryOp) {
	if aShape.Equal(bShape) {
		for i := range out {
			out[i] = apply(op, a[i], b[i])
		}
		return
	}

	// Scalar on either side is common (loss scaling, gradient seeds).
	if len(b) == 1 {
		for i := range out {
			out[i] = apply(op, a[i], b[0])
		}
		return
	}
	if len(a) == 1 {
		for i := range out {
			out[i] = apply(op, a[0], b[i])
		}
		return
	}

	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	index := make([]int, len(outShape))
	aOff, bOff := 0, 0

	for i := range out {
		out[i] = apply(op, a[aOff], b[bOff])

		// Advance the multi-index like an odometer, keeping offsets in sync.
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			aOff += aStrides[d]
			bOff += bStrides[d]
			if index[d] < outShape[d] {
				break
			}
			aOff -= aStrides[d] * index[d]
			bOff -= bStrides[d] * index[d]
			index[d] = 0
		}
	}
}

// broadcastStrides returns strides of in aligned to out, with 0 for every
// dimension that is broadcast.
func broadcastStrides(in, out tensor.Shape) []int {
	inStrides := in.ComputeStrides()
	strides := make([]int, len(out))
	lead := len(out) - len(in)
	for i := range out {
		j := i - lead
		if j < 0 || (in[j] == 1 && out[i] != 1) {
			continue
		}
		strides[i] = inStrides[j]
	}
	return strides
}
