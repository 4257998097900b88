package tensor

import "math"

// Verify that mockBackend implements Backend.
var _ Backend = (*mockBackend)(nil)

// mockBackend implements every operation naively in float64 so tensor
// methods can be tested without a real backend.
type mockBackend struct{}

func newMockBackend() *mockBackend {
	return &mockBackend{}
}

func (m *mockBackend) Name() string   { return "mock" }
func (m *mockBackend) Device() Device { return CPU }

func (m *mockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

func (m *mockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

func (m *mockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

func (m *mockBackend) Div(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x / y })
}

func (m *mockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}
	av, bv := a.Float64s(), b.Float64s()
	out := make([]float64, outShape.NumElements())
	for i := range out {
		out[i] = op(av[broadcastIndex(i, outShape, a.Shape())], bv[broadcastIndex(i, outShape, b.Shape())])
	}
	return fromFloat64s(out, outShape, a.DType())
}

// broadcastIndex maps a flat index of outShape to the flat index of the
// broadcast operand with shape in.
func broadcastIndex(flat int, outShape, in Shape) int {
	idx, stride := 0, 1
	for d := len(outShape) - 1; d >= 0; d-- {
		coord := flat % outShape[d]
		flat /= outShape[d]
		if k := d - (len(outShape) - len(in)); k >= 0 {
			if in[k] != 1 {
				idx += coord * stride
			}
			stride *= in[k]
		}
	}
	return idx
}

func (m *mockBackend) MatMul(a, b *RawTensor) *RawTensor {
	rows, inner, cols := a.Shape()[0], a.Shape()[1], b.Shape()[1]
	av, bv := a.Float64s(), b.Float64s()
	out := make([]float64, rows*cols)
	for i := range rows {
		for j := range cols {
			for k := range inner {
				out[i*cols+j] += av[i*inner+k] * bv[k*cols+j]
			}
		}
	}
	return fromFloat64s(out, Shape{rows, cols}, a.DType())
}

func (m *mockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	out, err := t.Clone().WithShape(newShape)
	if err != nil {
		panic(err)
	}
	return out
}

func (m *mockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()
	if len(axes) == 0 {
		for i := len(shape) - 1; i >= 0; i-- {
			axes = append(axes, i)
		}
	}
	outShape := make(Shape, len(shape))
	for i, a := range axes {
		outShape[i] = shape[a]
	}

	in := t.Float64s()
	inStrides := shape.ComputeStrides()
	out := make([]float64, len(in))
	for flat := range out {
		rem, src := flat, 0
		for d := len(outShape) - 1; d >= 0; d-- {
			src += (rem % outShape[d]) * inStrides[axes[d]]
			rem /= outShape[d]
		}
		out[flat] = in[src]
	}
	return fromFloat64s(out, outShape, t.DType())
}

func (m *mockBackend) AddScalar(x *RawTensor, s float64) *RawTensor {
	return m.unary(x, func(v float64) float64 { return v + s })
}

func (m *mockBackend) MulScalar(x *RawTensor, s float64) *RawTensor {
	return m.unary(x, func(v float64) float64 { return v * s })
}

func (m *mockBackend) Exp(x *RawTensor) *RawTensor { return m.unary(x, math.Exp) }
func (m *mockBackend) Log(x *RawTensor) *RawTensor { return m.unary(x, math.Log) }

func (m *mockBackend) unary(x *RawTensor, f func(float64) float64) *RawTensor {
	vals := x.Float64s()
	for i, v := range vals {
		vals[i] = f(v)
	}
	return fromFloat64s(vals, x.Shape(), x.DType())
}

func (m *mockBackend) Sum(x *RawTensor) *RawTensor {
	var total float64
	for _, v := range x.Float64s() {
		total += v
	}
	return fromFloat64s([]float64{total}, Shape{}, x.DType())
}

func (m *mockBackend) SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduce(x, dim, keepDim, false)
}

func (m *mockBackend) MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduce(x, dim, keepDim, true)
}

func (m *mockBackend) reduce(x *RawTensor, dim int, keepDim, mean bool) *RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	outer := Shape(shape[:dim]).NumElements()
	size := shape[dim]
	inner := Shape(shape[dim+1:]).NumElements()

	in := x.Float64s()
	out := make([]float64, outer*inner)
	for o := range outer {
		for k := range size {
			for i := range inner {
				out[o*inner+i] += in[(o*size+k)*inner+i]
			}
		}
	}
	if mean {
		for i := range out {
			out[i] /= float64(size)
		}
	}

	outShape := make(Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	return fromFloat64s(out, outShape, x.DType())
}

func fromFloat64s(vals []float64, shape Shape, dtype DataType) *RawTensor {
	raw := MustNewRaw(shape, dtype, CPU)
	switch dtype {
	case Float32:
		dst := raw.AsFloat32()
		for i, v := range vals {
			dst[i] = float32(v)
		}
	case Float64:
		copy(raw.AsFloat64(), vals)
	}
	return raw
}
