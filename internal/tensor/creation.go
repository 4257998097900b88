package tensor

import "math/rand"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// ZerosLike creates a zero tensor with the shape and backend of like.
func ZerosLike[T DType, B Backend](like *Tensor[T, B]) *Tensor[T, B] {
	return Zeros[T, B](like.Shape(), like.Backend())
}

// OnesLike creates a tensor of ones with the shape and backend of like.
func OnesLike[T DType, B Backend](like *Tensor[T, B]) *Tensor[T, B] {
	return Ones[T, B](like.Shape(), like.Backend())
}

// Randn creates a tensor of standard normal samples drawn from rng.
//
// The generator is explicit so that a fixed seed reproduces every sample
// of a training run.
//
//nolint:gosec // math/rand is intentional: reproducible sampling, not security
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(rng.NormFloat64())
	}
	return t
}

// Rand creates a tensor of samples uniformly distributed in [0, 1).
//
//nolint:gosec // math/rand is intentional: reproducible sampling, not security
func Rand[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(rng.Float64())
	}
	return t
}
