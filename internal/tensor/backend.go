package tensor

// Backend defines the operations a compute backend must provide.
//
// The set is exactly what the VAE graph needs: broadcasting arithmetic,
// a 2-D matmul, reshape/transpose for Linear layers and gradients, the
// element-wise math behind Gaussian log-densities, and reductions.
//
// Implementations:
//   - cpu.CPUBackend: pure Go, gonum BLAS for matmul
//   - autodiff.AutodiffBackend: decorator recording ops on a gradient tape
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies two 2-D tensors: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor                            // all elements, scalar result
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // along one dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // along one dimension

	// Metadata.
	Name() string
	Device() Device
}
