// Package nn implements the neural network building blocks used by the VAE.
//
// This package provides:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable tensors with gradient slots
//   - Linear: fully connected layer
//   - Activations: ReLU, Sigmoid
//   - Loss functions: BCELoss
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/vae/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear("fc1", 784, 128, rng, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear("fc2", 128, 10, rng, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules. Activation functions return nil.
	Parameters() []*Parameter[B]
}

// CountParameters returns the total number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}
