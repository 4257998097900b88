package nn

import (
	"github.com/born-ml/vae/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Example:
//
//	weight := nn.NewParameter("fc1.weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil before the first backward pass
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "fc1.weight")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	grad   *tensor.Tensor[float32, B] // Gradient from the last backward pass
}

// NewParameter creates a new trainable parameter around an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
//
// Call before each training iteration so gradients from the previous
// step are not applied twice.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// withPrefix renames p to prefix + "." + name.
func (p *Parameter[B]) withPrefix(prefix string) *Parameter[B] {
	if prefix != "" {
		p.name = prefix + "." + p.name
	}
	return p
}
