package nn

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// BCEBackend is an interface for backends that compute element-wise
// binary cross-entropy.
type BCEBackend interface {
	BinaryCrossEntropy(pred, target *tensor.RawTensor) *tensor.RawTensor
}

// BCELoss computes binary cross-entropy with no reduction:
//
//	loss[i] = -(y[i]·log(p[i]) + (1-y[i])·log(1-p[i]))
//
// The caller chooses the reduction; the VAE sums over pixels and then
// averages over the batch.
//
// Both log terms are floored at -100, so a prediction of exactly 0 or 1
// opposite the target yields a large finite loss. Values outside [0, 1]
// are not validated and produce NaN.
//
// Example:
//
//	bce := nn.NewBCELoss[Backend]()
//	perPixel := bce.Forward(reconstruction, images) // same shape as inputs
//	perSample := perPixel.SumDim(-1, false)
type BCELoss[B tensor.Backend] struct{}

// NewBCELoss creates a new binary cross-entropy loss.
func NewBCELoss[B tensor.Backend]() *BCELoss[B] {
	return &BCELoss[B]{}
}

// Forward computes the element-wise loss of predictions against targets.
// Panics if the shapes differ.
func (l *BCELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("BCELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}

	backend := predictions.Backend()
	if bceBackend, ok := any(backend).(BCEBackend); ok {
		return tensor.New[float32, B](bceBackend.BinaryCrossEntropy(predictions.Raw(), targets.Raw()), backend)
	}
	panic("BCELoss: backend must implement BinaryCrossEntropy operation")
}

// Parameters returns nil (loss functions have no trainable parameters).
func (l *BCELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
