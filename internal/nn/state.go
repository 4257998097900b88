package nn

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// StateDict maps each parameter name to its raw tensor. The tensors are
// shared, not copied.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		state[p.Name()] = p.Tensor().Raw()
	}
	return state
}

// LoadStateDict copies values from state into params in place. Every
// parameter must be present with a matching shape and dtype.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], state map[string]*tensor.RawTensor) error {
	for _, p := range params {
		src, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("load state: missing parameter %s", p.Name())
		}
		dst := p.Tensor().Raw()
		if !src.Shape().Equal(dst.Shape()) || src.DType() != dst.DType() {
			return fmt.Errorf("load state: parameter %s is %s%v, want %s%v",
				p.Name(), src.DType(), src.Shape(), dst.DType(), dst.Shape())
		}
	}
	for _, p := range params {
		copy(p.Tensor().Raw().Bytes(), state[p.Name()].Bytes())
	}
	return nil
}
