package trainer

import (
	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/dataset"
	"github.com/born-ml/vae/internal/tensor"
	"github.com/born-ml/vae/internal/vae"
)

// Preview holds images for visual inspection of a trained model, each
// flattened to height*width values in [0, 1].
type Preview struct {
	Width           int
	Height          int
	Originals       [][]float32
	Reconstructions [][]float32
	Samples         [][]float32
}

// Preview reconstructs up to n images of batch and decodes n draws from the
// prior through the model's forward entry point.
func (t *Trainer[B]) Preview(batch dataset.Batch[*autodiff.AutodiffBackend[B]], n int) (Preview, error) {
	cfg := t.model.Config()
	p := Preview{Width: cfg.InputWidth, Height: cfg.InputHeight}

	t.backend.Tape().StopRecording()
	err := recoverStep(func() error {
		out := t.model.Step(vae.ModeTest, batch, t.rng)
		recon, _ := out.Reconstruction()

		originals := batch.Images.Flatten()
		count := min(n, batch.Size())
		p.Originals = rows(originals.Data(), count, cfg.Pixels())
		p.Reconstructions = rows(recon.Data(), count, cfg.Pixels())

		z := tensor.Randn[float32](tensor.Shape{n, cfg.LatentDim}, t.rng, t.backend)
		p.Samples = rows(t.model.Forward(z).Data(), n, cfg.Pixels())
		return nil
	})
	return p, err
}

func rows(data []float32, n, size int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = append([]float32(nil), data[i*size:(i+1)*size]...)
	}
	return out
}
